package render

import (
	"github.com/Faultbox/meshdeck/internal/loader"
	"github.com/Faultbox/meshdeck/internal/texindex"
)

// WarmupQueue feeds non-base texture uploads one path per tick so the
// model appears with its base map first and fills in as frames pass.
type WarmupQueue struct {
	paths []string
}

// Fill enumerates every non-base texture path reachable through the
// payload's submeshes, deduplicated by normalized path, replacing any
// queued work.
func (q *WarmupQueue) Fill(payload *loader.MeshPayload) {
	q.paths = q.paths[:0]
	if payload == nil {
		return
	}
	seen := make(map[string]struct{})
	for i := range payload.Submeshes {
		for _, ch := range []texindex.Channel{
			texindex.ChannelMetal, texindex.ChannelRoughness, texindex.ChannelNormal,
		} {
			path := payload.Submeshes[i].TexturePaths[ch]
			if path == "" {
				continue
			}
			key := texindex.NormPath(path)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			q.paths = append(q.paths, path)
		}
	}
}

// Next pops the next path to upload; ok is false when the queue is done.
func (q *WarmupQueue) Next() (string, bool) {
	if len(q.paths) == 0 {
		return "", false
	}
	path := q.paths[0]
	q.paths = q.paths[1:]
	return path, true
}

// Pending returns the remaining queue length.
func (q *WarmupQueue) Pending() int { return len(q.paths) }

// Clear drops all queued work.
func (q *WarmupQueue) Clear() { q.paths = q.paths[:0] }
