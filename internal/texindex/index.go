package texindex

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Bounds for the last-resort recursive walk.
const (
	maxWalkDepth = 4
	maxWalkFiles = 20000
)

// scanCache caches non-recursive directory listings process-wide. Entries
// are keyed by directory path and stamped with the cache version so a bulk
// invalidation never returns stale listings.
var scanCache = struct {
	sync.Mutex
	version int64
	entries map[string]scanEntry
}{entries: make(map[string]scanEntry)}

type scanEntry struct {
	version int64
	files   []string
}

// ClearScanCache invalidates the cached listing for dir. An empty dir
// invalidates every entry.
func ClearScanCache(dir string) {
	scanCache.Lock()
	defer scanCache.Unlock()
	if dir == "" {
		scanCache.version++
		scanCache.entries = make(map[string]scanEntry)
		return
	}
	delete(scanCache.entries, filepath.Clean(dir))
}

// listDir returns texture files directly inside dir, via the scan cache.
func listDir(dir string) []string {
	dir = filepath.Clean(dir)

	scanCache.Lock()
	if e, ok := scanCache.entries[dir]; ok && e.version == scanCache.version {
		files := e.files
		scanCache.Unlock()
		return files
	}
	version := scanCache.version
	scanCache.Unlock()

	var files []string
	entries, err := os.ReadDir(dir)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if HasTextureExt(entry.Name()) {
				files = append(files, filepath.Join(dir, entry.Name()))
			}
		}
	}

	scanCache.Lock()
	scanCache.entries[dir] = scanEntry{version: version, files: files}
	scanCache.Unlock()
	return files
}

// candidateDirs returns the small set of directories checked before any
// recursive search: the model's directory, Textures/ and textures/ under
// it, and the parent's Textures/ and textures/.
func candidateDirs(modelPath string) []string {
	dir := filepath.Dir(modelPath)
	parent := filepath.Dir(dir)
	return []string{
		dir,
		filepath.Join(dir, "Textures"),
		filepath.Join(dir, "textures"),
		filepath.Join(parent, "Textures"),
		filepath.Join(parent, "textures"),
	}
}

// FindCandidates discovers texture files for a model and returns them
// ranked, best first. Discovery widens in stages: exact stem match in the
// candidate directories, then their full non-recursive listings, then a
// bounded recursive walk of the model's directory.
func FindCandidates(modelPath string) []string {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)))
	dirs := candidateDirs(modelPath)

	// Stage 1: <stem>.<ext> anywhere in the candidate directories.
	var exact []string
	for _, dir := range dirs {
		for _, f := range listDir(dir) {
			fstem := strings.ToLower(strings.TrimSuffix(filepath.Base(f), filepath.Ext(f)))
			if fstem == stem {
				exact = append(exact, f)
			}
		}
	}
	if len(exact) > 0 {
		// Exact hits still get the full sibling set around them.
		var all []string
		for _, dir := range dirs {
			all = append(all, listDir(dir)...)
		}
		return rank(dedupe(all), stem)
	}

	// Stage 2: full non-recursive listings.
	var wide []string
	for _, dir := range dirs {
		wide = append(wide, listDir(dir)...)
	}
	if len(wide) > 0 {
		return rank(dedupe(wide), stem)
	}

	// Stage 3: bounded recursive walk of the model's directory.
	return rank(dedupe(walkBounded(filepath.Dir(modelPath))), stem)
}

// walkBounded walks root up to maxWalkDepth levels and maxWalkFiles files.
func walkBounded(root string) []string {
	root = filepath.Clean(root)
	var files []string
	seen := 0

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		depth := len(strings.Split(rel, string(filepath.Separator)))
		if d.IsDir() {
			if depth > maxWalkDepth {
				return fs.SkipDir
			}
			return nil
		}
		seen++
		if seen > maxWalkFiles {
			return fs.SkipAll
		}
		if HasTextureExt(path) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// dedupe removes duplicates by normalized case-folded path, keeping the
// first occurrence.
func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0:0]
	for _, p := range paths {
		key := NormPath(p)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

var nonAlbedoTokens = []string{
	"normal", "_nrm", "_nor", "rough", "_rgh", "metal", "_met", "spec",
	"_ao", "occlusion", "height", "displace", "opacity", "alpha", "gloss",
	"lut", "brdf", "ibl",
}

// score ranks a file for use as a model's default texture; higher wins.
func score(path, stem string) int {
	name := strings.ToLower(filepath.Base(path))
	s := 0
	if stem != "" && strings.Contains(name, stem) {
		s += 5
	}
	for _, tok := range albedoTokens {
		if strings.Contains(name, tok) {
			s += 50
			break
		}
	}
	for _, tok := range nonAlbedoTokens {
		if strings.Contains(name, tok) {
			s -= 30
			break
		}
	}
	return s
}

// rank sorts candidates by descending score; ties keep input order.
func rank(paths []string, stem string) []string {
	type scored struct {
		path  string
		score int
		order int
	}
	items := make([]scored, len(paths))
	for i, p := range paths {
		items[i] = scored{path: p, score: score(p, stem), order: i}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].order < items[j].order
	})
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.path
	}
	return out
}
