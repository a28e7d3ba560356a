// Package catalog persists the asset index: tracked geometry files,
// previews, texture overrides, categories, and an append-only event log.
// Backed by a single SQLite file opened with WAL and foreign keys.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Faultbox/meshdeck/internal/logger"
)

// Store owns the catalog database.
type Store struct {
	db   *gorm.DB
	path string
	log  *zap.Logger
}

// Open creates or opens the catalog database at path. The schema is
// migrated idempotently on every open.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storeErr("open", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, storeErr("open", err)
	}

	if err := db.AutoMigrate(
		&Asset{}, &Geometry{}, &Preview{}, &AssetTextureOverride{},
		&Category{}, &AssetCategoryLink{}, &Event{},
	); err != nil {
		return nil, storeErr("migrate", err)
	}

	return &Store{db: db, path: path, log: logger.Named("catalog")}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storeErr("close", err)
	}
	return storeErr("close", sqlDB.Close())
}

// NormPath normalizes a source path for use as a catalog key.
func NormPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// FastHash is the cheap change-detection hash: size and mtime, no file
// content reads.
func FastHash(sizeBytes int64, mtime float64) string {
	return fmt.Sprintf("%d:%.6f", sizeBytes, mtime)
}

func mtimeSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func emitEvent(tx *gorm.DB, assetID *uint, eventType string, payload map[string]interface{}) error {
	ev := Event{
		AssetID:   assetID,
		EventType: eventType,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		ev.PayloadJSON = datatypes.JSON(raw)
	}
	return tx.Create(&ev).Error
}

// upsertAsset finds or creates the asset row for path and refreshes its
// bookkeeping columns. A missing source file is tolerated: the asset is
// tracked without geometry facts.
func upsertAsset(tx *gorm.DB, path string) (*Asset, bool, error) {
	norm := NormPath(path)
	now := time.Now().UTC()

	var asset Asset
	err := tx.Where("source_path = ?", norm).First(&asset).Error
	switch {
	case err == nil:
		asset.LastSeenAt = now
		if err := tx.Model(&asset).Update("last_seen_at", now).Error; err != nil {
			return nil, false, err
		}
		return &asset, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, false, err
	}

	asset = Asset{
		Name:       filepath.Base(norm),
		SourcePath: norm,
		CreatedAt:  now,
		UpdatedAt:  now,
		LastSeenAt: now,
	}
	if err := tx.Create(&asset).Error; err != nil {
		return nil, false, err
	}

	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		geo := Geometry{
			AssetID:   asset.ID,
			FilePath:  norm,
			Format:    strings.TrimPrefix(strings.ToLower(filepath.Ext(norm)), "."),
			SizeBytes: st.Size(),
			Mtime:     mtimeSeconds(st.ModTime()),
			HashFast:  FastHash(st.Size(), mtimeSeconds(st.ModTime())),
			CreatedAt: now,
		}
		if err := tx.Create(&geo).Error; err != nil {
			return nil, false, err
		}
	}
	return &asset, true, nil
}

// ScanResult summarizes one indexing run.
type ScanResult struct {
	Seen        int
	New         int
	Updated     int
	Removed     int
	DurationSec float64
	Root        string
}

// String renders the compact status-line form.
func (r *ScanResult) String() string {
	return fmt.Sprintf("+%d ~%d -%d", r.New, r.Updated, r.Removed)
}

// ScanAndIndex walks root (or uses explicitPaths when non-nil), diffs the
// tree against the catalog by fast hash, and records the transitions as
// events. The whole operation runs in one transaction.
func (s *Store) ScanAndIndex(root string, extensions []string, explicitPaths []string) (*ScanResult, error) {
	started := time.Now()
	normRoot := NormPath(root)

	extSet := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = struct{}{}
	}
	accepts := func(path string) bool {
		_, ok := extSet[strings.ToLower(filepath.Ext(path))]
		return ok
	}

	var paths []string
	if explicitPaths != nil {
		for _, p := range explicitPaths {
			if accepts(p) {
				paths = append(paths, p)
			}
		}
	} else {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && accepts(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, storeErr("scan", err)
		}
	}

	result := &ScanResult{Root: normRoot}
	seen := make(map[string]struct{}, len(paths))

	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, path := range paths {
			st, err := os.Stat(path)
			if err != nil || st.IsDir() {
				continue
			}
			norm := NormPath(path)
			seen[norm] = struct{}{}
			result.Seen++

			mtime := mtimeSeconds(st.ModTime())
			hash := FastHash(st.Size(), mtime)

			var asset Asset
			err = tx.Where("source_path = ?", norm).First(&asset).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				asset = Asset{
					Name:       filepath.Base(norm),
					SourcePath: norm,
					CreatedAt:  now,
					UpdatedAt:  now,
					LastSeenAt: now,
				}
				if err := tx.Create(&asset).Error; err != nil {
					return err
				}
				geo := Geometry{
					AssetID:   asset.ID,
					FilePath:  norm,
					Format:    strings.TrimPrefix(strings.ToLower(filepath.Ext(norm)), "."),
					SizeBytes: st.Size(),
					Mtime:     mtime,
					HashFast:  hash,
					CreatedAt: now,
				}
				if err := tx.Create(&geo).Error; err != nil {
					return err
				}
				if err := emitEvent(tx, &asset.ID, EventNewAsset, map[string]interface{}{"path": norm}); err != nil {
					return err
				}
				result.New++
				continue
			}
			if err != nil {
				return err
			}

			var geo Geometry
			geoErr := tx.Where("asset_id = ?", asset.ID).Order("id DESC").First(&geo).Error
			changed := errors.Is(geoErr, gorm.ErrRecordNotFound) || (geoErr == nil && geo.HashFast != hash)
			if geoErr != nil && !errors.Is(geoErr, gorm.ErrRecordNotFound) {
				return geoErr
			}

			if changed {
				if geoErr == nil {
					geo.SizeBytes = st.Size()
					geo.Mtime = mtime
					geo.HashFast = hash
					if err := tx.Save(&geo).Error; err != nil {
						return err
					}
				} else {
					geo = Geometry{
						AssetID:   asset.ID,
						FilePath:  norm,
						Format:    strings.TrimPrefix(strings.ToLower(filepath.Ext(norm)), "."),
						SizeBytes: st.Size(),
						Mtime:     mtime,
						HashFast:  hash,
						CreatedAt: now,
					}
					if err := tx.Create(&geo).Error; err != nil {
						return err
					}
				}
				if err := tx.Model(&asset).Updates(map[string]interface{}{
					"updated_at": now, "last_seen_at": now,
				}).Error; err != nil {
					return err
				}
				if err := emitEvent(tx, &asset.ID, EventUpdatedAsset, map[string]interface{}{"path": norm, "hash": hash}); err != nil {
					return err
				}
				result.Updated++
			} else if err := tx.Model(&asset).Update("last_seen_at", now).Error; err != nil {
				return err
			}
		}

		// Assets under the root that the scan did not see.
		var existing []Asset
		query := tx.Model(&Asset{}).Where("source_path LIKE ?", likePrefix(normRoot))
		if err := query.Find(&existing).Error; err != nil {
			return err
		}
		for i := range existing {
			asset := &existing[i]
			if _, ok := seen[asset.SourcePath]; ok {
				continue
			}
			var last Event
			err := tx.Where("asset_id = ?", asset.ID).Order("id DESC").First(&last).Error
			if err == nil && last.EventType == EventRemovedAsset {
				continue
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := emitEvent(tx, &asset.ID, EventRemovedAsset, map[string]interface{}{"path": asset.SourcePath}); err != nil {
				return err
			}
			result.Removed++
		}

		result.DurationSec = time.Since(started).Seconds()
		return emitEvent(tx, nil, EventScanCompleted, map[string]interface{}{
			"root": normRoot, "seen": result.Seen,
			"new": result.New, "updated": result.Updated, "removed": result.Removed,
			"duration_sec": result.DurationSec,
		})
	})
	if err != nil {
		return nil, storeErr("scan_and_index", err)
	}

	s.log.Info("index updated",
		zap.String("root", normRoot),
		zap.Int("seen", result.Seen),
		zap.Int("new", result.New),
		zap.Int("updated", result.Updated),
		zap.Int("removed", result.Removed))
	return result, nil
}

func likePrefix(normRoot string) string {
	return strings.TrimSuffix(normRoot, "/") + "/%"
}

// SetAssetFavorite toggles the favorite flag, creating the asset row if
// the path was never indexed.
func (s *Store) SetAssetFavorite(path string, favorite bool) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		asset, _, err := upsertAsset(tx, path)
		if err != nil {
			return err
		}
		if err := tx.Model(asset).Update("favorite", favorite).Error; err != nil {
			return err
		}
		return emitEvent(tx, &asset.ID, EventFavoriteSet, map[string]interface{}{"favorite": favorite})
	})
	return storeErr("set_asset_favorite", err)
}

// GetFavoritePaths lists favorite asset paths, optionally limited to a
// root prefix.
func (s *Store) GetFavoritePaths(root string) ([]string, error) {
	query := s.db.Model(&Asset{}).Where("favorite = ?", true)
	if root != "" {
		query = query.Where("source_path LIKE ?", likePrefix(NormPath(root)))
	}
	var paths []string
	if err := query.Order("source_path").Pluck("source_path", &paths).Error; err != nil {
		return nil, storeErr("get_favorite_paths", err)
	}
	return paths, nil
}

// SetAssetPreview replaces the asset's preview of the given kind.
func (s *Store) SetAssetPreview(path, previewPath string, width, height int, kind string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		asset, _, err := upsertAsset(tx, path)
		if err != nil {
			return err
		}
		if err := tx.Where("asset_id = ? AND kind = ?", asset.ID, kind).Delete(&Preview{}).Error; err != nil {
			return err
		}
		return tx.Create(&Preview{
			AssetID:   asset.ID,
			Kind:      kind,
			FilePath:  NormPath(previewPath),
			Width:     width,
			Height:    height,
			CreatedAt: time.Now().UTC(),
		}).Error
	})
	return storeErr("set_asset_preview", err)
}

// GetAssetPreview returns the asset's preview of the given kind, or nil
// when none is recorded.
func (s *Store) GetAssetPreview(path, kind string) (*Preview, error) {
	var asset Asset
	err := s.db.Where("source_path = ?", NormPath(path)).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get_asset_preview", err)
	}
	var preview Preview
	err = s.db.Where("asset_id = ? AND kind = ?", asset.ID, kind).Order("id DESC").First(&preview).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get_asset_preview", err)
	}
	return &preview, nil
}

// SetAssetTextureOverrides stores the override payload for path. An
// empty payload clears the record.
func (s *Store) SetAssetTextureOverrides(path string, payload []byte) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		asset, _, err := upsertAsset(tx, path)
		if err != nil {
			return err
		}
		if len(payload) == 0 {
			if err := tx.Where("asset_id = ?", asset.ID).Delete(&AssetTextureOverride{}).Error; err != nil {
				return err
			}
			return emitEvent(tx, &asset.ID, EventTextureOverridesCleared, nil)
		}
		record := AssetTextureOverride{
			AssetID:       asset.ID,
			OverridesJSON: datatypes.JSON(payload),
			UpdatedAt:     time.Now().UTC(),
		}
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		return emitEvent(tx, &asset.ID, EventTextureOverridesSaved, nil)
	})
	return storeErr("set_asset_texture_overrides", err)
}

// GetAssetTextureOverrides returns the stored override payload, or nil
// when none exists.
func (s *Store) GetAssetTextureOverrides(path string) ([]byte, error) {
	var asset Asset
	err := s.db.Where("source_path = ?", NormPath(path)).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get_asset_texture_overrides", err)
	}
	var record AssetTextureOverride
	err = s.db.Where("asset_id = ?", asset.ID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get_asset_texture_overrides", err)
	}
	return []byte(record.OverridesJSON), nil
}

// ListAssets returns tracked assets, optionally limited to a root prefix.
func (s *Store) ListAssets(root string) ([]Asset, error) {
	query := s.db.Model(&Asset{})
	if root != "" {
		query = query.Where("source_path LIKE ?", likePrefix(NormPath(root)))
	}
	var assets []Asset
	if err := query.Order("source_path").Find(&assets).Error; err != nil {
		return nil, storeErr("list_assets", err)
	}
	return assets, nil
}

// GetRecentEvents returns the newest events first, optionally filtered
// to assets under a root prefix.
func (s *Store) GetRecentEvents(limit int, root string) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.Model(&Event{})
	if root != "" {
		query = query.
			Joins("JOIN assets ON assets.id = events.asset_id").
			Where("assets.source_path LIKE ?", likePrefix(NormPath(root)))
	}
	var events []Event
	if err := query.Order("events.id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, storeErr("get_recent_events", err)
	}
	return events, nil
}
