package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// Asset is one geometry file tracked by the catalog, keyed by its
// normalized source path.
type Asset struct {
	ID         uint      `gorm:"primaryKey"`
	Name       string    `gorm:"not null;column:name"`
	SourcePath string    `gorm:"uniqueIndex;not null;column:source_path"`
	Favorite   bool      `gorm:"not null;default:false;column:favorite"`
	CategoryID *uint     `gorm:"column:category_id"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
	LastSeenAt time.Time `gorm:"column:last_seen_at"`
}

func (Asset) TableName() string { return "assets" }

// Geometry carries the file-level facts behind an asset, including the
// fast hash used for change detection.
type Geometry struct {
	ID        uint      `gorm:"primaryKey"`
	AssetID   uint      `gorm:"index;not null;column:asset_id"`
	FilePath  string    `gorm:"not null;column:file_path"`
	Format    string    `gorm:"column:format"`
	SizeBytes int64     `gorm:"column:size_bytes"`
	Mtime     float64   `gorm:"column:mtime"`
	HashFast  string    `gorm:"column:hash_fast"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Geometry) TableName() string { return "geometries" }

// Preview is a rendered thumbnail or viewport grab linked to an asset.
type Preview struct {
	ID        uint      `gorm:"primaryKey"`
	AssetID   uint      `gorm:"index;not null;column:asset_id"`
	Kind      string    `gorm:"not null;column:kind"`
	FilePath  string    `gorm:"not null;column:file_path"`
	Width     int       `gorm:"column:width"`
	Height    int       `gorm:"column:height"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Preview) TableName() string { return "previews" }

// AssetTextureOverride stores the per-asset texture override payload as
// opaque JSON.
type AssetTextureOverride struct {
	AssetID       uint           `gorm:"primaryKey;column:asset_id"`
	OverridesJSON datatypes.JSON `gorm:"column:overrides_json"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

func (AssetTextureOverride) TableName() string { return "asset_texture_overrides" }

// Category is one node of the user-defined category tree. Names are
// unique among siblings.
type Category struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"not null;uniqueIndex:idx_categories_parent_name;column:name"`
	ParentID *uint  `gorm:"uniqueIndex:idx_categories_parent_name;column:parent_id"`
}

func (Category) TableName() string { return "categories" }

// AssetCategoryLink is the many-to-many assignment between assets and
// categories, distinct from the asset's primary category.
type AssetCategoryLink struct {
	ID         uint      `gorm:"primaryKey"`
	AssetID    uint      `gorm:"uniqueIndex:idx_asset_category;not null;column:asset_id"`
	CategoryID uint      `gorm:"uniqueIndex:idx_asset_category;not null;column:category_id"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (AssetCategoryLink) TableName() string { return "asset_category_links" }

// Event is one entry of the append-only audit log.
type Event struct {
	ID          uint           `gorm:"primaryKey"`
	AssetID     *uint          `gorm:"index;column:asset_id"`
	EventType   string         `gorm:"index;not null;column:event_type"`
	PayloadJSON datatypes.JSON `gorm:"column:payload_json"`
	CreatedAt   time.Time      `gorm:"not null"`
}

func (Event) TableName() string { return "events" }

// Audit event types.
const (
	EventNewAsset                = "new_asset"
	EventUpdatedAsset            = "updated_asset"
	EventRemovedAsset            = "removed_asset"
	EventScanCompleted           = "scan_completed"
	EventFavoriteSet             = "favorite_set"
	EventTextureOverridesSaved   = "texture_overrides_saved"
	EventTextureOverridesCleared = "texture_overrides_cleared"
	EventCategoryCreated         = "category_created"
	EventCategoryRenamed         = "category_renamed"
	EventCategoryDeleted         = "category_deleted"
	EventAssetCategorySet        = "asset_category_set"
	EventAssetCategoryRemoved    = "asset_category_removed"
	EventAssetCategoriesCleared  = "asset_categories_cleared"
)
