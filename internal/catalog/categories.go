package catalog

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CreateCategory adds a category under parentID (nil for a root node).
// Duplicate names among siblings are a conflict.
func (s *Store) CreateCategory(name string, parentID *uint) (*Category, error) {
	var created Category
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if parentID != nil {
			var parent Category
			if err := tx.First(&parent, *parentID).Error; err != nil {
				return err
			}
		}
		if err := siblingNameTaken(tx, name, parentID, 0); err != nil {
			return err
		}
		created = Category{Name: name, ParentID: parentID}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		return emitEvent(tx, nil, EventCategoryCreated, map[string]interface{}{
			"category_id": created.ID, "name": name,
		})
	})
	if err != nil {
		return nil, storeErr("create_category", err)
	}
	return &created, nil
}

// RenameCategory changes a category's name, keeping sibling uniqueness.
func (s *Store) RenameCategory(id uint, name string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cat Category
		if err := tx.First(&cat, id).Error; err != nil {
			return err
		}
		if err := siblingNameTaken(tx, name, cat.ParentID, id); err != nil {
			return err
		}
		old := cat.Name
		if err := tx.Model(&cat).Update("name", name).Error; err != nil {
			return err
		}
		return emitEvent(tx, nil, EventCategoryRenamed, map[string]interface{}{
			"category_id": id, "from": old, "to": name,
		})
	})
	return storeErr("rename_category", err)
}

// DeleteCategory removes a category and its whole subtree: links are
// deleted and assets whose primary category pointed into the subtree are
// cleared.
func (s *Store) DeleteCategory(id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cat Category
		if err := tx.First(&cat, id).Error; err != nil {
			return err
		}

		ids, err := subtreeIDs(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Where("category_id IN ?", ids).Delete(&AssetCategoryLink{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Asset{}).Where("category_id IN ?", ids).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&Category{}).Error; err != nil {
			return err
		}
		return emitEvent(tx, nil, EventCategoryDeleted, map[string]interface{}{
			"category_id": id, "name": cat.Name, "subtree_size": len(ids),
		})
	})
	return storeErr("delete_category", err)
}

// ListCategories returns every category node.
func (s *Store) ListCategories() ([]Category, error) {
	var cats []Category
	if err := s.db.Order("id").Find(&cats).Error; err != nil {
		return nil, storeErr("list_categories", err)
	}
	return cats, nil
}

// SetAssetCategory assigns path to a category. With appendLink set, a
// link is added (keeping existing ones) and the primary category is set
// only when absent. A nil categoryID clears all links and the primary.
func (s *Store) SetAssetCategory(path string, categoryID *uint, appendLink bool) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		asset, _, err := upsertAsset(tx, path)
		if err != nil {
			return err
		}

		if categoryID == nil {
			if err := tx.Where("asset_id = ?", asset.ID).Delete(&AssetCategoryLink{}).Error; err != nil {
				return err
			}
			if err := tx.Model(asset).Update("category_id", nil).Error; err != nil {
				return err
			}
			return emitEvent(tx, &asset.ID, EventAssetCategoriesCleared, nil)
		}

		var cat Category
		if err := tx.First(&cat, *categoryID).Error; err != nil {
			return err
		}

		if !appendLink {
			if err := tx.Where("asset_id = ?", asset.ID).Delete(&AssetCategoryLink{}).Error; err != nil {
				return err
			}
			if err := tx.Model(asset).Update("category_id", *categoryID).Error; err != nil {
				return err
			}
		} else {
			var link AssetCategoryLink
			err := tx.Where("asset_id = ? AND category_id = ?", asset.ID, *categoryID).First(&link).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				link = AssetCategoryLink{
					AssetID:    asset.ID,
					CategoryID: *categoryID,
					CreatedAt:  time.Now().UTC(),
				}
				if err := tx.Create(&link).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
			if asset.CategoryID == nil {
				if err := tx.Model(asset).Update("category_id", *categoryID).Error; err != nil {
					return err
				}
			}
		}
		return emitEvent(tx, &asset.ID, EventAssetCategorySet, map[string]interface{}{
			"category_id": *categoryID, "append": appendLink,
		})
	})
	return storeErr("set_asset_category", err)
}

// AssetCategoryIDs maps each asset path to the union of its primary
// category and link categories.
func (s *Store) AssetCategoryIDs() (map[string][]uint, error) {
	var assets []Asset
	if err := s.db.Find(&assets).Error; err != nil {
		return nil, storeErr("asset_category_ids", err)
	}
	var links []AssetCategoryLink
	if err := s.db.Find(&links).Error; err != nil {
		return nil, storeErr("asset_category_ids", err)
	}

	byAssetID := make(map[uint]string, len(assets))
	out := make(map[string][]uint)
	appendUnique := func(path string, id uint) {
		for _, existing := range out[path] {
			if existing == id {
				return
			}
		}
		out[path] = append(out[path], id)
	}

	for i := range assets {
		byAssetID[assets[i].ID] = assets[i].SourcePath
		if assets[i].CategoryID != nil {
			appendUnique(assets[i].SourcePath, *assets[i].CategoryID)
		}
	}
	for _, link := range links {
		if path, ok := byAssetID[link.AssetID]; ok {
			appendUnique(path, link.CategoryID)
		}
	}
	return out, nil
}

func siblingNameTaken(tx *gorm.DB, name string, parentID *uint, excludeID uint) error {
	query := tx.Model(&Category{}).Where("name = ?", name)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return conflictErr("category", errors.Errorf("name %q already exists under the same parent", name))
	}
	return nil
}

// subtreeIDs returns id plus every descendant category id.
func subtreeIDs(tx *gorm.DB, id uint) ([]uint, error) {
	var all []Category
	if err := tx.Find(&all).Error; err != nil {
		return nil, err
	}
	children := make(map[uint][]uint)
	for _, c := range all {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	ids := []uint{id}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids, nil
}
