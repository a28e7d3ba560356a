// Browser panel: search, filters, category tree, and the model list.
package main

import (
	"fmt"
	"path/filepath"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/Faultbox/meshdeck/internal/catalog"
	"github.com/Faultbox/meshdeck/internal/vcatalog"
)

func (app *App) renderBrowserPanel() {
	app.renderSearchAndFilters()
	imgui.Separator()
	app.renderCategoryTree()
	imgui.Separator()
	app.renderModelList()
	app.renderRenameCategoryPopup()
}

// renderRenameCategoryPopup edits the name of the category picked from
// the tree's context menu.
func (app *App) renderRenameCategoryPopup() {
	if app.renameCategoryID == 0 {
		return
	}
	imgui.OpenPopupStr("Rename Category")
	if imgui.BeginPopupModalV("Rename Category", nil, imgui.WindowFlagsAlwaysAutoResize) {
		imgui.InputTextWithHint("##renameCategory", "Category name", &app.renameCategoryText, 0, nil)
		if imgui.Button("Rename") && app.renameCategoryText != "" {
			app.renameCategory(app.renameCategoryID, app.renameCategoryText)
			app.renameCategoryID = 0
			imgui.CloseCurrentPopup()
		}
		imgui.SameLine()
		if imgui.Button("Cancel") {
			app.renameCategoryID = 0
			imgui.CloseCurrentPopup()
		}
		imgui.EndPopup()
	}
}

func (app *App) renameCategory(id uint, name string) {
	if err := app.store.RenameCategory(id, name); err != nil {
		if catalog.IsConflict(err) {
			app.notify("A category with that name already exists here")
		} else {
			app.notify("Category rename failed: " + err.Error())
		}
		return
	}
	app.refreshCatalogState()
}

func (app *App) renderSearchAndFilters() {
	view := &app.settings.View
	changed := false

	imgui.Text("Search:")
	imgui.SameLine()
	imgui.SetNextItemWidth(-1)
	if imgui.InputTextWithHint("##search", "Filter models...", &view.SearchText, 0, nil) {
		changed = true
	}

	if imgui.Checkbox("Favorites only", &view.OnlyFavorites) {
		changed = true
	}
	imgui.SameLine()
	if imgui.Checkbox("Uncategorized", &view.OnlyUncategorized) {
		changed = true
	}

	if changed {
		app.applyFilters()
		app.saveSettings()
	}
}

func (app *App) renderCategoryTree() {
	if !imgui.TreeNodeExStrV("Categories", imgui.TreeNodeFlagsDefaultOpen) {
		return
	}

	view := &app.settings.View
	if imgui.SelectableBoolV("All", view.VirtualCategoryID == 0, 0, imgui.NewVec2(0, 0)) {
		view.VirtualCategoryID = 0
		app.applyFilters()
		app.saveSettings()
	}

	if app.tree != nil {
		for _, node := range app.tree.Roots {
			app.renderCategoryNode(node)
		}
	}

	if imgui.Button("New Category") {
		app.createCategory("New Category", nil)
	}

	imgui.TreePop()
}

func (app *App) renderCategoryNode(node *vcatalog.Node) {
	view := &app.settings.View
	flags := imgui.TreeNodeFlagsOpenOnArrow | imgui.TreeNodeFlagsSpanAvailWidth
	if len(node.Children) == 0 {
		flags |= imgui.TreeNodeFlagsLeaf
	}
	if view.VirtualCategoryID == int64(node.ID) {
		flags |= imgui.TreeNodeFlagsSelected
	}

	open := imgui.TreeNodeExStrV(fmt.Sprintf("%s##cat%d", node.Name, node.ID), flags)
	if imgui.IsItemClicked() && !imgui.IsItemToggledOpen() {
		view.VirtualCategoryID = int64(node.ID)
		app.applyFilters()
		app.saveSettings()
	}

	if imgui.BeginPopupContextItem() {
		if imgui.MenuItemBool("New Subcategory") {
			id := node.ID
			app.createCategory("New Category", &id)
		}
		if imgui.MenuItemBool("Rename") {
			app.renameCategoryID = node.ID
			app.renameCategoryText = node.Name
		}
		if imgui.MenuItemBool("Delete") {
			app.deleteCategory(node.ID)
		}
		if app.selectedPath != "" {
			imgui.Separator()
			if imgui.MenuItemBool("Assign Selected Model") {
				app.assignCategory(app.selectedPath, node.ID)
			}
		}
		imgui.EndPopup()
	}

	if open {
		for _, child := range node.Children {
			app.renderCategoryNode(child)
		}
		imgui.TreePop()
	}
}

func (app *App) createCategory(name string, parentID *uint) {
	if _, err := app.store.CreateCategory(name, parentID); err != nil {
		if catalog.IsConflict(err) {
			app.notify("A category with that name already exists here")
		} else {
			app.notify("Category create failed: " + err.Error())
		}
		return
	}
	app.refreshCatalogState()
	app.applyFilters()
}

func (app *App) deleteCategory(id uint) {
	if err := app.store.DeleteCategory(id); err != nil {
		app.notify("Category delete failed: " + err.Error())
		return
	}
	if app.settings.View.VirtualCategoryID == int64(id) {
		app.settings.View.VirtualCategoryID = 0
		app.saveSettings()
	}
	app.refreshCatalogState()
	app.applyFilters()
}

func (app *App) assignCategory(path string, id uint) {
	if err := app.store.SetAssetCategory(path, &id, true); err != nil {
		app.notify("Category assign failed: " + err.Error())
		return
	}
	app.refreshCatalogState()
	app.applyFilters()
}

func (app *App) renderModelList() {
	imgui.Text(fmt.Sprintf("Models (%d):", len(app.filteredPaths)))

	if !imgui.BeginChildStrV("##modelList", imgui.NewVec2(0, 0), 0, 0) {
		imgui.EndChild()
		return
	}
	for i, path := range app.filteredPaths {
		name := filepath.Base(path)
		if app.favorites[catalog.NormPath(path)] {
			name = "* " + name
		}
		selected := path == app.selectedPath
		if imgui.SelectableBoolV(fmt.Sprintf("%s##row%d", name, i), selected, 0, imgui.NewVec2(0, 0)) {
			app.selectModel(i, path)
		}

		if imgui.BeginPopupContextItem() {
			fav := app.favorites[catalog.NormPath(path)]
			label := "Add to Favorites"
			if fav {
				label = "Remove from Favorites"
			}
			if imgui.MenuItemBool(label) {
				app.toggleFavorite(path, !fav)
			}
			if imgui.MenuItemBool("Clear Categories") {
				if err := app.store.SetAssetCategory(path, nil, false); err != nil {
					app.notify("Category clear failed: " + err.Error())
				} else {
					app.refreshCatalogState()
					app.applyFilters()
				}
			}
			imgui.EndPopup()
		}
	}
	imgui.EndChild()
}

func (app *App) toggleFavorite(path string, favorite bool) {
	if err := app.store.SetAssetFavorite(path, favorite); err != nil {
		app.notify("Favorite update failed: " + err.Error())
		return
	}
	app.favorites[catalog.NormPath(path)] = favorite
	if app.settings.View.OnlyFavorites {
		app.applyFilters()
	}
}
