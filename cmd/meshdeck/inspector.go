// Inspector panel: material channels, pipeline validation, batch jobs.
package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/Faultbox/meshdeck/internal/batch"
	"github.com/Faultbox/meshdeck/internal/pipeline"
	"github.com/Faultbox/meshdeck/internal/texindex"
)

func (app *App) renderInspectorPanel() {
	if imgui.BeginTabBar("##inspectorTabs") {
		if imgui.BeginTabItem("Materials") {
			app.renderMaterialsTab()
			imgui.EndTabItem()
		}
		if imgui.BeginTabItem("Validation") {
			app.renderValidationTab()
			imgui.EndTabItem()
		}
		if imgui.BeginTabItem("Batch") {
			app.renderBatchTab()
			imgui.EndTabItem()
		}
		imgui.EndTabBar()
	}
}

func (app *App) renderMaterialsTab() {
	if app.currentPayload == nil {
		imgui.TextDisabled("No model loaded")
		return
	}

	app.renderTextureSets()

	imgui.Text("Global channels:")
	states := app.renderer.Resolver.GlobalChannelStates()
	for _, ch := range texindex.CoreChannels {
		state := states[ch]
		label := string(ch) + ": " + state.State
		if state.State == "single" {
			label += " (" + filepath.Base(state.Path) + ")"
		}
		imgui.Text("  " + label)

		imgui.PushIDStr(string(ch))
		app.renderChannelPicker(ch, true, "")
		imgui.PopID()
	}

	imgui.Separator()
	imgui.Text("Submeshes:")
	for i := range app.currentPayload.Submeshes {
		sub := &app.currentPayload.Submeshes[i]
		header := fmt.Sprintf("%s / %s##sub%d", sub.ObjectName, sub.MaterialName, i)
		if !imgui.TreeNodeExStrV(header, 0) {
			continue
		}

		params := app.renderer.MaterialParamsFor(sub.MaterialUID)
		twoSided := params.TwoSided
		if imgui.Checkbox(fmt.Sprintf("Two-sided##ts%d", i), &twoSided) {
			params.TwoSided = twoSided
			app.renderer.SetMaterialParams(sub.MaterialUID, params)
		}

		for _, ch := range texindex.CoreChannels {
			resolved := app.renderer.Resolver.Resolve(sub, ch)
			text := string(ch) + ": "
			if resolved == "" {
				text += "(none)"
			} else {
				text += filepath.Base(resolved)
			}
			imgui.Text("  " + text)

			imgui.PushIDStr(fmt.Sprintf("%s-%d", ch, i))
			app.renderChannelPicker(ch, false, sub.MaterialUID)
			imgui.PopID()
		}
		imgui.TreePop()
	}

	if app.renderer.Resolver.HasOverrides() {
		imgui.Separator()
		if imgui.Button("Clear All Overrides") {
			_ = app.renderer.Resolver.ApplyOverridesJSON(nil)
			app.persistOverrides()
		}
	}
}

// renderTextureSets offers the coherent texture groups the indexer
// derived from shared stems. Picking one pins every core channel it
// covers and clears the rest.
func (app *App) renderTextureSets() {
	profiles := texindex.BuildSetProfiles(app.currentPayload.TextureSets)
	if len(profiles) == 0 {
		return
	}

	current := make(map[texindex.Channel]string)
	for ch, state := range app.renderer.Resolver.GlobalChannelStates() {
		if state.Path != "" {
			current[ch] = state.Path
		}
	}
	// Match on the core channels only; ApplySetProfile never pins packed
	// maps, so comparing them would never find the active set.
	core := make([]texindex.SetProfile, len(profiles))
	for i, p := range profiles {
		paths := make(map[texindex.Channel]string)
		for _, ch := range texindex.CoreChannels {
			if path := p.Paths[ch]; path != "" {
				paths[ch] = path
			}
		}
		core[i] = texindex.SetProfile{Key: p.Key, Paths: paths}
	}
	active := texindex.MatchProfileKey(core, current)

	imgui.Text("Texture sets:")
	for _, p := range profiles {
		label := fmt.Sprintf("%s (%d channels)##set-%s", p.Label, p.Coverage, p.Key)
		if imgui.SelectableBoolV(label, p.Key == active, 0, imgui.NewVec2(0, 0)) {
			app.renderer.Resolver.ApplySetProfile(p.Paths)
			app.persistOverrides()
		}
	}
	imgui.Separator()
}

// renderChannelPicker offers the ranked candidates for a channel as an
// override menu, global or per material.
func (app *App) renderChannelPicker(ch texindex.Channel, global bool, materialUID string) {
	candidates := app.currentPayload.TextureSets[ch]
	if len(candidates) == 0 {
		return
	}

	imgui.SameLine()
	if imgui.SmallButton("set") {
		imgui.OpenPopupStr("##pick")
	}

	if imgui.BeginPopup("##pick") {
		for _, cand := range candidates {
			if imgui.MenuItemBool(filepath.Base(cand)) {
				if global {
					app.renderer.Resolver.SetGlobalOverride(ch, cand)
				} else {
					app.renderer.Resolver.SetMaterialOverride(materialUID, ch, cand)
				}
				app.persistOverrides()
			}
		}
		imgui.Separator()
		if imgui.MenuItemBool("(clear)") {
			if global {
				app.renderer.Resolver.SetGlobalOverride(ch, "")
			} else {
				app.renderer.Resolver.SetMaterialOverride(materialUID, ch, "")
			}
			app.persistOverrides()
		}
		imgui.EndPopup()
	}
}

func (app *App) renderValidationTab() {
	if app.profileError != "" {
		imgui.TextColored(imgui.NewVec4(1, 0.6, 0.3, 1), "Profile config error:")
		imgui.TextWrapped(app.profileError)
		imgui.Separator()
	}

	if app.currentPayload == nil {
		imgui.TextDisabled("No model loaded")
		app.renderRecentActivity()
		return
	}

	imgui.Text("Pipeline coverage:")
	codes := make([]string, 0, len(app.coverage))
	for code := range app.coverage {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		cov := app.coverage[code]
		color := imgui.NewVec4(0.5, 0.9, 0.5, 1)
		switch cov.Status {
		case "partial":
			color = imgui.NewVec4(1, 0.8, 0.3, 1)
		case "missing":
			color = imgui.NewVec4(1, 0.4, 0.4, 1)
		}
		imgui.TextColored(color, fmt.Sprintf("%s: %s", cov.Title, cov.Status))
		if len(cov.Missing) > 0 {
			imgui.SameLine()
			imgui.TextDisabled(fmt.Sprintf("missing %v", cov.Missing))
		}
	}

	imgui.Separator()
	imgui.Text(fmt.Sprintf("Checks (%d):", len(app.checkRows)))

	tableFlags := imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable
	if imgui.BeginTableV("##checks", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Severity")
		imgui.TableSetupColumn("Pipeline")
		imgui.TableSetupColumn("Rule")
		imgui.TableSetupColumn("Message")
		imgui.TableHeadersRow()
		for _, row := range app.checkRows {
			imgui.TableNextRow()
			imgui.TableNextColumn()
			if row.Severity == pipeline.SeverityError {
				imgui.TextColored(imgui.NewVec4(1, 0.4, 0.4, 1), row.Severity)
			} else {
				imgui.TextColored(imgui.NewVec4(1, 0.8, 0.3, 1), row.Severity)
			}
			imgui.TableNextColumn()
			imgui.Text(row.Pipeline)
			imgui.TableNextColumn()
			imgui.Text(row.RuleCode)
			imgui.TableNextColumn()
			imgui.TextWrapped(row.Message)
		}
		imgui.EndTable()
	}

	app.renderRecentActivity()
}

// renderRecentActivity lists the newest catalog audit events for the
// open directory, filtered by the profile's events.show list.
func (app *App) renderRecentActivity() {
	if len(app.recentEvents) == 0 {
		return
	}
	imgui.Separator()
	imgui.Text("Recent activity:")
	for _, ev := range app.recentEvents {
		imgui.TextDisabled(fmt.Sprintf("%s  %s",
			ev.CreatedAt.Local().Format("15:04:05"), ev.EventType))
	}
}

func (app *App) renderBatchTab() {
	idx, total := app.batchJob.Progress()
	imgui.Text(fmt.Sprintf("State: %s", app.batchJob.State()))
	if total > 0 {
		imgui.ProgressBarV(float32(idx)/float32(total), imgui.NewVec2(-1, 0),
			fmt.Sprintf("%d / %d", idx, total))
	}
	imgui.Separator()

	thumbSize := app.settings.View.ThumbSize
	if thumbSize <= 0 {
		thumbSize = 128
	}

	switch app.batchJob.State() {
	case batch.StateIdle:
		if imgui.Button("Generate Missing Previews") {
			app.startBatch(batch.ModeMissingAll)
		}
		if imgui.Button("Regenerate All Previews") {
			app.startBatch(batch.ModeRegenAll)
		}
		if imgui.Button("Regenerate Filtered Previews") {
			app.startBatch(batch.ModeMissingFiltered)
		}
	case batch.StateRunning:
		if imgui.Button("Pause") {
			app.batchJob.Stop()
		}
	case batch.StatePaused:
		if imgui.Button("Resume") {
			mode := batch.ModeMissingAll
			if m := app.settings.Batch.Mode; m != "" {
				mode = batch.Mode(m)
			}
			if err := app.batchJob.Resume(app.currentDir, app.settings.Batch.ThumbSize, mode); err != nil {
				app.notify(err.Error())
			}
		}
	}
}

func (app *App) startBatch(mode batch.Mode) {
	thumbSize := app.settings.View.ThumbSize
	if thumbSize <= 0 {
		thumbSize = 128
	}
	if err := app.batchJob.Start(mode, app.modelPaths, app.filteredPaths, app.currentDir, thumbSize); err != nil {
		app.notify(err.Error())
	}
}
