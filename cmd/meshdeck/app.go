package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AllenDang/cimgui-go/backend"
	"github.com/AllenDang/cimgui-go/backend/sdlbackend"
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/meshdeck/internal/batch"
	"github.com/Faultbox/meshdeck/internal/catalog"
	"github.com/Faultbox/meshdeck/internal/config"
	"github.com/Faultbox/meshdeck/internal/geometry"
	"github.com/Faultbox/meshdeck/internal/loader"
	"github.com/Faultbox/meshdeck/internal/logger"
	"github.com/Faultbox/meshdeck/internal/pipeline"
	"github.com/Faultbox/meshdeck/internal/preview"
	"github.com/Faultbox/meshdeck/internal/render"
	"github.com/Faultbox/meshdeck/internal/scan"
	"github.com/Faultbox/meshdeck/internal/session"
	"github.com/Faultbox/meshdeck/internal/texindex"
	"github.com/Faultbox/meshdeck/internal/vcatalog"
)

// App owns every controller and routes their completions from the main
// loop. All GL and UI work happens on this thread.
type App struct {
	backend backend.Backend[sdlbackend.SDLWindowFlags]
	cfg     *config.Config
	log     *zap.Logger

	settings     *config.Settings
	settingsPath string

	store        *catalog.Store
	profiles     *pipeline.Config
	profileError string

	sessions     *session.Controller
	scans        *scan.Controller
	indexResults chan indexOutcome

	renderer   *render.Renderer
	viewportFB *render.Framebuffer
	previews   *preview.Cache
	batchJob   *batch.Controller

	// browser state
	currentDir    string
	modelPaths    []string
	filteredPaths []string
	favorites     map[string]bool
	tree          *vcatalog.Tree
	categories    []catalog.Category
	recentEvents  []catalog.Event

	// category pending a rename; zero means no rename in flight
	renameCategoryID   uint
	renameCategoryText string

	// current model
	selectedPath   string
	currentPayload *loader.MeshPayload
	loadingPath    string
	pendingHeavy   string // path awaiting heavy-file confirmation

	// current load belongs to the batch job, not the user selection
	batchLoad bool

	// validation state for the current model
	coverage  map[string]pipeline.Coverage
	checkRows []pipeline.CheckRow

	statusText string
	indexText  string
	scanning   bool
}

// indexOutcome carries a finished catalog indexing pass to the UI.
type indexOutcome struct {
	result *catalog.ScanResult
	err    error
}

// NewApp wires every subsystem. GL resources are created after the
// imgui backend brings up the context.
func NewApp(cfg *config.Config) (*App, error) {
	app := &App{
		cfg:          cfg,
		log:          logger.Named("app"),
		settingsPath: config.SettingsPath(),
		favorites:    make(map[string]bool),
		indexResults: make(chan indexOutcome, 1),
	}

	settings, err := config.LoadSettings(app.settingsPath)
	if err != nil {
		app.log.Warn("settings unreadable, using defaults", zap.Error(err))
		settings = config.DefaultSettings()
	}
	app.settings = settings

	store, err := catalog.Open(cfg.Catalog.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	app.store = store

	app.profiles, err = pipeline.Load(cfg.Pipeline.ProfilesPath)
	if err != nil {
		// Parser failure falls back to an empty profile set; the
		// message stays visible in the validation panel.
		app.profileError = err.Error()
		app.log.Warn("pipeline profiles unavailable", zap.Error(err))
	}

	app.sessions = session.NewController(session.LoadOptions{
		FastMode:        cfg.Viewer.FastMode,
		NormalsPolicy:   geometry.NormalsPolicy(cfg.Viewer.NormalsPolicy),
		HardAngleDeg:    cfg.Viewer.HardAngleDeg,
		HeavyFileSizeMB: cfg.Viewer.HeavyFileSizeMB,
	})
	app.scans = scan.NewController(cfg.Catalog.Extensions)

	app.previews, err = preview.NewCache(filepath.Join(config.ConfigDir(), ".cache"), store)
	if err != nil {
		return nil, errors.Wrap(err, "preview cache")
	}
	app.batchJob = batch.NewController(settings, app.settingsPath, app.previews, app.requestBatchLoad)

	app.backend, err = backend.CreateBackend(sdlbackend.NewSDLBackend())
	if err != nil {
		return nil, errors.Wrap(err, "create ui backend")
	}
	app.backend.SetBgColor(imgui.NewVec4(0.1, 0.1, 0.12, 1.0))
	app.backend.CreateWindow("MeshDeck", cfg.Window.Width, cfg.Window.Height)

	if err := gl.Init(); err != nil {
		return nil, errors.Wrap(err, "init opengl")
	}

	app.renderer, err = render.NewRenderer(&cfg.Viewer)
	if err != nil {
		return nil, errors.Wrap(err, "create renderer")
	}
	app.viewportFB, err = render.NewFramebuffer(1024, 768)
	if err != nil {
		return nil, errors.Wrap(err, "create viewport framebuffer")
	}

	app.batchJob.RestoreState()
	return app, nil
}

// Close releases GL resources, flushes settings, and closes the store.
func (app *App) Close() {
	if app.renderer != nil {
		app.renderer.Destroy()
	}
	if app.viewportFB != nil {
		app.viewportFB.Destroy()
	}
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.log.Warn("catalog close failed", zap.Error(err))
		}
	}
	app.saveSettings()
}

// Run starts the main loop.
func (app *App) Run() {
	app.backend.Run(app.frame)
}

// OpenDirectory starts a background walk of dir and remembers it.
func (app *App) OpenDirectory(dir string) {
	app.currentDir = dir
	app.settings.LastDirectory = dir
	app.saveSettings()
	app.scanning = true
	app.scans.StartScan(dir)
	app.setStatus("Scanning " + dir)
}

// frame is called once per UI frame.
func (app *App) frame() {
	app.processEvents()
	app.renderer.TickWarmup()
	app.renderUI()
}

// processEvents drains controller completions. Stale request ids are
// dropped here, before any state changes.
func (app *App) processEvents() {
	select {
	case res := <-app.scans.Results():
		app.onScanFinished(res)
	default:
	}

	select {
	case out := <-app.indexResults:
		app.onIndexFinished(out)
	default:
	}

	select {
	case done := <-app.sessions.Loaded():
		app.onModelLoaded(done)
	default:
	}

	select {
	case fail := <-app.sessions.Failed():
		app.onModelFailed(fail)
	default:
	}
}

func (app *App) onScanFinished(res scan.Result) {
	if !app.scans.Accept(res.RequestID) {
		return
	}
	app.scanning = false
	if res.ErrorText != "" {
		app.setStatus("Scan failed: " + res.ErrorText)
		return
	}

	app.modelPaths = res.Paths
	app.refreshCatalogState()
	app.applyFilters()
	app.setStatus(fmt.Sprintf("%d models in %s", len(res.Paths), res.Root))

	// Index in the background; the store owns its own connection.
	go func(root string, paths []string) {
		result, err := app.store.ScanAndIndex(root, app.cfg.Catalog.Extensions, paths)
		app.indexResults <- indexOutcome{result: result, err: err}
	}(res.Root, res.Paths)
}

func (app *App) onIndexFinished(out indexOutcome) {
	if out.err != nil {
		app.setStatus("Index failed: " + out.err.Error())
		return
	}
	app.indexText = "Index: " + out.result.String()
	app.refreshCatalogState()
	app.applyFilters()
}

func (app *App) onModelLoaded(done session.Loaded) {
	if !app.sessions.Accept(done.RequestID) {
		return
	}
	app.loadingPath = ""

	if err := app.renderer.AdoptPayload(done.Payload); err != nil {
		app.setStatus("Load failed: " + err.Error())
		app.finishBatchItem()
		return
	}
	app.currentPayload = done.Payload
	app.selectedPath = done.Path

	// Re-apply persisted channel overrides for this asset.
	if data, err := app.store.GetAssetTextureOverrides(done.Path); err == nil && data != nil {
		if err := app.renderer.Resolver.ApplyOverridesJSON(data); err != nil {
			app.log.Warn("stored overrides unreadable", zap.String("path", done.Path), zap.Error(err))
		}
	}

	app.refreshValidation()

	if app.batchLoad {
		app.captureBatchPreview(done.Path)
		app.finishBatchItem()
		return
	}
	app.setStatus(fmt.Sprintf("Loaded %s (%d triangles)",
		filepath.Base(done.Path), done.Payload.TriangleCount()))
}

func (app *App) onModelFailed(fail session.Failed) {
	if !app.sessions.Accept(fail.RequestID) {
		return
	}
	app.loadingPath = ""
	app.setStatus("Load failed: " + fail.ErrorText)
	app.log.Warn("model load failed",
		zap.String("path", fail.Path),
		zap.String("error", fail.ErrorText))
	app.finishBatchItem()
}

// selectModel starts a user-driven load, honoring the heavy-file gate.
func (app *App) selectModel(row int, path string) {
	app.batchLoad = false
	if app.sessions.NeedsConfirmation(path) {
		app.pendingHeavy = path
		return
	}
	app.startLoad(row, path, false)
}

func (app *App) startLoad(row int, path string, confirmed bool) {
	if _, ok := app.sessions.StartLoad(row, path, confirmed); ok {
		app.loadingPath = path
		app.setStatus("Loading " + filepath.Base(path))
	}
}

// requestBatchLoad is the batch controller's way to ask for the next
// item. Batch loads skip the confirmation gate; the job was started
// deliberately.
func (app *App) requestBatchLoad(row int, path string) {
	app.batchLoad = true
	app.startLoad(row, path, true)
}

// finishBatchItem advances the batch job after the current item's
// snapshot (or failure).
func (app *App) finishBatchItem() {
	if !app.batchLoad {
		return
	}
	app.batchLoad = false
	app.batchJob.OnItemProcessed()
}

// captureBatchPreview renders the adopted payload into the offscreen
// framebuffer and writes the thumbnail.
func (app *App) captureBatchPreview(modelPath string) {
	size := app.batchJob.ThumbSize()
	if size <= 0 {
		size = app.settings.View.ThumbSize
	}

	restore := app.viewportFB.BindScoped()
	w, h := app.viewportFB.Size()
	app.renderer.RenderFrame(w, h)
	img := app.viewportFB.Snapshot()
	restore()

	if _, err := app.previews.SaveViewportPreview(modelPath, img, size); err != nil {
		app.setStatus("Preview write failed: " + err.Error())
	}
}

// refreshCatalogState reloads favorites and the category tree.
func (app *App) refreshCatalogState() {
	favs, err := app.store.GetFavoritePaths(app.currentDir)
	if err != nil {
		app.log.Warn("favorites unavailable", zap.Error(err))
	} else {
		app.favorites = make(map[string]bool, len(favs))
		for _, p := range favs {
			app.favorites[p] = true
		}
	}

	cats, err := app.store.ListCategories()
	if err != nil {
		app.log.Warn("categories unavailable", zap.Error(err))
		return
	}
	assetCats, err := app.store.AssetCategoryIDs()
	if err != nil {
		app.log.Warn("category links unavailable", zap.Error(err))
		return
	}
	app.categories = cats
	app.tree = vcatalog.Build(cats, assetCats)
	app.refreshRecentEvents()
}

// refreshRecentEvents reloads the audit tail shown in the validation
// panel, honoring the profile's events.show allow-list.
func (app *App) refreshRecentEvents() {
	events, err := app.store.GetRecentEvents(20, app.currentDir)
	if err != nil {
		app.log.Warn("recent events unavailable", zap.Error(err))
		return
	}
	if show := app.profiles.Events.Show; len(show) > 0 {
		allowed := make(map[string]bool, len(show))
		for _, t := range show {
			allowed[t] = true
		}
		kept := events[:0]
		for _, ev := range events {
			if allowed[ev.EventType] {
				kept = append(kept, ev)
			}
		}
		events = kept
	}
	app.recentEvents = events
}

// applyFilters recomputes the visible model list from search text,
// favorites, and the virtual category selection.
func (app *App) applyFilters() {
	view := &app.settings.View
	out := make([]string, 0, len(app.modelPaths))

	needle := strings.ToLower(view.SearchText)
	for _, p := range app.modelPaths {
		if needle != "" && !strings.Contains(strings.ToLower(filepath.Base(p)), needle) {
			continue
		}
		if view.OnlyFavorites && !app.favorites[catalog.NormPath(p)] {
			continue
		}
		out = append(out, p)
	}

	if app.tree != nil {
		filters := vcatalog.Filters{UncategorizedOnly: view.OnlyUncategorized}
		if view.VirtualCategoryID > 0 {
			id := uint(view.VirtualCategoryID)
			filters.SelectedID = &id
		}
		out = app.tree.ApplyFilters(out, filters)
	}
	app.filteredPaths = out
}

// refreshValidation recomputes coverage and check rows for the current
// payload.
func (app *App) refreshValidation() {
	if app.currentPayload == nil {
		app.coverage = nil
		app.checkRows = nil
		return
	}

	effective := make(map[texindex.Channel]string)
	for ch, state := range app.renderer.Resolver.GlobalChannelStates() {
		if state.Path != "" {
			effective[ch] = state.Path
		}
	}

	app.coverage = pipeline.EvaluateCoverage(app.profiles, effective, app.currentPayload.TextureSets)
	app.checkRows = pipeline.RunChecks(app.profiles, app.selectedPath, effective,
		app.currentPayload.TextureSets, app.currentPayload.TriangleCount(), app.coverage)
}

// persistOverrides writes the resolver's override payload for the
// current asset, or clears it when none remain.
func (app *App) persistOverrides() {
	if app.selectedPath == "" {
		return
	}
	data, err := app.renderer.Resolver.EncodeOverrides()
	if err != nil {
		app.setStatus("Override save failed: " + err.Error())
		return
	}
	if err := app.store.SetAssetTextureOverrides(app.selectedPath, data); err != nil {
		app.setStatus("Override save failed: " + err.Error())
	}
	app.refreshValidation()
}

func (app *App) saveSettings() {
	if err := app.settings.Save(app.settingsPath); err != nil {
		app.setStatus("Settings save failed: " + err.Error())
		app.log.Warn("settings save failed", zap.Error(err))
	}
}

func (app *App) setStatus(text string) {
	app.statusText = text
}

// renderUI lays out the fixed panels and the status bar.
func (app *App) renderUI() {
	if imgui.BeginMainMenuBar() {
		if imgui.BeginMenu("File") {
			if imgui.MenuItemBool("Rescan Directory") && app.currentDir != "" {
				app.OpenDirectory(app.currentDir)
			}
			imgui.Separator()
			if imgui.MenuItemBool("Exit") {
				app.backend.SetShouldClose(true)
			}
			imgui.EndMenu()
		}
		imgui.EndMainMenuBar()
	}

	viewport := imgui.MainViewport()
	workPos := viewport.WorkPos()
	workSize := viewport.WorkSize()

	leftPanelWidth := float32(340)
	rightPanelWidth := float32(360)
	statusBarHeight := float32(30)
	contentHeight := workSize.Y - statusBarHeight
	centerWidth := workSize.X - leftPanelWidth - rightPanelWidth

	flags := imgui.WindowFlagsNoMove | imgui.WindowFlagsNoResize | imgui.WindowFlagsNoCollapse

	imgui.SetNextWindowPos(workPos)
	imgui.SetNextWindowSize(imgui.NewVec2(leftPanelWidth, contentHeight))
	if imgui.BeginV("Browser", nil, flags) {
		app.renderBrowserPanel()
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(workPos.X+leftPanelWidth, workPos.Y))
	imgui.SetNextWindowSize(imgui.NewVec2(centerWidth, contentHeight))
	if imgui.BeginV("Viewport", nil, flags) {
		app.renderViewportPanel()
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(workPos.X+leftPanelWidth+centerWidth, workPos.Y))
	imgui.SetNextWindowSize(imgui.NewVec2(rightPanelWidth, contentHeight))
	if imgui.BeginV("Inspector", nil, flags) {
		app.renderInspectorPanel()
	}
	imgui.End()

	imgui.SetNextWindowPos(imgui.NewVec2(workPos.X, workPos.Y+contentHeight))
	imgui.SetNextWindowSize(imgui.NewVec2(workSize.X, statusBarHeight))
	statusFlags := flags | imgui.WindowFlagsNoTitleBar | imgui.WindowFlagsNoScrollbar
	if imgui.BeginV("##StatusBar", nil, statusFlags) {
		app.renderStatusBar()
	}
	imgui.End()

	app.renderHeavyFilePopup()
}

func (app *App) renderStatusBar() {
	parts := make([]string, 0, 3)
	if app.statusText != "" {
		parts = append(parts, app.statusText)
	}
	if app.indexText != "" {
		parts = append(parts, app.indexText)
	}
	if batchText := app.batchJob.Status(); batchText != "" {
		parts = append(parts, batchText)
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d models", len(app.filteredPaths)))
	}
	imgui.Text(strings.Join(parts, " | "))
}

// renderHeavyFilePopup asks for confirmation before oversized loads.
func (app *App) renderHeavyFilePopup() {
	if app.pendingHeavy == "" {
		return
	}
	imgui.OpenPopupStr("Large File")
	if imgui.BeginPopupModalV("Large File", nil, imgui.WindowFlagsAlwaysAutoResize) {
		imgui.Text(fmt.Sprintf("%s exceeds %d MB.",
			filepath.Base(app.pendingHeavy), app.cfg.Viewer.HeavyFileSizeMB))
		imgui.Text("Loading may take a while. Continue?")
		imgui.Separator()
		if imgui.Button("Load") {
			path := app.pendingHeavy
			app.pendingHeavy = ""
			app.startLoad(app.rowOf(path), path, true)
			imgui.CloseCurrentPopup()
		}
		imgui.SameLine()
		if imgui.Button("Cancel") {
			app.pendingHeavy = ""
			imgui.CloseCurrentPopup()
		}
		imgui.EndPopup()
	}
}

func (app *App) rowOf(path string) int {
	for i, p := range app.filteredPaths {
		if p == path {
			return i
		}
	}
	return -1
}

// notify surfaces a transient message in the status bar and the log.
func (app *App) notify(text string) {
	app.setStatus(text)
	app.log.Info(text)
}
