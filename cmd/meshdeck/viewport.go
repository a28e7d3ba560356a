// Viewport panel: the 3D preview image with orbit camera input.
package main

import (
	"path/filepath"

	"github.com/AllenDang/cimgui-go/imgui"

	"github.com/Faultbox/meshdeck/internal/render"
)

var lastMousePos imgui.Vec2

func (app *App) renderViewportPanel() {
	if app.loadingPath != "" {
		imgui.Text("Loading " + filepath.Base(app.loadingPath) + "...")
	} else if app.selectedPath == "" {
		imgui.TextDisabled("Select a model to preview")
	} else {
		imgui.Text(filepath.Base(app.selectedPath))
	}
	imgui.Separator()

	avail := imgui.ContentRegionAvail()
	width := int32(avail.X)
	height := int32(avail.Y - 30) // room for the controls row
	if width < 64 || height < 64 {
		return
	}

	fbW, fbH := app.viewportFB.Size()
	if fbW != width || fbH != height {
		app.viewportFB.Resize(width, height)
	}

	restore := app.viewportFB.BindScoped()
	app.renderer.RenderFrame(width, height)
	restore()

	texRef := imgui.NewTextureRefTextureID(imgui.TextureID(app.viewportFB.ColorTexture()))
	imgui.ImageWithBgV(
		*texRef,
		imgui.NewVec2(float32(width), float32(height)),
		imgui.NewVec2(0, 1), // UV flipped for OpenGL
		imgui.NewVec2(1, 0),
		imgui.NewVec4(0.05, 0.05, 0.07, 1.0),
		imgui.NewVec4(1, 1, 1, 1),
	)

	if imgui.IsItemHovered() {
		mousePos := imgui.MousePos()
		if imgui.IsMouseDragging(imgui.MouseButtonLeft) {
			dx := mousePos.X - lastMousePos.X
			dy := mousePos.Y - lastMousePos.Y
			app.renderer.Camera.Rotate(dx*0.01, -dy*0.01)
		}
		if imgui.IsMouseDragging(imgui.MouseButtonMiddle) {
			dx := mousePos.X - lastMousePos.X
			dy := mousePos.Y - lastMousePos.Y
			app.renderer.Camera.Pan(-dx*0.002, dy*0.002)
		}
		lastMousePos = mousePos

		if wheel := imgui.CurrentIO().MouseWheel(); wheel != 0 {
			factor := float32(1) - wheel*0.1
			app.renderer.Camera.Zoom(factor)
		}
	}

	if imgui.Button("Reset View") {
		*app.renderer.Camera = *render.NewOrbitCamera()
	}
	imgui.SameLine()
	imgui.TextDisabled("Drag to orbit, middle-drag to pan, scroll to zoom | Shadows: " +
		app.renderer.ShadowStatus())
}
