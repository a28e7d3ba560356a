package render

import (
	"image/color"
	"math"
	"testing"

	"github.com/Faultbox/meshdeck/internal/loader"
	"github.com/Faultbox/meshdeck/internal/texindex"
	"github.com/Faultbox/meshdeck/pkg/vecmath"
)

func TestWarmupQueueDedupesAcrossSubmeshes(t *testing.T) {
	payload := &loader.MeshPayload{
		Submeshes: []loader.Submesh{
			{TexturePaths: map[texindex.Channel]string{
				texindex.ChannelBaseColor: "/tex/base.png",
				texindex.ChannelMetal:     "/tex/metal.png",
				texindex.ChannelRoughness: "/tex/rough.png",
			}},
			{TexturePaths: map[texindex.Channel]string{
				texindex.ChannelMetal:  "/tex/metal.png",
				texindex.ChannelNormal: "/tex/normal.png",
			}},
		},
	}

	var q WarmupQueue
	q.Fill(payload)

	if q.Pending() != 3 {
		t.Fatalf("expected 3 queued paths, got %d", q.Pending())
	}

	seen := make(map[string]bool)
	for {
		path, ok := q.Next()
		if !ok {
			break
		}
		if seen[path] {
			t.Errorf("path %s queued twice", path)
		}
		seen[path] = true
	}
	if seen["/tex/base.png"] {
		t.Error("base color map must not be queued for warmup")
	}
	if !seen["/tex/normal.png"] {
		t.Error("normal map missing from warmup queue")
	}
	if q.Pending() != 0 {
		t.Errorf("queue not drained: %d left", q.Pending())
	}
}

func TestWarmupQueueFillReplaces(t *testing.T) {
	var q WarmupQueue
	q.Fill(&loader.MeshPayload{Submeshes: []loader.Submesh{
		{TexturePaths: map[texindex.Channel]string{texindex.ChannelMetal: "/a.png"}},
	}})
	q.Fill(&loader.MeshPayload{Submeshes: []loader.Submesh{
		{TexturePaths: map[texindex.Channel]string{texindex.ChannelNormal: "/b.png"}},
	}})

	path, ok := q.Next()
	if !ok || path != "/b.png" {
		t.Fatalf("expected /b.png after refill, got %q ok=%v", path, ok)
	}
	if _, ok := q.Next(); ok {
		t.Error("old queue contents survived a refill")
	}

	q.Fill(nil)
	if q.Pending() != 0 {
		t.Errorf("nil payload should empty the queue, got %d", q.Pending())
	}
}

func TestOrbitCameraClamps(t *testing.T) {
	c := NewOrbitCamera()

	c.Rotate(0, 10)
	if c.Pitch > maxPitch {
		t.Errorf("pitch %f exceeds clamp %f", c.Pitch, maxPitch)
	}
	c.Rotate(0, -20)
	if c.Pitch < minPitch {
		t.Errorf("pitch %f below clamp %f", c.Pitch, minPitch)
	}

	c.Zoom(1e-6)
	if c.Distance < minDistance {
		t.Errorf("distance %f below clamp", c.Distance)
	}
	c.Zoom(1e9)
	if c.Distance > maxDistance {
		t.Errorf("distance %f above clamp", c.Distance)
	}

	before := c.Distance
	c.Zoom(0)
	if c.Distance != before {
		t.Error("non-positive zoom factor must be ignored")
	}
}

func TestOrbitCameraEyeDistance(t *testing.T) {
	c := NewOrbitCamera()
	for _, yaw := range []float32{0, 0.7, 2.1, -1.3} {
		c.Yaw = yaw
		d := c.Eye().Sub(c.Target).Length()
		if math.Abs(float64(d-c.Distance)) > 1e-4 {
			t.Errorf("yaw %f: eye distance %f, want %f", yaw, d, c.Distance)
		}
	}
}

func TestOrbitCameraPanKeepsDistance(t *testing.T) {
	c := NewOrbitCamera()
	c.Pan(0.3, -0.2)
	d := c.Eye().Sub(c.Target).Length()
	if math.Abs(float64(d-c.Distance)) > 1e-4 {
		t.Errorf("pan changed orbit distance: %f vs %f", d, c.Distance)
	}
	if c.Target.X == 0 && c.Target.Y == 0 && c.Target.Z == 0 {
		t.Error("pan did not move the target")
	}
}

func TestLightSpaceMatrixCoversModel(t *testing.T) {
	light := vecmath.Vec3{X: 2.5, Y: 3, Z: 2}
	for _, radius := range []float32{1, 3} {
		m := LightSpaceMatrix(light, radius)
		for _, p := range [][3]float32{
			{0, 0, 0},
			{radius, 0, 0},
			{0, -radius, 0},
			{0, 0, radius},
		} {
			ndc := m.TransformPoint(p)
			for axis, v := range ndc {
				if v < -1.001 || v > 1.001 {
					t.Errorf("radius %f point %v axis %d outside clip: %f",
						radius, p, axis, v)
				}
			}
		}
	}
}

// tgaHeader builds the 18-byte header for an uncompressed image.
func tgaHeader(imageType byte, width, height, bpp int, topToBottom bool) []byte {
	h := make([]byte, 18)
	h[2] = imageType
	h[12] = byte(width)
	h[13] = byte(width >> 8)
	h[14] = byte(height)
	h[15] = byte(height >> 8)
	h[16] = byte(bpp)
	if topToBottom {
		h[17] = 0x20
	}
	return h
}

func TestDecodeTGATrueColor(t *testing.T) {
	// 2x1 top-to-bottom, 24bpp BGR: red then blue.
	data := append(tgaHeader(2, 2, 1, 24, true),
		0, 0, 255,
		255, 0, 0,
	)
	img, err := decodeTGA(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []color.RGBA{{255, 0, 0, 255}, {0, 0, 255, 255}}
	for x, w := range want {
		if got := img.At(x, 0); got != w {
			t.Errorf("pixel %d = %v, want %v", x, got, w)
		}
	}
}

func TestDecodeTGABottomUpFlip(t *testing.T) {
	// 1x2 bottom-to-top: first stored row is the bottom row.
	data := append(tgaHeader(2, 1, 2, 32, false),
		0, 0, 255, 255, // red, stored first -> bottom
		255, 0, 0, 128, // blue, half alpha -> top
	)
	img, err := decodeTGA(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := img.At(0, 0); got != (color.RGBA{0, 0, 255, 128}) {
		t.Errorf("top pixel = %v", got)
	}
	if got := img.At(0, 1); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("bottom pixel = %v", got)
	}
}

func TestDecodeTGAGrayscale(t *testing.T) {
	data := append(tgaHeader(3, 2, 1, 8, true), 0, 200)
	img, err := decodeTGA(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := img.At(1, 0); got != (color.RGBA{200, 200, 200, 255}) {
		t.Errorf("gray pixel = %v", got)
	}
}

func TestDecodeTGARLE(t *testing.T) {
	// 4x1 RLE 24bpp: run of 3 green, then 1 raw white.
	data := append(tgaHeader(10, 4, 1, 24, true),
		0x82, 0, 255, 0, // RLE packet, count 3, BGR green
		0x00, 255, 255, 255, // raw packet, count 1
	)
	img, err := decodeTGA(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for x := 0; x < 3; x++ {
		if got := img.At(x, 0); got != (color.RGBA{0, 255, 0, 255}) {
			t.Errorf("pixel %d = %v, want green", x, got)
		}
	}
	if got := img.At(3, 0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("pixel 3 = %v, want white", got)
	}
}

func TestDecodeTGAErrors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"truncated header", []byte{0, 0, 2}},
		{"color mapped", func() []byte {
			h := tgaHeader(1, 1, 1, 24, true)
			h[1] = 1
			return h
		}()},
		{"truncated pixels", tgaHeader(2, 4, 4, 24, true)},
		{"unknown type", tgaHeader(9, 1, 1, 24, true)},
	}
	for _, tc := range cases {
		if _, err := decodeTGA(tc.data); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestDefaultMaterialParams(t *testing.T) {
	p := DefaultMaterialParams()
	if p.AlphaMode != AlphaOpaque {
		t.Error("default alpha mode must be opaque")
	}
	if p.AlphaCutoff != 0.5 || p.BlendOpacity != 1 {
		t.Errorf("unexpected defaults: cutoff=%f opacity=%f", p.AlphaCutoff, p.BlendOpacity)
	}
	if p.TwoSided {
		t.Error("materials must cull back faces by default")
	}
}

func TestTwoSidedMaterialSeeding(t *testing.T) {
	payload := &loader.MeshPayload{Submeshes: []loader.Submesh{
		{MaterialUID: "mat:aaaa", TwoSided: true},
		{MaterialUID: "mat:bbbb"},
	}}

	params := map[string]MaterialParams{}
	seedTwoSidedParams(payload, params)

	if !params["mat:aaaa"].TwoSided {
		t.Error("double-sided submesh did not seed TwoSided")
	}
	if _, ok := params["mat:bbbb"]; ok {
		t.Error("one-sided submesh must not get a params entry")
	}

	// Seeding keeps user-tuned settings, only raising the flag.
	tuned := DefaultMaterialParams()
	tuned.AlphaMode = AlphaCutout
	params = map[string]MaterialParams{"mat:aaaa": tuned}
	seedTwoSidedParams(payload, params)
	got := params["mat:aaaa"]
	if !got.TwoSided || got.AlphaMode != AlphaCutout {
		t.Errorf("seeding clobbered stored params: %+v", got)
	}
}
