package pipeline

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/meshdeck/internal/texindex"
)

const profileYAML = `
version: 1
pipelines:
  pbr_metal_rough:
    title: PBR Metal/Rough
    required_channels: [basecolor, normal, roughness]
    optional_channels: [metal, ao]
  unlit:
    title: Unlit
    required_channels: []
validation:
  naming:
    model_pattern: '^[a-z0-9_]+\.[a-z]+$'
    texture_pattern: '^[a-z0-9_]+\.[a-z]+$'
  limits:
    max_polycount_warning: 1000
    max_texture_size_mb: 1.0
    max_texture_resolution: 64
  formats:
    model: [obj, fbx, gltf]
    texture: [png, jpg]
`

func loadProfile(t *testing.T) *Config {
	t.Helper()
	cfg, err := Parse([]byte(profileYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return cfg
}

func TestLoadBadProfileFallsBackEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(path, []byte("pipelines: [not: a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error type = %T", err)
	}
	if cfg == nil || len(cfg.Pipelines) != 0 {
		t.Fatalf("fallback config = %+v", cfg)
	}
}

func TestCoveragePartial(t *testing.T) {
	cfg := loadProfile(t)
	effective := map[texindex.Channel]string{
		texindex.ChannelBaseColor: "x.png",
		texindex.ChannelNormal:    "",
	}

	cov := EvaluateCoverage(cfg, effective, nil)

	pbr := cov["pbr_metal_rough"]
	if pbr.Status != "partial" {
		t.Fatalf("status = %q, want partial", pbr.Status)
	}
	if pbr.ReadyRequired != 1 {
		t.Fatalf("ready_required = %d, want 1", pbr.ReadyRequired)
	}
	if len(pbr.Missing) != 2 || pbr.Missing[0] != "normal" || pbr.Missing[1] != "roughness" {
		t.Fatalf("missing = %v", pbr.Missing)
	}

	// No requirements means always ready.
	if cov["unlit"].Status != "ready" {
		t.Fatalf("unlit status = %q", cov["unlit"].Status)
	}
}

func TestCoverageORMHeuristic(t *testing.T) {
	cfg := loadProfile(t)
	sets := map[texindex.Channel][]string{
		texindex.ChannelBaseColor: {"/tex/crate_basecolor.png"},
		texindex.ChannelNormal:    {"/tex/crate_normal.png"},
		texindex.ChannelORM:       {"/tex/crate_orm.png"},
	}

	cov := EvaluateCoverage(cfg, nil, sets)
	pbr := cov["pbr_metal_rough"]
	if pbr.Status != "ready" {
		t.Fatalf("status = %q, want ready (orm implies roughness)", pbr.Status)
	}
	if !pbr.Presence["roughness"] || !pbr.Presence["metal"] || !pbr.Presence["ao"] {
		t.Fatalf("presence = %v", pbr.Presence)
	}
}

func TestCoverageChannelAliases(t *testing.T) {
	cfg := &Config{Pipelines: map[string]Pipeline{
		"p": {RequiredChannels: []string{"metallic", "occlusion"}},
	}}
	sets := map[texindex.Channel][]string{
		texindex.ChannelMetal: {"/tex/m_metal.png"},
		texindex.ChannelAO:    {"/tex/m_ao.png"},
	}
	cov := EvaluateCoverage(cfg, nil, sets)
	if cov["p"].Status != "ready" {
		t.Fatalf("aliased status = %q, missing = %v", cov["p"].Status, cov["p"].Missing)
	}
}

func TestCoverageMonotonicity(t *testing.T) {
	small := &Config{Pipelines: map[string]Pipeline{
		"p": {RequiredChannels: []string{"basecolor"}},
	}}
	big := &Config{Pipelines: map[string]Pipeline{
		"p": {RequiredChannels: []string{"basecolor", "normal"}},
	}}
	effective := map[texindex.Channel]string{
		texindex.ChannelBaseColor: "b.png",
		texindex.ChannelNormal:    "n.png",
	}
	if EvaluateCoverage(big, effective, nil)["p"].Status != "ready" {
		t.Fatal("superset not ready")
	}
	if EvaluateCoverage(small, effective, nil)["p"].Status != "ready" {
		t.Fatal("subset must be ready when the superset is")
	}
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func hasRow(rows []CheckRow, ruleCode, severity string) bool {
	for _, r := range rows {
		if r.RuleCode == ruleCode && r.Severity == severity {
			return true
		}
	}
	return false
}

func TestRunChecks(t *testing.T) {
	cfg := loadProfile(t)
	dir := t.TempDir()

	big := writePNG(t, dir, "crate_basecolor.png", 128, 128)
	bad := writePNG(t, dir, "Crate-NORMAL.tga", 16, 16)

	effective := map[texindex.Channel]string{
		texindex.ChannelBaseColor: big,
		texindex.ChannelNormal:    bad,
	}
	coverage := EvaluateCoverage(cfg, effective, nil)
	rows := RunChecks(cfg, filepath.Join(dir, "Crate Model.max"),
		effective, nil, 5000, coverage)

	for _, want := range []struct{ code, severity string }{
		{"naming_model", SeverityWarning},
		{"naming_texture", SeverityWarning},
		{"format_model", SeverityError},
		{"format_texture", SeverityWarning},
		{"polycount", SeverityWarning},
		{"texture_resolution", SeverityWarning},
		{"missing_channel", SeverityError},
	} {
		if !hasRow(rows, want.code, want.severity) {
			t.Errorf("missing %s/%s row in %+v", want.severity, want.code, rows)
		}
	}
}

func TestRunChecksCleanModel(t *testing.T) {
	cfg := loadProfile(t)
	dir := t.TempDir()
	base := writePNG(t, dir, "crate_basecolor.png", 32, 32)
	norm := writePNG(t, dir, "crate_normal.png", 32, 32)
	rough := writePNG(t, dir, "crate_roughness.png", 32, 32)

	effective := map[texindex.Channel]string{
		texindex.ChannelBaseColor: base,
		texindex.ChannelNormal:    norm,
		texindex.ChannelRoughness: rough,
	}
	coverage := EvaluateCoverage(cfg, effective, nil)
	rows := RunChecks(cfg, filepath.Join(dir, "crate.obj"), effective, nil, 100, coverage)
	if len(rows) != 0 {
		t.Fatalf("expected no findings, got %+v", rows)
	}
}
