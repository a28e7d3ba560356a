package pipeline

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/Faultbox/meshdeck/internal/texindex"
)

// Severity levels for check rows.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// CheckRow is one validation finding, shaped for a sortable table.
type CheckRow struct {
	Severity string
	Pipeline string
	RuleCode string
	Message  string
}

// RunChecks executes the declarative checks of the profile document
// against one model: naming patterns, format allow-lists, limits, and
// required channels promoted from coverage.
func RunChecks(cfg *Config, modelPath string, effectivePaths map[texindex.Channel]string,
	sets map[texindex.Channel][]string, triangles int, coverage map[string]Coverage) []CheckRow {

	var rows []CheckRow
	v := cfg.Validation

	modelBase := filepath.Base(modelPath)
	texturePaths := collectTexturePaths(effectivePaths, sets)

	if v.Naming.ModelPattern != "" {
		if re, err := regexp.Compile(v.Naming.ModelPattern); err != nil {
			rows = append(rows, CheckRow{SeverityError, "", "naming_config",
				fmt.Sprintf("bad model_pattern: %v", err)})
		} else if !re.MatchString(modelBase) {
			rows = append(rows, CheckRow{SeverityWarning, "", "naming_model",
				fmt.Sprintf("%s does not match %s", modelBase, v.Naming.ModelPattern)})
		}
	}
	if v.Naming.TexturePattern != "" {
		if re, err := regexp.Compile(v.Naming.TexturePattern); err != nil {
			rows = append(rows, CheckRow{SeverityError, "", "naming_config",
				fmt.Sprintf("bad texture_pattern: %v", err)})
		} else {
			for _, path := range texturePaths {
				base := filepath.Base(path)
				if !re.MatchString(base) {
					rows = append(rows, CheckRow{SeverityWarning, "", "naming_texture",
						fmt.Sprintf("%s does not match %s", base, v.Naming.TexturePattern)})
				}
			}
		}
	}

	if len(v.Formats.Model) > 0 && !extAllowed(modelPath, v.Formats.Model) {
		rows = append(rows, CheckRow{SeverityError, "", "format_model",
			fmt.Sprintf("%s has a disallowed model format", modelBase)})
	}
	if len(v.Formats.Texture) > 0 {
		for _, path := range texturePaths {
			if !extAllowed(path, v.Formats.Texture) {
				rows = append(rows, CheckRow{SeverityWarning, "", "format_texture",
					fmt.Sprintf("%s has a disallowed texture format", filepath.Base(path))})
			}
		}
	}

	if v.Limits.MaxPolycountWarning > 0 && triangles > v.Limits.MaxPolycountWarning {
		rows = append(rows, CheckRow{SeverityWarning, "", "polycount",
			fmt.Sprintf("%d triangles exceed the %d limit", triangles, v.Limits.MaxPolycountWarning)})
	}
	if v.Limits.MaxTextureSizeMB > 0 {
		for _, path := range texturePaths {
			if st, err := os.Stat(path); err == nil {
				sizeMB := float64(st.Size()) / (1024 * 1024)
				if sizeMB > v.Limits.MaxTextureSizeMB {
					rows = append(rows, CheckRow{SeverityWarning, "", "texture_size",
						fmt.Sprintf("%s is %.1f MB (limit %.1f MB)",
							filepath.Base(path), sizeMB, v.Limits.MaxTextureSizeMB)})
				}
			}
		}
	}
	if v.Limits.MaxTextureResolution > 0 {
		for _, path := range texturePaths {
			w, h, ok := imageDimensions(path)
			if ok && (w > v.Limits.MaxTextureResolution || h > v.Limits.MaxTextureResolution) {
				rows = append(rows, CheckRow{SeverityWarning, "", "texture_resolution",
					fmt.Sprintf("%s is %dx%d (limit %d)",
						filepath.Base(path), w, h, v.Limits.MaxTextureResolution)})
			}
		}
	}

	// Missing required channels are errors, one row per pipeline/channel.
	codes := make([]string, 0, len(coverage))
	for code := range coverage {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		for _, ch := range coverage[code].Missing {
			rows = append(rows, CheckRow{SeverityError, code, "missing_channel",
				fmt.Sprintf("required channel %s is missing", ch)})
		}
	}

	return rows
}

func collectTexturePaths(effectivePaths map[texindex.Channel]string,
	sets map[texindex.Channel][]string) []string {

	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		if path == "" {
			return
		}
		key := texindex.NormPath(path)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, path)
	}
	for _, path := range effectivePaths {
		add(path)
	}
	for _, paths := range sets {
		for _, path := range paths {
			add(path)
		}
	}
	sort.Strings(out)
	return out
}

func extAllowed(path string, allowed []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, a := range allowed {
		if ext == strings.TrimPrefix(strings.ToLower(a), ".") {
			return true
		}
	}
	return false
}

// imageDimensions reads just the image header. Formats without a
// registered decoder are skipped.
func imageDimensions(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
