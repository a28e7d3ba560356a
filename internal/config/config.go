// Package config handles application configuration and persisted settings.
package config

// Config holds all application settings.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
	VSync  bool `yaml:"vsync"`
}

// ViewerConfig holds 3D viewport settings.
type ViewerConfig struct {
	ShadowResolution int32   `yaml:"shadow_resolution"`
	ShadowsEnabled   bool    `yaml:"shadows_enabled"`
	AmbientStrength  float32 `yaml:"ambient_strength"`
	// HeavyFileSizeMB is the size above which a load needs confirmation.
	HeavyFileSizeMB int64 `yaml:"heavy_file_size_mb"`
	FastMode        bool  `yaml:"fast_mode"`
	NormalsPolicy   string `yaml:"normals_policy"`
	HardAngleDeg    float64 `yaml:"hard_angle_deg"`
}

// CatalogConfig holds catalog database settings.
type CatalogConfig struct {
	DBPath     string   `yaml:"db_path"`
	Extensions []string `yaml:"extensions"`
}

// PipelineConfig holds render-pipeline profile settings.
type PipelineConfig struct {
	ProfilesPath string `yaml:"profiles_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  1440,
			Height: 900,
			VSync:  true,
		},
		Viewer: ViewerConfig{
			ShadowResolution: 2048,
			ShadowsEnabled:   true,
			AmbientStrength:  0.25,
			HeavyFileSizeMB:  256,
			FastMode:         false,
			NormalsPolicy:    "auto",
			HardAngleDeg:     60,
		},
		Catalog: CatalogConfig{
			DBPath:     "catalog.db",
			Extensions: []string{".obj", ".fbx", ".stl", ".ply", ".glb", ".gltf", ".off", ".dae"},
		},
		Pipeline: PipelineConfig{
			ProfilesPath: "pipelines.yaml",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
