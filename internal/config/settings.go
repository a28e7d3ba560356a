package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings holds runtime state persisted between sessions, kept separate
// from Config so user edits to config.yaml never collide with writes.
type Settings struct {
	LastDirectory string        `yaml:"last_directory"`
	View          ViewSettings  `yaml:"view"`
	Batch         BatchSettings `yaml:"batch"`
}

// ViewSettings holds browser view state.
type ViewSettings struct {
	SearchText        string `yaml:"search_text"`
	OnlyFavorites     bool   `yaml:"only_favorites"`
	OnlyUncategorized bool   `yaml:"only_uncategorized"`
	CategoryFilter    string `yaml:"category_filter"`
	VirtualCategoryID int64  `yaml:"virtual_category_id"`
	ThumbSize         int    `yaml:"thumb_size"`
}

// BatchSettings holds resumable batch preview job state.
type BatchSettings struct {
	PathsJSON string `yaml:"paths_json"`
	Index     int    `yaml:"index"`
	Paused    bool   `yaml:"paused"`
	Mode      string `yaml:"mode"`
	Root      string `yaml:"root"`
	ThumbSize int    `yaml:"thumb_size"`
}

// DefaultSettings returns empty settings with a usable thumbnail size.
func DefaultSettings() *Settings {
	return &Settings{
		View: ViewSettings{ThumbSize: 128},
	}
}

// SettingsPath returns the location of the persisted settings file.
func SettingsPath() string {
	return filepath.Join(ConfigDir(), "settings.yaml")
}

// LoadSettings reads persisted settings, returning defaults when the file
// does not exist yet.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes settings to the given path. Callers must surface the error;
// silent settings loss has bitten batch resume before.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
