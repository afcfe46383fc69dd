package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"swapScope/internal/model"
)

// Settings holds the locally persisted user preferences: slippage tolerance
// and imported custom token roots. No schema versioning.
type Settings struct {
	Slippage       string        `json:"slippage,omitempty"`
	ImportedTokens []model.Token `json:"imported_tokens,omitempty"`
	UpdatedAt      string        `json:"updated_at"`
}

// SettingsStore persists settings to disk.
type SettingsStore struct {
	path string
}

func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{path: path}
}

func (s *SettingsStore) Load() (Settings, bool, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, false, nil
		}
		return Settings{}, false, fmt.Errorf("stat settings: %w", err)
	}
	if stat.IsDir() {
		return Settings{}, false, fmt.Errorf("settings path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Settings{}, false, fmt.Errorf("read settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, false, fmt.Errorf("parse settings: %w", err)
	}

	return settings, true, nil
}

func (s *SettingsStore) Save(settings Settings) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}

	settings.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write settings tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename settings: %w", err)
	}

	return nil
}

// ImportToken adds or replaces an imported token root in the stored settings.
func (s *SettingsStore) ImportToken(token model.Token) error {
	settings, _, err := s.Load()
	if err != nil {
		return err
	}

	token.Imported = true
	replaced := false
	for i, existing := range settings.ImportedTokens {
		if existing.Root == token.Root {
			settings.ImportedTokens[i] = token
			replaced = true
			break
		}
	}
	if !replaced {
		settings.ImportedTokens = append(settings.ImportedTokens, token)
	}

	return s.Save(settings)
}
