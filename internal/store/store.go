package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/clickseq/api/schemas"
)

// Settings is the saved profile: the last target list and run options. The
// selectors are kept as one newline separated blob, the way users edit them.
type Settings struct {
	Selectors     string `yaml:"selectors"`
	DelayMs       int    `yaml:"delay"`
	Infinite      bool   `yaml:"infinite"`
	Repeats       int    `yaml:"repeats"`
	SmartSelector bool   `yaml:"smartSelector"`
}

// DefaultSettings is what Load returns when nothing was saved yet.
func DefaultSettings() Settings {
	return Settings{
		DelayMs: int(schemas.DefaultDelay.Milliseconds()),
		Repeats: 1,
	}
}

// Command turns the saved profile into a start command.
func (s Settings) Command() schemas.Command {
	return schemas.Command{
		Action:    schemas.ActionStartClicking,
		Selectors: strings.Split(s.Selectors, "\n"),
		DelayMs:   s.DelayMs,
		Loop:      s.Infinite,
		Repeats:   s.Repeats,
		Smart:     s.SmartSelector,
	}
}

// SettingsFromCommand captures the options of a start command so they can be
// saved. smart is the current synthesis mode.
func SettingsFromCommand(c schemas.Command, smart bool) Settings {
	return Settings{
		Selectors:     schemas.FormatTargets(schemas.ParseTargetLines(c.Selectors)),
		DelayMs:       c.DelayMs,
		Infinite:      c.Loop,
		Repeats:       c.Repeats,
		SmartSelector: smart,
	}
}

// FileStore keeps Settings in a YAML file.
type FileStore struct {
	path string
	log  *zap.Logger

	mu sync.Mutex
}

// New creates a store backed by path. The file and its directory are
// created on the first save.
func New(path string, logger *zap.Logger) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings path cannot be empty")
	}
	return &FileStore{
		path: path,
		log:  logger.Named("store"),
	}, nil
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the saved settings. A missing file yields DefaultSettings.
func (s *FileStore) Load(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the saved settings.
func (s *FileStore) Save(ctx context.Context, settings Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(settings)
}

// AppendSelector adds selector as a new line of the saved target list.
func (s *FileStore) AppendSelector(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return errors.New("cannot append an empty selector")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.load()
	if err != nil {
		return err
	}
	settings.Selectors = appendLine(settings.Selectors, selector)
	if err := s.save(settings); err != nil {
		return err
	}
	s.log.Info("Selector saved.", zap.String("selector", selector))
	return nil
}

func (s *FileStore) load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}
	return settings, nil
}

// save writes to a temporary file and renames it over the old one.
func (s *FileStore) save(settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temporary settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	s.log.Debug("Settings saved.", zap.String("path", s.path))
	return nil
}

func appendLine(blob, line string) string {
	blob = strings.TrimRight(blob, "\n")
	if blob == "" {
		return line
	}
	return blob + "\n" + line
}
