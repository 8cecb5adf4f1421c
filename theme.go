package agentdesk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	DefaultThemePreset = "dracula"
	DefaultThemeMode   = "dark"
	// ThemeAuto picks the default preset in the terminal's dark or light mode.
	ThemeAuto = "auto"
)

// ThemeColors is the palette a theme defines.
type ThemeColors struct {
	Primary    lipgloss.Color `yaml:"primary"`
	Secondary  lipgloss.Color `yaml:"secondary"`
	Accent     lipgloss.Color `yaml:"accent"`
	Foreground lipgloss.Color `yaml:"foreground"`
	Background lipgloss.Color `yaml:"background"`
	Muted      lipgloss.Color `yaml:"muted"`
	Success    lipgloss.Color `yaml:"success"`
	Warning    lipgloss.Color `yaml:"warning"`
	Error      lipgloss.Color `yaml:"error"`
}

// Theme is a named palette in one mode.
type Theme struct {
	Name   string      `yaml:"name"`
	Mode   string      `yaml:"mode"`
	Colors ThemeColors `yaml:"colors"`
}

// ID is the identifier sessions store in theme_id, e.g. "nord-light".
func (t Theme) ID() string {
	if t.Mode == "" {
		return t.Name
	}
	return t.Name + "-" + t.Mode
}

func (t Theme) validate() error {
	if t.Name == "" {
		return fmt.Errorf("theme name is required")
	}
	if t.Mode != "" && t.Mode != "dark" && t.Mode != "light" {
		return fmt.Errorf("theme %s: mode must be dark or light, got %q", t.Name, t.Mode)
	}
	if t.Colors.Primary == "" || t.Colors.Foreground == "" {
		return fmt.Errorf("theme %s: primary and foreground colors are required", t.Name)
	}
	return nil
}

// Styles are the lipgloss styles renderers use for a theme.
type Styles struct {
	Title     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Panel     lipgloss.Style
}

func (t Theme) Styles() Styles {
	c := t.Colors
	fg := func(col lipgloss.Color) lipgloss.Style {
		if col == "" {
			col = c.Foreground
		}
		return lipgloss.NewStyle().Foreground(col)
	}
	return Styles{
		Title:     fg(c.Primary).Bold(true),
		User:      fg(c.Accent).Bold(true),
		Assistant: fg(c.Secondary).Bold(true),
		System:    fg(c.Muted).Italic(true),
		Muted:     fg(c.Muted),
		Success:   fg(c.Success),
		Warning:   fg(c.Warning),
		Error:     fg(c.Error).Bold(true),
		Panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(c.Primary).
			Padding(0, 1),
	}
}

// ============================================================================
// Presets
// ============================================================================

func preset(name, mode string, c ThemeColors) Theme {
	return Theme{Name: name, Mode: mode, Colors: c}
}

var presetThemes = []Theme{
	preset("dracula", "dark", ThemeColors{"#bd93f9", "#8be9fd", "#ff79c6", "#f8f8f2", "#282a36", "#6272a4", "#50fa7b", "#f1fa8c", "#ff5555"}),
	preset("dracula", "light", ThemeColors{"#7c3aed", "#0e7490", "#be185d", "#282a36", "#f8f8f2", "#6b7280", "#15803d", "#a16207", "#dc2626"}),
	preset("gruvbox", "dark", ThemeColors{"#fabd2f", "#83a598", "#d3869b", "#ebdbb2", "#282828", "#928374", "#b8bb26", "#fe8019", "#fb4934"}),
	preset("gruvbox", "light", ThemeColors{"#b57614", "#076678", "#8f3f71", "#3c3836", "#fbf1c7", "#7c6f64", "#79740e", "#af3a03", "#9d0006"}),
	preset("catppuccin", "dark", ThemeColors{"#cba6f7", "#89b4fa", "#f5c2e7", "#cdd6f4", "#1e1e2e", "#6c7086", "#a6e3a1", "#f9e2af", "#f38ba8"}),
	preset("catppuccin", "light", ThemeColors{"#8839ef", "#1e66f5", "#ea76cb", "#4c4f69", "#eff1f5", "#8c8fa1", "#40a02b", "#df8e1d", "#d20f39"}),
	preset("nord", "dark", ThemeColors{"#88c0d0", "#81a1c1", "#b48ead", "#eceff4", "#2e3440", "#4c566a", "#a3be8c", "#ebcb8b", "#bf616a"}),
	preset("nord", "light", ThemeColors{"#5e81ac", "#4c566a", "#b48ead", "#2e3440", "#eceff4", "#7b88a1", "#4f7a3a", "#a37b1c", "#a5404a"}),
	preset("tokyonight", "dark", ThemeColors{"#7aa2f7", "#7dcfff", "#bb9af7", "#c0caf5", "#1a1b26", "#565f89", "#9ece6a", "#e0af68", "#f7768e"}),
	preset("tokyonight", "light", ThemeColors{"#2e7de9", "#007197", "#9854f1", "#3760bf", "#e1e2e7", "#848cb5", "#587539", "#8c6c3e", "#f52a65"}),
	preset("onedarkpro", "dark", ThemeColors{"#61afef", "#56b6c2", "#c678dd", "#abb2bf", "#282c34", "#5c6370", "#98c379", "#e5c07b", "#e06c75"}),
	preset("onedarkpro", "light", ThemeColors{"#4078f2", "#0184bc", "#a626a4", "#383a42", "#fafafa", "#a0a1a7", "#50a14f", "#c18401", "#e45649"}),
	preset("ocean", "dark", ThemeColors{"#4fc1ff", "#2bb3a6", "#9cdcfe", "#d4e4f0", "#0b1d2b", "#5a7183", "#4ec9b0", "#dcdcaa", "#f48771"}),
	preset("ocean", "light", ThemeColors{"#0369a1", "#0f766e", "#0284c7", "#0c2a3b", "#f0f9ff", "#64748b", "#15803d", "#b45309", "#b91c1c"}),
	preset("aurora", "dark", ThemeColors{"#a78bfa", "#34d399", "#f472b6", "#e5e7eb", "#111827", "#6b7280", "#10b981", "#fbbf24", "#f87171"}),
	preset("aurora", "light", ThemeColors{"#6d28d9", "#047857", "#db2777", "#1f2937", "#f9fafb", "#6b7280", "#059669", "#d97706", "#dc2626"}),
}

// ============================================================================
// Registry
// ============================================================================

// ThemeRegistry holds the bundled presets plus custom themes loaded from a
// directory of YAML files.
type ThemeRegistry struct {
	mu     sync.RWMutex
	themes map[string]Theme
	custom map[string]bool

	logger *slog.Logger
	// DetectDark reports whether the terminal background is dark. Used for "auto".
	DetectDark func() bool

	hooksMu sync.Mutex
	hooks   []func()
}

func NewThemeRegistry(logger *slog.Logger) *ThemeRegistry {
	if logger == nil {
		logger = discardLogger()
	}
	r := &ThemeRegistry{
		themes:     make(map[string]Theme, len(presetThemes)),
		custom:     make(map[string]bool),
		logger:     logger,
		DetectDark: lipgloss.HasDarkBackground,
	}
	for _, t := range presetThemes {
		r.themes[t.ID()] = t
	}
	return r
}

// Names returns every theme id, sorted.
func (r *ThemeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.themes))
	for id := range r.themes {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

func (r *ThemeRegistry) Get(id string) (Theme, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.themes[id]
	return t, ok
}

// Resolve maps a theme name to a theme. It accepts "auto", full ids such as
// "nord-light" and bare preset names, which mean the dark variant. Unknown
// names fall back to dracula-dark.
func (r *ThemeRegistry) Resolve(name string) Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == ThemeAuto {
		mode := "light"
		if r.DetectDark == nil || r.DetectDark() {
			mode = "dark"
		}
		name = DefaultThemePreset + "-" + mode
	}

	if t, ok := r.Get(name); ok {
		return t
	}
	if t, ok := r.Get(name + "-" + DefaultThemeMode); ok {
		return t
	}

	fallback := DefaultThemePreset + "-" + DefaultThemeMode
	r.logger.Warn("theme not found, using fallback", "theme", name, "fallback", fallback)
	t, _ := r.Get(fallback)
	return t
}

// LoadDir replaces the custom themes with the *.yaml and *.yml files in dir.
// Invalid files are skipped with a warning. A missing dir is not an error.
func (r *ThemeRegistry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read theme dir: %w", err)
	}

	loaded := make(map[string]Theme)
	for _, e := range entries {
		if e.IsDir() || !isThemeFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := loadThemeFile(path)
		if err != nil {
			r.logger.Warn("skipping theme file", "path", path, "error", err)
			continue
		}
		loaded[t.ID()] = t
	}

	r.mu.Lock()
	for id := range r.custom {
		delete(r.themes, id)
	}
	r.custom = make(map[string]bool, len(loaded))
	for id, t := range loaded {
		r.themes[id] = t
		r.custom[id] = true
	}
	// Presets shadowed by a custom theme come back when it goes away.
	for _, t := range presetThemes {
		if _, ok := r.themes[t.ID()]; !ok {
			r.themes[t.ID()] = t
		}
	}
	r.mu.Unlock()

	r.logger.Debug("loaded custom themes", "dir", dir, "count", len(loaded))
	return nil
}

func isThemeFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func loadThemeFile(path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, err
	}
	var t Theme
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Theme{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if t.Name == "" {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	t.Name = strings.ToLower(t.Name)
	return t, t.validate()
}

// OnChange registers fn to run after Watch reloads the directory.
func (r *ThemeRegistry) OnChange(fn func()) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Watch reloads dir whenever a theme file in it changes, until ctx is done.
func (r *ThemeRegistry) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch theme dir: %w", err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !isThemeFile(event.Name) || event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
					continue
				}
				if err := r.LoadDir(dir); err != nil {
					r.logger.Warn("theme reload failed", "dir", dir, "error", err)
					continue
				}
				r.emitChange()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.logger.Warn("theme watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (r *ThemeRegistry) emitChange() {
	r.hooksMu.Lock()
	hooks := append([]func(){}, r.hooks...)
	r.hooksMu.Unlock()
	for _, h := range hooks {
		h()
	}
}
