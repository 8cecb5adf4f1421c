package agentdesk

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThemeResolve(t *testing.T) {
	r := NewThemeRegistry(nil)
	r.DetectDark = func() bool { return true }

	tests := []struct {
		name string
		want string
	}{
		{"nord-light", "nord-light"},
		{"ocean", "ocean-dark"},
		{"  Aurora ", "aurora-dark"},
		{"auto", "dracula-dark"},
		{"", "dracula-dark"},
		{"solarized", "dracula-dark"},
		{"nord-sepia", "dracula-dark"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.name).ID())
		})
	}

	t.Run("auto on a light terminal", func(t *testing.T) {
		r.DetectDark = func() bool { return false }
		assert.Equal(t, "dracula-light", r.Resolve(ThemeAuto).ID())
	})
}

func TestThemePresets(t *testing.T) {
	r := NewThemeRegistry(nil)
	for _, name := range []string{"dracula", "gruvbox", "catppuccin", "nord", "tokyonight", "onedarkpro", "ocean", "aurora"} {
		for _, mode := range []string{"dark", "light"} {
			th, ok := r.Get(name + "-" + mode)
			if assert.True(t, ok, "%s-%s", name, mode) {
				assert.NoError(t, th.validate())
			}
		}
	}
	assert.Len(t, r.Names(), 16)
}

func writeTheme(t *testing.T, dir, file, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
}

func TestThemeLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeTheme(t, dir, "solarized.yaml", `
mode: dark
colors:
  primary: "#268bd2"
  foreground: "#839496"
  background: "#002b36"
`)
	writeTheme(t, dir, "broken.yml", "colors: [")
	writeTheme(t, dir, "incomplete.yaml", "name: half\ncolors:\n  primary: \"#fff\"\n")
	writeTheme(t, dir, "notes.txt", "ignored")

	r := NewThemeRegistry(nil)
	require.NoError(t, r.LoadDir(dir))

	th := r.Resolve("solarized")
	assert.Equal(t, "solarized-dark", th.ID())
	assert.EqualValues(t, "#268bd2", th.Colors.Primary)
	_, ok := r.Get("half")
	assert.False(t, ok)

	// Reloading drops themes whose files are gone.
	require.NoError(t, os.Remove(filepath.Join(dir, "solarized.yaml")))
	require.NoError(t, r.LoadDir(dir))
	_, ok = r.Get("solarized-dark")
	assert.False(t, ok)

	assert.NoError(t, r.LoadDir(filepath.Join(dir, "missing")))
}

func TestThemeOverridesPreset(t *testing.T) {
	dir := t.TempDir()
	writeTheme(t, dir, "nord.yaml", "name: nord\nmode: dark\ncolors:\n  primary: \"#000000\"\n  foreground: \"#ffffff\"\n")

	r := NewThemeRegistry(nil)
	require.NoError(t, r.LoadDir(dir))
	assert.EqualValues(t, "#000000", r.Resolve("nord").Colors.Primary)

	require.NoError(t, os.Remove(filepath.Join(dir, "nord.yaml")))
	require.NoError(t, r.LoadDir(dir))
	assert.EqualValues(t, "#88c0d0", r.Resolve("nord").Colors.Primary)
}

func TestThemeWatch(t *testing.T) {
	dir := t.TempDir()
	r := NewThemeRegistry(nil)
	require.NoError(t, r.LoadDir(dir))

	changed := make(chan struct{}, 8)
	r.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Watch(ctx, dir))

	writeTheme(t, dir, "midnight.yaml", "mode: dark\ncolors:\n  primary: \"#123456\"\n  foreground: \"#eeeeee\"\n")
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after writing a theme file")
	}
	require.Eventually(t, func() bool {
		_, ok := r.Get("midnight-dark")
		return ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestThemeStyles(t *testing.T) {
	th := NewThemeRegistry(nil).Resolve("dracula-dark")
	s := th.Styles()
	assert.Equal(t, th.Colors.Primary, s.Title.GetForeground())
	assert.True(t, s.Title.GetBold())
	assert.True(t, s.System.GetItalic())
}
