package main

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/gubarz/cachebust/internal/icons"
	"github.com/gubarz/cachebust/internal/rewrite"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handler = `module.exports = async (req, res) => {
  if (req.method === 'PUT') {
    await update(req.body);
    return res.status(200).json({ updated: true });
  }
  return res.status(405).end();
};
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInjectCommand(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "items", "[id].js")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(handler), 0o644))

	out, err := execute(t, root)
	require.NoError(t, err)
	assert.Contains(t, out, "[id].js: 1 cache-busting header added")
	assert.Contains(t, out, "Files processed: 1")
	assert.Contains(t, out, "Files modified: 1")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "    res.setHeader('Pragma', 'no-cache');\n")

	out, err = execute(t, root)
	require.NoError(t, err)
	assert.Contains(t, out, "[id].js: no changes needed")
	assert.Contains(t, out, "Files modified: 0")
}

func TestInjectCommandMissingRoot(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "api"))
	assert.ErrorIs(t, err, rewrite.ErrRootNotFound)
}

func TestIconsCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app-icon.png")
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 32))))
	require.NoError(t, f.Close())

	outDir := filepath.Join(dir, "public")
	out, err := execute(t, "icons", src, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated icon-192.png")
	assert.Contains(t, out, "Generated icon-512.png")

	for _, size := range icons.DefaultSizes {
		r, err := os.Open(filepath.Join(outDir, icons.FileName(size)))
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(r)
		r.Close()
		require.NoError(t, err)
		assert.Equal(t, size, cfg.Width)
		assert.Equal(t, size, cfg.Height)
	}
}

func TestIconsCommandMissingSource(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "public")
	_, err := execute(t, "icons", filepath.Join(t.TempDir(), "app-icon.jpg"), "--out", outDir)
	assert.ErrorIs(t, err, icons.ErrSourceNotFound)

	_, statErr := os.Stat(outDir)
	assert.True(t, os.IsNotExist(statErr))
}
