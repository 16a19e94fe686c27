package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/pagination"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Validate())
	assert.Equal(t, layout.DefaultParams(), opts.Params())

	policy, err := opts.OverflowPolicy()
	require.NoError(t, err)
	assert.Equal(t, pagination.PolicyWarnAndClip, policy)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	opts, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), opts)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "quire.toml", `
[layout]
tolerance = 2.5
orphans = 3
overflow = "error"
parallel = true

[markdown]
paper = "Letter"
landscape = true

[log]
level = "debug"
format = "json"
`)
	opts, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2.5, opts.Layout.Tolerance)
	assert.Equal(t, 3, opts.Layout.Orphans)
	assert.Equal(t, 2, opts.Layout.Widows, "未出现的字段保持默认值")
	assert.True(t, opts.Layout.Parallel)
	assert.Equal(t, "Letter", opts.Markdown.Paper)
	assert.True(t, opts.Markdown.Landscape)
	assert.Equal(t, "11pt", opts.Markdown.FontSize)

	policy, err := opts.OverflowPolicy()
	require.NoError(t, err)
	assert.Equal(t, pagination.PolicyError, policy)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "quire.yml", `
layout:
  flagged_demerits: 300
  widows: 1
markdown:
  margin: 15mm
  footer: false
`)
	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 300, opts.Params().FlaggedDemerits)
	assert.Equal(t, 1, opts.Params().Widows)
	assert.Equal(t, "15mm", opts.Markdown.Margin)
	assert.False(t, opts.Markdown.Footer)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "bad.toml", `
[layout]
tolerance = 0
overflow = "explode"

[markdown]
paper = "B9"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layout.tolerance")
	assert.Contains(t, err.Error(), "layout.overflow")
	assert.Contains(t, err.Error(), "markdown.paper")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "quire.ini", "x=1"))
	require.ErrorContains(t, err, "不支持的配置文件格式")

	_, err = Load(writeFile(t, "broken.yaml", "layout: [1, 2"))
	require.ErrorContains(t, err, "解析配置文件")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Log{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "page", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"page":3`)

	require.Error(t, Options{Layout: Default().Layout, Markdown: Default().Markdown, Log: Log{Level: "loud"}}.Validate())
}
