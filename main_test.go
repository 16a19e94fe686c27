package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ByLCY/quire/config"
	canvasrenderer "github.com/ByLCY/quire/renderer/canvas"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunDemo(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "demo.pdf")
	debug := filepath.Join(dir, "debug", "tree.json")
	r := canvasrenderer.NewRenderer("examples")
	if err := run("examples/demo.quire", out, debug, "@examples/demo.json", config.Default(), quietLogger(), r); err != nil {
		t.Fatalf("生成 demo 失败: %v", err)
	}
	pdf, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("输出不是 PDF")
	}
	tree, err := os.ReadFile(debug)
	if err != nil {
		t.Fatalf("缺少调试 JSON: %v", err)
	}
	if !bytes.Contains(tree, []byte(`"Ada"`)) {
		t.Fatalf("调试 JSON 中缺少绑定后的数据")
	}
}

func TestRunMarkdown(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(in, []byte("# Notes\n\nSome *text* here.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "notes.pdf")
	if err := run(in, out, "", "", config.Default(), quietLogger(), canvasrenderer.NewRenderer(dir)); err != nil {
		t.Fatalf("Markdown 生成失败: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("缺少输出文件: %v", err)
	}
}

func TestLoadDataErrors(t *testing.T) {
	if d, err := loadData(""); err != nil || d != nil {
		t.Fatalf("空数据应返回 nil: %v", err)
	}
	if _, err := loadData("{bad"); err == nil {
		t.Fatalf("非法 JSON 应报错")
	}
	if _, err := loadData("@missing.json"); err == nil {
		t.Fatalf("缺失的数据文件应报错")
	}
}
