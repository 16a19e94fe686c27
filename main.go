package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/binding"
	"github.com/ByLCY/quire/config"
	"github.com/ByLCY/quire/diag"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/engine"
	"github.com/ByLCY/quire/markdown"
	"github.com/ByLCY/quire/renderer"
	canvasrenderer "github.com/ByLCY/quire/renderer/canvas"
)

func main() {
	input := flag.String("in", "examples/demo.quire", "DSL 或 Markdown（.md）文件路径")
	output := flag.String("out", "output/demo.pdf", "PDF 输出路径")
	debug := flag.String("debug", "", "区域树调试 JSON 输出路径")
	dataJSON := flag.String("data", "", "绑定到 DSL 的 JSON 数据，@path 表示从文件读取")
	configPath := flag.String("config", "", "配置文件（.toml/.yaml）")
	parallel := flag.Bool("parallel", false, "并行排版各个 sequence（覆盖配置文件）")
	flag.Parse()

	opts, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取配置失败: %v\n", err)
		os.Exit(2)
	}
	if *parallel {
		opts.Layout.Parallel = true
	}
	logger := opts.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	r := canvasrenderer.NewRenderer(filepath.Dir(*input))
	if err := run(*input, *output, *debug, *dataJSON, opts, logger, r); err != nil {
		logger.Error("生成 PDF 失败", "err", err)
		os.Exit(1)
	}
	logger.Info("已生成 PDF", "out", *output)
}

// run 串联解析、排版与渲染。部分序列失败时仍输出成功的页面，并返回错误。
func run(inputPath, outputPath, debugPath, dataArg string, opts config.Options, logger *slog.Logger, r *canvasrenderer.Renderer) error {
	doc, err := load(inputPath, dataArg, opts)
	if err != nil {
		return err
	}

	res, buildErr := engine.Build(doc, engine.Options{
		Params:   opts.Params(),
		Measurer: r,
		Sink:     diag.NewLogSink(logger),
		Parallel: opts.Layout.Parallel,
	})
	if res == nil {
		return fmt.Errorf("排版失败: %w", buildErr)
	}
	for _, f := range res.Failures {
		logger.Error("序列排版失败", "sequence", f.Sequence, "err", f.Err)
	}

	if debugPath != "" {
		if err := writeDebug(res.Tree, debugPath); err != nil {
			return err
		}
	}
	if len(res.Tree.Pages) == 0 {
		return fmt.Errorf("没有可输出的页面: %w", buildErr)
	}
	if err := render(r, res.Tree, outputPath); err != nil {
		return err
	}
	if buildErr != nil {
		return fmt.Errorf("部分序列排版失败: %w", buildErr)
	}
	return nil
}

// load 根据扩展名读取 DSL 或 Markdown，得到排版输入。
func load(inputPath, dataArg string, opts config.Options) (*engine.Document, error) {
	src, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("无法读取输入文件 %s: %w", inputPath, err)
	}
	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".md", ".markdown":
		doc, err := markdown.Convert(src, opts)
		if err != nil {
			return nil, fmt.Errorf("转换 Markdown 失败: %w", err)
		}
		return doc, nil
	}

	ast, err := dsl.ParseString(string(src))
	if err != nil {
		return nil, fmt.Errorf("解析 DSL 失败: %w", err)
	}
	data, err := loadData(dataArg)
	if err != nil {
		return nil, err
	}
	policy, err := opts.OverflowPolicy()
	if err != nil {
		return nil, err
	}
	doc, err := engine.FromDSLWithDefaults(ast, data, engine.Defaults{Overflow: policy})
	if err != nil {
		return nil, fmt.Errorf("转换 DSL 失败: %w", err)
	}
	return doc, nil
}

func loadData(arg string) (*binding.Data, error) {
	if arg == "" {
		return nil, nil
	}
	raw := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("读取数据文件 %s 失败: %w", path, err)
		}
	}
	data, err := binding.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 data JSON 失败: %w", err)
	}
	return data, nil
}

func render(r renderer.Renderer, tree *area.Tree, outputPath string) error {
	if r == nil {
		return errors.New("renderer 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	pdfBytes, err := r.Render(tree)
	if err != nil {
		return fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	if err := os.WriteFile(outputPath, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("写入 PDF 文件失败: %w", err)
	}
	return nil
}

func writeDebug(tree *area.Tree, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := area.WriteDebugJSON(tree, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
