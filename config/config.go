// Package config 读取排版引擎与命令行的配置，支持 TOML 与 YAML。
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/quire/engine"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/pagination"
)

// Options 是完整的配置。零值不可用，请从 Default 开始。
type Options struct {
	Layout   Layout   `toml:"layout" yaml:"layout"`
	Markdown Markdown `toml:"markdown" yaml:"markdown"`
	Log      Log      `toml:"log" yaml:"log"`
}

// Layout 控制断行/断页策略。
type Layout struct {
	Tolerance       float64 `toml:"tolerance" yaml:"tolerance"`
	FlaggedDemerits int     `toml:"flagged_demerits" yaml:"flagged_demerits"`
	Orphans         int     `toml:"orphans" yaml:"orphans"`
	Widows          int     `toml:"widows" yaml:"widows"`
	// Overflow 是未声明 overflow 的模板使用的策略：error | warn-and-clip | allow。
	Overflow string `toml:"overflow" yaml:"overflow"`
	Parallel bool   `toml:"parallel" yaml:"parallel"`
}

// Markdown 是 Markdown 输入使用的页面几何与字体。
type Markdown struct {
	Paper      string `toml:"paper" yaml:"paper"`
	Landscape  bool   `toml:"landscape" yaml:"landscape"`
	Margin     string `toml:"margin" yaml:"margin"`
	FontSize   string `toml:"font_size" yaml:"font_size"`
	LineHeight string `toml:"line_height" yaml:"line_height"`
	Font       string `toml:"font" yaml:"font"`
	BoldFont   string `toml:"bold_font" yaml:"bold_font"`
	ItalicFont string `toml:"italic_font" yaml:"italic_font"`
	MonoFont   string `toml:"mono_font" yaml:"mono_font"`
	// Footer 为 true 时在页脚居中打印页码。
	Footer bool `toml:"footer" yaml:"footer"`
}

// Log 配置 slog 输出。
type Log struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // text | json
}

// Default returns the built-in configuration.
func Default() Options {
	p := layout.DefaultParams()
	return Options{
		Layout: Layout{
			Tolerance:       p.Tolerance,
			FlaggedDemerits: p.FlaggedDemerits,
			Orphans:         p.Orphans,
			Widows:          p.Widows,
			Overflow:        pagination.PolicyWarnAndClip.String(),
		},
		Markdown: Markdown{
			Paper:      "A4",
			Margin:     "20mm",
			FontSize:   "11pt",
			LineHeight: "1.4x",
			Font:       "builtin:go-regular",
			BoldFont:   "builtin:go-bold",
			ItalicFont: "builtin:go-italic",
			MonoFont:   "builtin:go-mono",
			Footer:     true,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load 读取配置文件并覆盖默认值；按扩展名选择 TOML 或 YAML。path 为空时返回默认值。
func Load(path string) (Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &opts)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &opts)
	default:
		return opts, fmt.Errorf("不支持的配置文件格式 %q（仅支持 .toml/.yaml/.yml）", ext)
	}
	if err != nil {
		return opts, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("配置文件 %s: %w", path, err)
	}
	return opts, nil
}

// Validate 检查取值范围，返回所有问题合并后的错误。
func (o Options) Validate() error {
	var errs []error
	if o.Layout.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("layout.tolerance 必须大于 0，当前为 %g", o.Layout.Tolerance))
	}
	if o.Layout.FlaggedDemerits < 0 {
		errs = append(errs, fmt.Errorf("layout.flagged_demerits 不能为负数"))
	}
	if o.Layout.Orphans < 1 || o.Layout.Widows < 1 {
		errs = append(errs, fmt.Errorf("layout.orphans/widows 至少为 1"))
	}
	if _, err := o.OverflowPolicy(); err != nil {
		errs = append(errs, fmt.Errorf("layout.overflow: %w", err))
	}
	if _, _, ok := engine.PaperSize(o.Markdown.Paper); !ok {
		errs = append(errs, fmt.Errorf("markdown.paper: 未知的纸张 %q", o.Markdown.Paper))
	}
	if _, ok := layout.ParseMpt(o.Markdown.Margin); !ok {
		errs = append(errs, fmt.Errorf("markdown.margin: 无法解析 %q", o.Markdown.Margin))
	}
	if mpt, ok := layout.ParseMpt(o.Markdown.FontSize); !ok || mpt <= 0 {
		errs = append(errs, fmt.Errorf("markdown.font_size: 无法解析 %q", o.Markdown.FontSize))
	}
	if _, ok := layout.ParseLineHeight(o.Markdown.LineHeight); !ok {
		errs = append(errs, fmt.Errorf("markdown.line_height: 无法解析 %q", o.Markdown.LineHeight))
	}
	if _, err := o.Log.level(); err != nil {
		errs = append(errs, err)
	}
	switch o.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format 只能是 text 或 json，当前为 %q", o.Log.Format))
	}
	return errors.Join(errs...)
}

// Params 返回断行/断页参数。
func (o Options) Params() layout.Params {
	return layout.Params{
		Tolerance:       o.Layout.Tolerance,
		FlaggedDemerits: o.Layout.FlaggedDemerits,
		Orphans:         o.Layout.Orphans,
		Widows:          o.Layout.Widows,
	}
}

// OverflowPolicy parses Layout.Overflow.
func (o Options) OverflowPolicy() (pagination.OverflowPolicy, error) {
	return pagination.ParseOverflowPolicy(o.Layout.Overflow)
}

func (l Log) level() (slog.Level, error) {
	var lv slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lv.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lv, nil
}

// NewLogger 按配置创建 text 或 json 格式的 slog.Logger。
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	lv, _ := l.level()
	hopts := &slog.HandlerOptions{Level: lv}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}
