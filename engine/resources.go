package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/binding"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/layout"
)

// DefaultFont 是文档未声明任何字体时使用的内置字体。
const DefaultFont = "Body"

var defaultColor = area.Color{R: 30, G: 30, B: 30}

// style 是资源区声明的命名样式，Props 在解析继承后包含全部属性。
type style struct {
	Name    string
	Extends string
	Props   map[string]string
}

type imageResource struct {
	Src    string
	Width  int
	Height int
}

// resources 收集 resources 段中的字体、颜色、图片与样式。
type resources struct {
	fonts  map[string]area.FontResource
	colors map[string]area.Color
	images map[string]imageResource
	styles map[string]style
}

func collectResources(doc *dsl.Document) (*resources, error) {
	res := &resources{
		fonts:  map[string]area.FontResource{},
		colors: map[string]area.Color{},
		images: map[string]imageResource{},
		styles: map[string]style{},
	}
	rawStyles := map[string]style{}

	for _, section := range doc.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			cmd := stmt.Command
			if cmd == nil || len(cmd.Args) == 0 {
				continue
			}
			switch cmd.Name {
			case "font":
				font := parseFontResource(cmd)
				res.fonts[font.Name] = font
			case "color":
				name, value := parseColorResource(cmd)
				c, err := parseColor(value, res.colors)
				if err != nil {
					return nil, fmt.Errorf("%s: 颜色 %s: %w", cmd.Pos, name, err)
				}
				res.colors[name] = c
			case "image":
				img, err := parseImageResource(cmd)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", cmd.Pos, err)
				}
				res.images[cmd.Args[0].Value] = img
			case "style":
				s := parseStyleResource(cmd)
				rawStyles[s.Name] = s
			}
		}
	}

	if _, ok := res.fonts[DefaultFont]; !ok {
		res.fonts[DefaultFont] = area.FontResource{Name: DefaultFont, Src: "builtin:go-regular"}
	}

	styles, err := resolveStyles(rawStyles)
	if err != nil {
		return nil, err
	}
	res.styles = styles
	return res, nil
}

func collectMeta(doc *dsl.Document, data *binding.Data) area.DocumentMeta {
	meta := area.DocumentMeta{Creator: "quire"}
	for _, section := range doc.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			val := binding.Interpolate(valueToString(stmt.Assignment.Value), data)
			switch strings.ToLower(stmt.Assignment.Key) {
			case "title":
				meta.Title = val
			case "author":
				meta.Author = val
			case "subject":
				meta.Subject = val
			case "creator":
				meta.Creator = val
			case "keywords":
				meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) area.FontResource {
	font := area.FontResource{Name: cmd.Args[0].Value}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		switch stmt.Assignment.Key {
		case "src":
			font.Src = valueToString(stmt.Assignment.Value)
		case "style":
			font.Style = valueToString(stmt.Assignment.Value)
		}
	}
	return font
}

func parseImageResource(cmd *dsl.Command) (imageResource, error) {
	var img imageResource
	if cmd.Block == nil {
		return img, nil
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		switch stmt.Assignment.Key {
		case "src":
			img.Src = val
		case "width", "height":
			v, ok := layout.ParseMpt(val)
			if !ok {
				return img, fmt.Errorf("图片 %s 的 %s 无法解析: %s", cmd.Args[0].Value, stmt.Assignment.Key, val)
			}
			if stmt.Assignment.Key == "width" {
				img.Width = v
			} else {
				img.Height = v
			}
		}
	}
	return img, nil
}

func parseStyleResource(cmd *dsl.Command) style {
	s := style{Name: cmd.Args[0].Value, Props: map[string]string{}}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		s.Extends = cmd.Args[2].Value
	}
	if cmd.Block == nil {
		return s
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		if val := valueToString(stmt.Assignment.Value); val != "" {
			s.Props[stmt.Assignment.Key] = val
		}
	}
	return s
}

// resolveStyles 展开 extends 继承链，检测未定义的父样式与循环继承。
func resolveStyles(styles map[string]style) (map[string]style, error) {
	resolved := map[string]style{}
	visiting := map[string]bool{}

	var dfs func(name string) (style, error)
	dfs = func(name string) (style, error) {
		if s, ok := resolved[name]; ok {
			return s, nil
		}
		s, ok := styles[name]
		if !ok {
			return style{}, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if s.Extends != "" {
			parent, err := dfs(s.Extends)
			if err != nil {
				return style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range s.Props {
			props[k] = v
		}
		s.Props = props
		resolved[name] = s
		delete(visiting, name)
		return s, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// parseColorResource 读取 `color Name = value`，value 可以是 #hex 或 rgb(...)。
func parseColorResource(cmd *dsl.Command) (string, string) {
	name := cmd.Args[0].Value
	rest := cmd.Args[1:]
	if len(rest) > 0 && rest[0].Value == "=" {
		rest = rest[1:]
	}
	return name, joinRaw(rest)
}

func joinRaw(lexemes []*dsl.Lexeme) string {
	var b strings.Builder
	for _, l := range lexemes {
		b.WriteString(l.Raw)
	}
	return b.String()
}

// parseColor 解析命名颜色、#rgb/#rrggbb/#rrggbbaa 以及 rgb(r, g, b)。
// rgb 的分量可以是 0-255 的整数，也可以是相对 255 的百分比。
func parseColor(value string, named map[string]area.Color) (area.Color, error) {
	value = strings.TrimSpace(value)
	if c, ok := named[value]; ok {
		return c, nil
	}
	if strings.HasPrefix(value, "rgb(") && strings.HasSuffix(value, ")") {
		parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(value, "rgb("), ")"), ",")
		if len(parts) != 3 {
			return area.Color{}, fmt.Errorf("rgb() 需要三个分量: %s", value)
		}
		var comps [3]int
		for i, p := range parts {
			v, err := colorComponent(strings.TrimSpace(p))
			if err != nil {
				return area.Color{}, fmt.Errorf("颜色值 %s 无法解析: %w", value, err)
			}
			comps[i] = v
		}
		return area.Color{R: comps[0], G: comps[1], B: comps[2]}, nil
	}
	if !strings.HasPrefix(value, "#") {
		return area.Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	hex := strings.TrimPrefix(value, "#")
	var pairs []string
	switch len(hex) {
	case 3:
		for i := range 3 {
			pairs = append(pairs, strings.Repeat(hex[i:i+1], 2))
		}
	case 6, 8:
		pairs = []string{hex[0:2], hex[2:4], hex[4:6]}
	default:
		return area.Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	var comps [3]int
	for i, h := range pairs {
		v, err := hexByte(h)
		if err != nil {
			return area.Color{}, fmt.Errorf("颜色值 %s 无法解析: %w", value, err)
		}
		comps[i] = v
	}
	if len(hex) == 8 {
		if _, err := hexByte(hex[6:8]); err != nil {
			return area.Color{}, fmt.Errorf("颜色值 %s 无法解析: %w", value, err)
		}
	}
	return area.Color{R: comps[0], G: comps[1], B: comps[2]}, nil
}

func colorComponent(v string) (int, error) {
	if strings.HasSuffix(v, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil {
			return 0, err
		}
		return clampByte(int(f*255/100 + 0.5)), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return clampByte(n), nil
}

func clampByte(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return v
}

func hexByte(s string) (int, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	case val.Expr != nil:
		var builder strings.Builder
		for _, part := range val.Expr.Parts {
			builder.WriteString(part.Raw)
		}
		return builder.String()
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array != nil {
		out := make([]string, 0, len(val.Array.Values))
		for _, item := range val.Array.Values {
			if s := valueToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := valueToString(val); s != "" {
		return []string{s}
	}
	return nil
}
