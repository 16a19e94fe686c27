// Package markdown 把 Markdown（含 GFM 表格、删除线与自动链接）转换为排版输入。
package markdown

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/config"
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/engine"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/pagination"
)

// 生成的文档中使用的名称。
const (
	TemplateName = "page"
	SequenceName = "markdown"

	fontBody   = engine.DefaultFont
	fontBold   = "Bold"
	fontItalic = "Italic"
	fontMono   = "Mono"
)

var (
	textColor   = area.Color{R: 30, G: 30, B: 30}
	linkColor   = area.Color{R: 15, G: 98, B: 254}
	codeFill    = area.Color{R: 244, G: 244, B: 244}
	ruleColor   = area.Color{R: 200, G: 200, B: 200}
	headingSize = []float64{2.0, 1.6, 1.3, 1.15, 1.0, 0.9}
)

// Convert 解析 Markdown 并按配置中的页面几何生成单序列文档。
func Convert(src []byte, opts config.Options) (*engine.Document, error) {
	md := opts.Markdown
	size, ok := layout.ParseMpt(md.FontSize)
	if !ok || size <= 0 {
		return nil, fmt.Errorf("markdown: 字号无法解析: %s", md.FontSize)
	}
	lh, ok := layout.ParseLineHeight(md.LineHeight)
	if !ok {
		return nil, fmt.Errorf("markdown: 行高无法解析: %s", md.LineHeight)
	}
	table, err := pageTable(opts)
	if err != nil {
		return nil, err
	}

	parser := goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()
	root := parser.Parse(text.NewReader(src))

	c := &converter{src: src, size: size, lineHeight: lh, fonts: map[string]area.FontResource{
		fontBody:   {Name: fontBody, Src: md.Font},
		fontBold:   {Name: fontBold, Src: md.BoldFont, Style: "bold"},
		fontItalic: {Name: fontItalic, Src: md.ItalicFont, Style: "italic"},
		fontMono:   {Name: fontMono, Src: md.MonoFont},
	}}
	flow := content.NewFlow(pagination.RegionBody)
	children, err := c.blocks(root)
	if err != nil {
		return nil, err
	}
	flow.Add(children...)

	seq := &engine.Sequence{
		Name:   SequenceName,
		Master: TemplateName,
		Flow:   flow,
		Static: map[string]*content.Flow{},
	}
	if md.Footer {
		footer := content.NewParagraph(layout.AlignCenter, content.Run{
			Text:  content.PageNumberPlaceholder,
			Style: c.style(fontBody, 0.85),
		})
		seq.Static[pagination.RegionAfter] = content.NewFlow(pagination.RegionAfter, footer)
	}

	return &engine.Document{
		Meta:      area.DocumentMeta{Title: c.title, Creator: "quire"},
		Fonts:     c.fonts,
		Table:     table,
		Sequences: []*engine.Sequence{seq},
	}, nil
}

// pageTable 建立只有一个模板的模板表；开启页脚时 after 区域占用底部页边距内侧。
func pageTable(opts config.Options) (*pagination.Table, error) {
	md := opts.Markdown
	w, h, ok := engine.PaperSize(md.Paper)
	if !ok {
		return nil, fmt.Errorf("markdown: 未知的纸张 %s", md.Paper)
	}
	if md.Landscape {
		w, h = h, w
	}
	margin, ok := layout.ParseMpt(md.Margin)
	if !ok {
		return nil, fmt.Errorf("markdown: 页边距无法解析: %s", md.Margin)
	}
	policy, err := opts.OverflowPolicy()
	if err != nil {
		return nil, fmt.Errorf("markdown: %w", err)
	}
	g := pagination.Geometry{
		Width:    w,
		Height:   h,
		Margin:   pagination.UniformInsets(margin),
		Extents:  map[string]int{},
		Policies: map[string]pagination.OverflowPolicy{},
	}
	for _, r := range []string{pagination.RegionBody, pagination.RegionAfter} {
		g.Policies[r] = policy
	}
	if md.Footer {
		footer := layout.MMToMpt(10)
		g.Extents[pagination.RegionAfter] = footer
		g.BodyMargin.Bottom = footer
	}
	tpl, err := pagination.NewTemplate(TemplateName, g)
	if err != nil {
		return nil, err
	}
	table := pagination.NewTable()
	if err := table.AddTemplate(tpl); err != nil {
		return nil, err
	}
	return table, nil
}

type converter struct {
	src        []byte
	size       int
	lineHeight layout.LineHeightSpec
	fonts      map[string]area.FontResource
	title      string
}

func (c *converter) style(font string, scale float64) content.TextStyle {
	return c.withFont(content.TextStyle{
		Font:       layout.FontSpec{Size: int(float64(c.size) * scale)},
		Color:      textColor,
		LineHeight: c.lineHeight,
	}, font)
}

// withFont 替换字体但保留字号与颜色。
func (c *converter) withFont(style content.TextStyle, font string) content.TextStyle {
	res := c.fonts[font]
	style.Font.Name, style.Font.Src, style.Font.Style = res.Name, res.Src, res.Style
	return style
}

func (c *converter) spacing(scale float64) layout.Spacing {
	opt := int(float64(c.size) * scale)
	return layout.Spacing{Min: opt / 2, Opt: opt, Max: opt * 3 / 2}
}

// blocks 转换 node 的所有块级子节点。
func (c *converter) blocks(node ast.Node) ([]layout.Delegate, error) {
	var out []layout.Delegate
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		d, err := c.block(child)
		if err != nil {
			return nil, err
		}
		if d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *converter) block(node ast.Node) (layout.Delegate, error) {
	switch n := node.(type) {
	case *ast.Heading:
		return c.heading(n), nil
	case *ast.Paragraph, *ast.TextBlock:
		if img := c.soleImage(n); img != nil {
			return img, nil
		}
		p := content.NewParagraph(layout.AlignJustify, c.inlines(n, c.style(fontBody, 1), "")...)
		return content.NewBlock(content.BlockProps{SpaceAfter: c.spacing(0.5)}, p), nil
	case *ast.List:
		return c.list(n)
	case *ast.Blockquote:
		children, err := c.blocks(n)
		if err != nil {
			return nil, err
		}
		return content.NewBlock(content.BlockProps{
			Indent:     c.size * 2,
			SpaceAfter: c.spacing(0.5),
		}, children...), nil
	case *ast.FencedCodeBlock:
		return c.code(n.Lines()), nil
	case *ast.CodeBlock:
		return c.code(n.Lines()), nil
	case *ast.ThematicBreak:
		return &content.Break{}, nil
	case *east.Table:
		return c.table(n), nil
	case *ast.HTMLBlock:
		return nil, nil
	}
	return nil, fmt.Errorf("markdown: 不支持的块级节点 %s", node.Kind())
}

func (c *converter) heading(n *ast.Heading) layout.Delegate {
	scale := headingSize[min(n.Level, len(headingSize))-1]
	runs := c.inlines(n, c.style(fontBold, scale), "")
	p := content.NewParagraph(layout.AlignStart, runs...)
	if c.title == "" && n.Level == 1 {
		c.title = p.Text()
	}
	return content.NewBlock(content.BlockProps{
		SpaceBefore:  c.spacing(scale),
		SpaceAfter:   c.spacing(0.5),
		KeepWithNext: true,
		KeepTogether: true,
		Label:        slug(p.Text()),
	}, p)
}

func (c *converter) list(n *ast.List) (layout.Delegate, error) {
	list := content.NewBlock(content.BlockProps{SpaceAfter: c.spacing(0.5)})
	number := n.Start
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if n.IsOrdered() {
			marker = strconv.Itoa(number) + "."
			number++
		}
		children, err := c.blocks(item)
		if err != nil {
			return nil, err
		}
		// 标记并入第一个段落的行首
		if len(children) > 0 {
			if first, ok := firstParagraph(children[0]); ok {
				first.Runs = append([]content.Run{{Text: marker + " ", Style: c.style(fontBody, 1)}}, first.Runs...)
			}
		}
		list.Add(content.NewBlock(content.BlockProps{Indent: c.size * 3 / 2}, children...))
	}
	return list, nil
}

func firstParagraph(d layout.Delegate) (*content.Paragraph, bool) {
	switch v := d.(type) {
	case *content.Paragraph:
		return v, true
	case *content.Block:
		if len(v.Children()) > 0 {
			return firstParagraph(v.Children()[0])
		}
	}
	return nil, false
}

// code 把代码块逐行转换为等宽段落，放在灰底块中。
func (c *converter) code(lines *text.Segments) layout.Delegate {
	fill := codeFill
	blk := content.NewBlock(content.BlockProps{
		SpaceAfter:   c.spacing(0.5),
		KeepTogether: lines.Len() <= 8,
		Fill:         &fill,
	})
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(c.src)), "\r\n")
		if line == "" {
			line = " "
		}
		blk.Add(content.NewParagraph(layout.AlignStart, content.Run{Text: line, Style: c.style(fontMono, 0.9)}))
	}
	return blk
}

func (c *converter) table(n *east.Table) layout.Delegate {
	border := ruleColor
	tbl := &content.Table{Columns: len(n.Alignments), Border: &border}
	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		header := row.Kind() == east.KindTableHeader
		r := &content.Row{}
		i := 0
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			align := layout.AlignStart
			if i < len(n.Alignments) {
				switch n.Alignments[i] {
				case east.AlignCenter:
					align = layout.AlignCenter
				case east.AlignRight:
					align = layout.AlignEnd
				}
			}
			font := fontBody
			if header {
				font = fontBold
			}
			p := content.NewParagraph(align, c.inlines(cell, c.style(font, 0.95), "")...)
			r.Cells = append(r.Cells, &content.Cell{Content: []layout.Delegate{p}})
			i++
		}
		if header {
			tbl.Header = append(tbl.Header, r)
		} else {
			tbl.Rows = append(tbl.Rows, r)
		}
	}
	if tbl.Columns == 0 && len(tbl.Header) > 0 {
		tbl.Columns = len(tbl.Header[0].Cells)
	}
	return tbl
}

// soleImage 处理只包含一张图片的段落。
func (c *converter) soleImage(n ast.Node) layout.Delegate {
	img, ok := n.FirstChild().(*ast.Image)
	if !ok || img.NextSibling() != nil {
		return nil
	}
	return content.NewBlock(content.BlockProps{SpaceAfter: c.spacing(0.5), KeepTogether: true},
		&content.Image{Src: string(img.Destination), Fit: "contain"})
}

// inlines 收集行内节点的文字；强调、行内代码与链接切换样式。
func (c *converter) inlines(node ast.Node, style content.TextStyle, link string) []content.Run {
	var runs []content.Run
	add := func(s string, st content.TextStyle) {
		if s == "" {
			return
		}
		// 相邻且样式相同的片段合并
		if n := len(runs); n > 0 && runs[n-1].Style == st && runs[n-1].Link == link {
			runs[n-1].Text += s
			return
		}
		runs = append(runs, content.Run{Text: s, Style: st, Link: link})
	}
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			add(string(n.Segment.Value(c.src)), style)
			if n.SoftLineBreak() || n.HardLineBreak() {
				add(" ", style)
			}
		case *ast.String:
			add(string(n.Value), style)
		case *ast.CodeSpan:
			add(plain(n, c.src), c.withFont(style, fontMono))
		case *ast.Emphasis:
			inner := style
			if n.Level >= 2 {
				inner = c.withFont(style, fontBold)
			} else if inner.Font.Name != fontBold {
				inner = c.withFont(style, fontItalic)
			}
			runs = append(runs, c.inlines(n, inner, link)...)
		case *ast.Link:
			inner := style
			inner.Color = linkColor
			runs = append(runs, c.inlines(n, inner, string(n.Destination))...)
		case *ast.AutoLink:
			inner := style
			inner.Color = linkColor
			runs = append(runs, content.Run{Text: string(n.Label(c.src)), Style: inner, Link: string(n.URL(c.src))})
		case *ast.Image:
			add(plain(n, c.src), style)
		case *east.Strikethrough:
			runs = append(runs, c.inlines(n, style, link)...)
		case *east.TaskCheckBox:
			if n.IsChecked {
				add("[x] ", style)
			} else {
				add("[ ] ", style)
			}
		case *ast.RawHTML:
		default:
			runs = append(runs, c.inlines(n, style, link)...)
		}
	}
	return runs
}

// plain 返回节点下所有文字，不区分样式。
func plain(node ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(src))
		case *ast.String:
			buf.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// slug 生成标题的锚点名，例如 "Getting Started" -> "getting-started"。
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
