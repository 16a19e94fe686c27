package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/binding"
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/pagination"
)

// pagePresets 以毫米给出常用纸张的纵向尺寸。
var pagePresets = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"LETTER": {215.9, 279.4},
	"LEGAL":  {215.9, 355.6},
}

// PaperSize returns the portrait size of a named paper (A4, Letter, ...) in millipoints.
func PaperSize(name string) (width, height int, ok bool) {
	base, ok := pagePresets[strings.ToUpper(name)]
	if !ok {
		return 0, 0, false
	}
	return layout.MMToMpt(base[0]), layout.MMToMpt(base[1]), true
}

// defaultMargin 是页面模板未声明 margin 时的页边距（20mm）。
var defaultMargin = layout.MMToMpt(20)

// converter 把 DSL 语法树转换为排版输入。scopes 是 each 嵌套时的数据作用域，内层优先。
type converter struct {
	res      *resources
	scopes   []*binding.Data
	overflow pagination.OverflowPolicy
}

// Defaults 是 DSL 未显式声明时采用的取值。
type Defaults struct {
	// Overflow 是模板与区域未声明 overflow 时的策略。
	Overflow pagination.OverflowPolicy
}

// FromDSL 把解析后的 DSL 文档转换为排版输入。data 为 nil 时不替换 ${} 占位符。
func FromDSL(doc *dsl.Document, data *binding.Data) (*Document, error) {
	return FromDSLWithDefaults(doc, data, Defaults{})
}

// FromDSLWithDefaults is FromDSL with caller supplied defaults.
func FromDSLWithDefaults(doc *dsl.Document, data *binding.Data, defaults Defaults) (*Document, error) {
	if doc == nil {
		return nil, errors.New("engine: 文档为空")
	}
	res, err := collectResources(doc)
	if err != nil {
		return nil, fmt.Errorf("解析资源失败: %w", err)
	}
	c := &converter{res: res, overflow: defaults.Overflow}
	if data != nil {
		c.scopes = []*binding.Data{data}
	}
	out := &Document{
		Meta:  collectMeta(doc, data),
		Fonts: res.fonts,
		Table: pagination.NewTable(),
	}
	for _, section := range doc.Sections {
		if section.Masters == nil {
			continue
		}
		if err := c.collectMasters(section.Masters, out.Table); err != nil {
			return nil, fmt.Errorf("解析 masters 失败: %w", err)
		}
	}
	for _, section := range doc.Sections {
		if section.Sequence == nil {
			continue
		}
		seq, err := c.buildSequence(section.Sequence)
		if err != nil {
			return nil, fmt.Errorf("序列 %s: %w", section.Sequence.Name, err)
		}
		out.Sequences = append(out.Sequences, seq)
	}
	if len(out.Sequences) == 0 {
		return nil, errors.New("engine: 文档没有任何 sequence")
	}
	return out, nil
}

func (c *converter) interpolate(text string) string {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		text = binding.Interpolate(text, c.scopes[i])
	}
	return text
}

// --- masters ---

var regionNames = []string{pagination.RegionBody, pagination.RegionBefore, pagination.RegionAfter, pagination.RegionStart, pagination.RegionEnd}

func (c *converter) collectMasters(sec *dsl.MastersSection, table *pagination.Table) error {
	for _, entry := range sec.Decls {
		switch {
		case entry.Page != nil:
			tpl, err := buildTemplate(entry.Page, c.overflow)
			if err != nil {
				return err
			}
			if err := table.AddTemplate(tpl); err != nil {
				return fmt.Errorf("%s: %w", entry.Page.Pos, err)
			}
		case entry.Sequence != nil:
			decl, err := buildMasterDecl(entry.Sequence)
			if err != nil {
				return err
			}
			if err := table.AddMaster(decl); err != nil {
				return fmt.Errorf("%s: %w", entry.Sequence.Pos, err)
			}
		}
	}
	return nil
}

// buildTemplate 把 page 声明转换为页面模板；未声明 overflow 的区域使用 policy。
func buildTemplate(decl *dsl.PageDecl, policy pagination.OverflowPolicy) (*pagination.Template, error) {
	var width, height int
	if decl.Size.Paper != "" {
		var ok bool
		if width, height, ok = PaperSize(decl.Size.Paper); !ok {
			return nil, fmt.Errorf("%s: 暂不支持的纸张尺寸：%s", decl.Pos, decl.Size.Paper)
		}
	} else {
		var err error
		if width, err = parseLength(decl.Pos, "page", decl.Size.Width); err != nil {
			return nil, err
		}
		if height, err = parseLength(decl.Pos, "page", decl.Size.Height); err != nil {
			return nil, err
		}
	}

	g := pagination.Geometry{
		Margin:   pagination.UniformInsets(defaultMargin),
		Extents:  map[string]int{},
		Policies: map[string]pagination.OverflowPolicy{},
	}
	for _, r := range regionNames {
		g.Policies[r] = policy
	}
	landscape := false
	for _, opt := range decl.Options {
		var err error
		switch {
		case opt.Landscape:
			landscape = true
		case len(opt.Margin) > 0:
			g.Margin, err = parseInsets(decl.Pos, "margin", opt.Margin)
		case len(opt.BodyMargin) > 0:
			g.BodyMargin, err = parseInsets(decl.Pos, "body-margin", opt.BodyMargin)
		case opt.Overflow != "":
			var p pagination.OverflowPolicy
			if p, err = pagination.ParseOverflowPolicy(opt.Overflow); err == nil {
				for _, r := range regionNames {
					g.Policies[r] = p
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", decl.Pos, err)
		}
	}
	if landscape {
		width, height = height, width
	}
	g.Width, g.Height = width, height

	if decl.Regions != nil {
		for _, rd := range decl.Regions.Regions {
			if err := applyRegionDecl(rd, &g); err != nil {
				return nil, err
			}
		}
	}
	tpl, err := pagination.NewTemplate(decl.Name, g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", decl.Pos, err)
	}
	return tpl, nil
}

// applyRegionDecl 把区域声明写入几何：外围区域必须给出 extent，margin 只用于 body。
func applyRegionDecl(rd *dsl.RegionDecl, g *pagination.Geometry) error {
	body := rd.Name == pagination.RegionBody
	switch {
	case body && rd.Extent != "":
		return fmt.Errorf("%s: body 区域没有 extent", rd.Pos)
	case !body && rd.Extent == "":
		return fmt.Errorf("%s: 区域 %s 缺少 extent", rd.Pos, rd.Name)
	case !body:
		v, err := parseLength(rd.Pos, rd.Name, rd.Extent)
		if err != nil {
			return err
		}
		g.Extents[rd.Name] = v
	}
	for _, opt := range rd.Options {
		switch {
		case len(opt.Margin) > 0:
			if !body {
				return fmt.Errorf("%s: margin 只能用于 body 区域", rd.Pos)
			}
			m, err := parseInsets(rd.Pos, "margin", opt.Margin)
			if err != nil {
				return fmt.Errorf("%s: %w", rd.Pos, err)
			}
			g.BodyMargin = m
		case opt.Overflow != "":
			p, err := pagination.ParseOverflowPolicy(opt.Overflow)
			if err != nil {
				return fmt.Errorf("%s: %w", rd.Pos, err)
			}
			g.Policies[rd.Name] = p
		}
	}
	return nil
}

func parseLength(pos lexer.Position, what, v string) (int, error) {
	mpt, ok := layout.ParseMpt(v)
	if !ok {
		return 0, fmt.Errorf("%s: %s 的长度无法解析: %s", pos, what, v)
	}
	return mpt, nil
}

// parseInsets 按 CSS 的 1 到 4 个值语义解析边距。
func parseInsets(pos lexer.Position, key string, raw []string) (pagination.Insets, error) {
	vals := make([]int, 0, len(raw))
	for _, v := range raw {
		mpt, err := parseLength(pos, key, v)
		if err != nil {
			return pagination.Insets{}, err
		}
		vals = append(vals, mpt)
	}
	switch len(vals) {
	case 1:
		return pagination.UniformInsets(vals[0]), nil
	case 2:
		return pagination.Insets{Top: vals[0], Right: vals[1], Bottom: vals[0], Left: vals[1]}, nil
	case 3:
		return pagination.Insets{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[1]}, nil
	case 4:
		return pagination.Insets{Top: vals[0], Right: vals[1], Bottom: vals[2], Left: vals[3]}, nil
	}
	return pagination.Insets{}, fmt.Errorf("%s: %s 需要 1 到 4 个长度", pos, key)
}

// buildMasterDecl 把 sequence-master 声明转换为子序列列表。
func buildMasterDecl(sm *dsl.SequenceMasterDecl) (*pagination.MasterDecl, error) {
	decl := &pagination.MasterDecl{Name: sm.Name}
	for _, sub := range sm.Subsequences {
		switch {
		case sub.Single != nil:
			decl.Subsequences = append(decl.Subsequences, pagination.SubsequenceDecl{Kind: pagination.SubSingle, Master: *sub.Single})
		case sub.Repeat != nil:
			decl.Subsequences = append(decl.Subsequences, pagination.SubsequenceDecl{
				Kind:       pagination.SubRepeat,
				Master:     sub.Repeat.Master,
				MaxRepeats: repeats(sub.Repeat.Times),
			})
		case sub.Alternatives != nil:
			conds := make([]pagination.Condition, 0, len(sub.Alternatives.Cases))
			for _, w := range sub.Alternatives.Cases {
				cond, err := pagination.ParseCondition(w.Conditions, w.Master)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", w.Pos, err)
				}
				conds = append(conds, cond)
			}
			decl.Subsequences = append(decl.Subsequences, pagination.SubsequenceDecl{
				Kind:       pagination.SubAlternatives,
				MaxRepeats: repeats(sub.Alternatives.Times),
				Conditions: conds,
			})
		}
	}
	return decl, nil
}

func repeats(times *int) int {
	if times == nil {
		return pagination.Unbounded
	}
	return *times
}

// --- sequences ---

func (c *converter) buildSequence(sec *dsl.SequenceSection) (*Sequence, error) {
	a := parseAttrs(&dsl.Command{Pos: sec.Pos, Args: sec.Params}, false)
	seq := &Sequence{Name: sec.Name, Master: a.get("master"), Static: map[string]*content.Flow{}}
	if seq.Master == "" {
		return nil, fmt.Errorf("%s: sequence 缺少 master", sec.Pos)
	}
	if v := a.get("initial-page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%s: initial-page 需要正整数: %s", sec.Pos, v)
		}
		seq.InitialPage = n
	}
	fpc, err := ParseForcePageCount(a.get("force-page-count"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sec.Pos, err)
	}
	seq.ForcePageCount = fpc

	if sec.Block == nil {
		return seq, nil
	}
	for _, stmt := range sec.Block.Statements {
		cmd := stmt.Command
		if cmd == nil {
			continue
		}
		switch cmd.Name {
		case "flow":
			children, err := c.children(cmd.Block)
			if err != nil {
				return nil, err
			}
			if seq.Flow == nil {
				seq.Flow = content.NewFlow(pagination.RegionBody)
			}
			seq.Flow.Add(children...)
		case "static":
			if len(cmd.Args) == 0 {
				return nil, fmt.Errorf("%s: static 需要区域名称", cmd.Pos)
			}
			region := cmd.Args[0].Value
			switch region {
			case pagination.RegionBefore, pagination.RegionAfter, pagination.RegionStart, pagination.RegionEnd:
			default:
				return nil, fmt.Errorf("%s: static 不能用于区域 %s", cmd.Pos, region)
			}
			children, err := c.children(cmd.Block)
			if err != nil {
				return nil, err
			}
			seq.Static[region] = content.NewFlow(region, children...)
		default:
			return nil, fmt.Errorf("%s: sequence 中未知的命令 %s", cmd.Pos, cmd.Name)
		}
	}
	return seq, nil
}

// children 转换块级内容列表。
func (c *converter) children(block *dsl.Block) ([]layout.Delegate, error) {
	if block == nil {
		return nil, nil
	}
	var out []layout.Delegate
	for _, stmt := range block.Statements {
		switch {
		case stmt.Text != nil:
			style, err := c.textStyle(attrs{values: map[string][]string{}})
			if err != nil {
				return nil, err
			}
			out = append(out, content.NewParagraph(layout.AlignStart, content.Run{Text: c.interpolate(string(stmt.Text.Value)), Style: style}))
		case stmt.Command != nil:
			ds, err := c.command(stmt.Command)
			if err != nil {
				return nil, err
			}
			out = append(out, ds...)
		}
	}
	return out, nil
}

func (c *converter) command(cmd *dsl.Command) ([]layout.Delegate, error) {
	switch cmd.Name {
	case "block":
		b, err := c.block(cmd)
		return one(b, err)
	case "text":
		p, err := c.paragraph(cmd)
		return one(p, err)
	case "image":
		img, err := c.image(cmd)
		return one(img, err)
	case "table":
		t, err := c.table(cmd)
		return one(t, err)
	case "space":
		a := attrs{values: map[string][]string{"size": lexemeValues(cmd.Args)}, pos: cmd.Pos.String()}
		size, err := a.spacing("size")
		if err != nil {
			return nil, err
		}
		return []layout.Delegate{&content.Space{Size: size}}, nil
	case "break":
		if len(cmd.Args) > 0 && cmd.Args[0].Value != "page" {
			return nil, fmt.Errorf("%s: 只支持 break page", cmd.Pos)
		}
		return []layout.Delegate{&content.Break{}}, nil
	case "each":
		var out []layout.Delegate
		err := c.each(cmd, func() error {
			ds, err := c.children(cmd.Block)
			out = append(out, ds...)
			return err
		})
		return out, err
	}
	return nil, fmt.Errorf("%s: 未知的命令 %s", cmd.Pos, cmd.Name)
}

func one[T layout.Delegate](d T, err error) ([]layout.Delegate, error) {
	if err != nil {
		return nil, err
	}
	return []layout.Delegate{d}, nil
}

func lexemeValues(args []*dsl.Lexeme) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		out = append(out, a.Value)
	}
	return out
}

// each 对 `each path { ... }` 中数组的每个元素执行 fn，元素作为最内层数据作用域。
func (c *converter) each(cmd *dsl.Command, fn func() error) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("%s: each 需要数据路径", cmd.Pos)
	}
	if len(c.scopes) == 0 {
		return nil
	}
	path := joinRaw(cmd.Args)
	var err error
	outer := c.scopes[len(c.scopes)-1]
	saved := c.scopes
	outer.Each(path, func(_ int, item *binding.Data) bool {
		c.scopes = append(saved[:len(saved):len(saved)], item)
		err = fn()
		return err == nil
	})
	c.scopes = saved
	return err
}

func (c *converter) block(cmd *dsl.Command) (*content.Block, error) {
	a := parseAttrs(cmd, false)
	var props content.BlockProps
	var err error
	if props.SpaceBefore, err = a.spacing("space-before"); err != nil {
		return nil, err
	}
	if props.SpaceAfter, err = a.spacing("space-after"); err != nil {
		return nil, err
	}
	if props.Indent, err = a.length("indent"); err != nil {
		return nil, err
	}
	props.KeepWithNext = a.flag("keep-with-next")
	props.KeepWithPrevious = a.flag("keep-with-previous")
	props.KeepTogether = a.flag("keep-together")
	props.BreakBefore = a.flag("break-before")
	props.BreakAfter = a.flag("break-after")
	props.Label = a.get("label")
	if props.Fill, err = c.optionalColor(a, "fill"); err != nil {
		return nil, err
	}
	if props.Border, err = c.optionalColor(a, "border"); err != nil {
		return nil, err
	}
	children, err := c.children(cmd.Block)
	if err != nil {
		return nil, err
	}
	return content.NewBlock(props, children...), nil
}

func (c *converter) optionalColor(a attrs, key string) (*area.Color, error) {
	v := a.get(key)
	if v == "" {
		return nil, nil
	}
	col, err := parseColor(v, c.res.colors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.pos, err)
	}
	return &col, nil
}

// mergeStyle 把命名样式的属性与命令上的内联属性合并，内联优先。
func (c *converter) mergeStyle(a attrs) (attrs, error) {
	out := attrs{style: a.style, values: map[string][]string{}, pos: a.pos}
	if a.style != "" {
		s, ok := c.res.styles[a.style]
		if !ok {
			// 允许直接把字体名当作样式名使用
			if _, isFont := c.res.fonts[a.style]; !isFont {
				return out, fmt.Errorf("%s: style %s 未定义", a.pos, a.style)
			}
			out.values["font"] = []string{a.style}
		}
		for k, v := range s.Props {
			out.values[k] = []string{v}
		}
	}
	for k, v := range a.values {
		out.values[k] = v
	}
	return out, nil
}

// textStyle 由合并后的属性构造文字样式。
func (c *converter) textStyle(a attrs) (content.TextStyle, error) {
	fontName := a.get("font")
	if fontName == "" {
		fontName = DefaultFont
	}
	font, ok := c.res.fonts[fontName]
	if !ok {
		return content.TextStyle{}, fmt.Errorf("%s: 字体 %s 未定义", a.pos, fontName)
	}
	size := 12 * layout.MptPerPt
	if a.has("size") {
		v, err := a.length("size")
		if err != nil {
			return content.TextStyle{}, err
		}
		size = v
	}
	style := content.TextStyle{
		Font:  layout.FontSpec{Name: font.Name, Src: font.Src, Style: font.Style, Size: size},
		Color: defaultColor,
	}
	if v := a.get("color"); v != "" {
		col, err := parseColor(v, c.res.colors)
		if err != nil {
			return content.TextStyle{}, fmt.Errorf("%s: %w", a.pos, err)
		}
		style.Color = col
	}
	if v := a.get("line-height"); v != "" {
		lh, ok := layout.ParseLineHeight(v)
		if !ok {
			return content.TextStyle{}, fmt.Errorf("%s: line-height 无法解析: %s", a.pos, v)
		}
		style.LineHeight = lh
	}
	return style, nil
}

// paragraph 解析 `text Style [attrs] { "..." span S { ... } link "url" { ... } page-number }`。
func (c *converter) paragraph(cmd *dsl.Command) (*content.Paragraph, error) {
	a, err := c.mergeStyle(parseAttrs(cmd, true))
	if err != nil {
		return nil, err
	}
	style, err := c.textStyle(a)
	if err != nil {
		return nil, err
	}
	align, ok := layout.ParseAlignment(a.get("align"))
	if !ok {
		return nil, fmt.Errorf("%s: 未知的对齐方式 %s", cmd.Pos, a.get("align"))
	}
	p := content.NewParagraph(align)
	p.KeepTogether = a.flag("keep-together")
	if p.TextIndent, err = a.length("text-indent"); err != nil {
		return nil, err
	}
	if err := c.runs(cmd.Block, style, "", p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *converter) runs(block *dsl.Block, style content.TextStyle, link string, p *content.Paragraph) error {
	if block == nil {
		return nil
	}
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			p.Runs = append(p.Runs, content.Run{Text: c.interpolate(string(stmt.Text.Value)), Style: style, Link: link})
			continue
		}
		cmd := stmt.Command
		if cmd == nil {
			continue
		}
		switch cmd.Name {
		case "span":
			inner, err := c.spanStyle(cmd, style)
			if err != nil {
				return err
			}
			if err := c.runs(cmd.Block, inner, link, p); err != nil {
				return err
			}
		case "link":
			if len(cmd.Args) == 0 {
				return fmt.Errorf("%s: link 需要目标地址", cmd.Pos)
			}
			target := c.interpolate(cmd.Args[0].Value)
			inner, err := c.spanStyle(&dsl.Command{Pos: cmd.Pos, Args: cmd.Args[1:]}, style)
			if err != nil {
				return err
			}
			if err := c.runs(cmd.Block, inner, target, p); err != nil {
				return err
			}
		case "page-number":
			p.Runs = append(p.Runs, content.Run{Text: content.PageNumberPlaceholder, Style: style, Link: link})
		default:
			return fmt.Errorf("%s: 文本中未知的命令 %s", cmd.Pos, cmd.Name)
		}
	}
	return nil
}

// spanStyle 在外层样式上叠加 span 的样式与内联属性。
func (c *converter) spanStyle(cmd *dsl.Command, outer content.TextStyle) (content.TextStyle, error) {
	a, err := c.mergeStyle(parseAttrs(cmd, true))
	if err != nil {
		return outer, err
	}
	if len(a.values) == 0 {
		return outer, nil
	}
	if !a.has("font") {
		a.values["font"] = []string{outer.Font.Name}
	}
	inner, err := c.textStyle(a)
	if err != nil {
		return outer, err
	}
	if !a.has("size") {
		inner.Font.Size = outer.Font.Size
	}
	if !a.has("color") {
		inner.Color = outer.Color
	}
	if !a.has("line-height") {
		inner.LineHeight = outer.LineHeight
	}
	return inner, nil
}

// image 解析 `image Name|"src" [width ..] [height ..] [fit ..] [opacity ..]`。
func (c *converter) image(cmd *dsl.Command) (*content.Image, error) {
	a := parseAttrs(cmd, true)
	if a.style == "" {
		return nil, fmt.Errorf("%s: image 需要资源名或路径", cmd.Pos)
	}
	img := &content.Image{Src: c.interpolate(a.style), Fit: a.get("fit")}
	if r, ok := c.res.images[a.style]; ok {
		img.Src, img.Width, img.Height = r.Src, r.Width, r.Height
	}
	var err error
	if a.has("width") {
		if img.Width, err = a.length("width"); err != nil {
			return nil, err
		}
	}
	if a.has("height") {
		if img.Height, err = a.length("height"); err != nil {
			return nil, err
		}
	}
	if img.Opacity, err = a.number("opacity", 1); err != nil {
		return nil, err
	}
	return img, nil
}

// table 解析 `table columns N [border C] { header { cell {..} } row { cell {..} } each items { row {..} } }`。
func (c *converter) table(cmd *dsl.Command) (*content.Table, error) {
	a := parseAttrs(cmd, false)
	t := &content.Table{}
	cols, err := a.number("columns", 0)
	if err != nil {
		return nil, err
	}
	t.Columns = int(cols)
	if t.Border, err = c.optionalColor(a, "border"); err != nil {
		return nil, err
	}
	if cmd.Block == nil {
		return nil, fmt.Errorf("%s: table 缺少内容", cmd.Pos)
	}
	var rowStmts func(block *dsl.Block) error
	rowStmts = func(block *dsl.Block) error {
		for _, stmt := range block.Statements {
			rc := stmt.Command
			if rc == nil {
				continue
			}
			switch rc.Name {
			case "header", "row":
				row, err := c.row(rc)
				if err != nil {
					return err
				}
				if rc.Name == "header" {
					t.Header = append(t.Header, row)
				} else {
					t.Rows = append(t.Rows, row)
				}
			case "each":
				if rc.Block == nil {
					continue
				}
				inner := rc.Block
				if err := c.each(rc, func() error { return rowStmts(inner) }); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%s: table 中未知的命令 %s", rc.Pos, rc.Name)
			}
		}
		return nil
	}
	if err := rowStmts(cmd.Block); err != nil {
		return nil, err
	}
	if t.Columns <= 0 {
		for _, r := range append(append([]*content.Row(nil), t.Header...), t.Rows...) {
			if len(r.Cells) > t.Columns {
				t.Columns = len(r.Cells)
			}
		}
	}
	return t, nil
}

func (c *converter) row(cmd *dsl.Command) (*content.Row, error) {
	row := &content.Row{}
	if cmd.Block == nil {
		return row, nil
	}
	for _, stmt := range cmd.Block.Statements {
		cc := stmt.Command
		if stmt.Assignment != nil {
			continue
		}
		if cc == nil || cc.Name != "cell" {
			return nil, fmt.Errorf("%s: 表格行中只允许 cell", cmd.Pos)
		}
		a := parseAttrs(cc, false)
		fill, err := c.optionalColor(a, "fill")
		if err != nil {
			return nil, err
		}
		children, err := c.children(cc.Block)
		if err != nil {
			return nil, err
		}
		row.Cells = append(row.Cells, &content.Cell{Content: children, Fill: fill})
	}
	return row, nil
}
