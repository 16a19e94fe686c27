package content

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/layout"
)

// PageNumberPlaceholder 在排版时替换为当前页码。
const PageNumberPlaceholder = "{{page}}"

// TextStyle 是一段文字的已解析样式。
type TextStyle struct {
	Font       layout.FontSpec
	Color      area.Color
	LineHeight layout.LineHeightSpec
}

// Run 是使用同一样式的一段文字，可以带链接。
type Run struct {
	Text  string
	Style TextStyle
	Link  string
}

// inlineItem 记录行内元素对应的文字，供生成 Word 使用。
type inlineItem struct {
	run   int
	text  string
	width int
}

type lineLayout struct {
	first    int // 行首 item 的下标
	height   int
	baseline int
	width    int
	words    []area.Word
}

// Paragraph 把若干 run 断成行，再以行为单位参与分页。
type Paragraph struct {
	Runs         []Run
	Align        layout.Alignment
	TextIndent   int
	KeepTogether bool

	lines    []lineLayout
	resume   int // 恢复排版时起始 item 的下标
	lineBase int // 恢复之前已经输出的行数
	done     bool
}

// NewParagraph creates a paragraph.
func NewParagraph(align layout.Alignment, runs ...Run) *Paragraph {
	return &Paragraph{Runs: runs, Align: align}
}

// Text returns the concatenated source text.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// normalizeSpace 合并连续空白为一个空格，保留显式换行。
func normalizeSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if r == '\n' {
			sb.WriteRune(r)
			space = false
			continue
		}
		if unicode.IsSpace(r) {
			if !space {
				sb.WriteByte(' ')
			}
			space = true
			continue
		}
		sb.WriteRune(r)
		space = false
	}
	return sb.String()
}

// PullElements 完成断行并返回以行为单位的元素流。
func (p *Paragraph) PullElements(ctx *layout.Context) ([]layout.Element, bool, error) {
	if p.done {
		return nil, true, nil
	}
	p.done = true
	if err := p.breakLines(ctx); err != nil {
		return nil, false, err
	}
	n := len(p.lines)
	out := make([]layout.Element, 0, 2*n)
	for i, l := range p.lines {
		if i > 0 {
			cost := 0
			if p.KeepTogether || p.lineBase+i < ctx.Params.Orphans || n-i < ctx.Params.Widows {
				cost = layout.Infinite
			}
			out = append(out, layout.Penalty(0, cost, false, ctx.Positions.Leaf(p, layout.JoinIndex)))
		}
		out = append(out, layout.Box(l.height, ctx.Positions.Leaf(p, i)))
	}
	return out, true, nil
}

func (p *Paragraph) breakLines(ctx *layout.Context) error {
	if ctx.Measurer == nil {
		return fmt.Errorf("段落排版缺少文本测量器")
	}
	elems, items, err := p.inlineElements(ctx)
	if err != nil {
		return err
	}
	p.lines = nil
	if len(items) == 0 {
		return nil
	}
	parts := layout.BreakBestFit(elems, ctx.RefIPD, ctx.Params)
	for _, part := range parts {
		line, err := p.buildLine(ctx, part, items)
		if err != nil {
			return err
		}
		p.lines = append(p.lines, line)
	}
	return nil
}

// inlineElements 用 uniseg 找出断行机会，生成行内 box/glue/penalty 流。
// box 的叶子位置是 items 的下标。页码占位符按 ctx.PageNumber 估算宽度，
// 文字本身保留占位符，装配时再替换为实际页码。
func (p *Paragraph) inlineElements(ctx *layout.Context) ([]layout.Element, []inlineItem, error) {
	var (
		elems []layout.Element
		items []inlineItem
	)
	leaf := func(i int) layout.Position { return ctx.Positions.Leaf(p, i) }
	if p.TextIndent > 0 {
		items = append(items, inlineItem{run: -1, width: p.TextIndent})
		elems = append(elems, layout.Box(p.TextIndent, leaf(len(items)-1)))
	}
	hasText := false
	for ri, run := range p.Runs {
		text := normalizeSpace(norm.NFC.String(run.Text))
		if ri == 0 {
			text = strings.TrimLeft(text, " ")
		}
		font := run.Style.Font
		spaceWidth, err := ctx.Measurer.TextWidth(" ", font)
		if err != nil {
			return nil, nil, fmt.Errorf("测量空格宽度失败: %w", err)
		}
		state := -1
		rest := text
		for len(rest) > 0 {
			var segment string
			var mustBreak bool
			segment, rest, mustBreak, state = uniseg.FirstLineSegmentInString(rest, state)
			word := strings.TrimRight(segment, " \n")
			trailing := segment[len(word):]
			if word != "" {
				w, err := ctx.Measurer.TextWidth(withPageNumber(word, ctx.PageNumber), font)
				if err != nil {
					return nil, nil, fmt.Errorf("测量文本 %q 失败: %w", word, err)
				}
				items = append(items, inlineItem{run: ri, text: word, width: w})
				elems = append(elems, layout.Box(w, leaf(len(items)-1)))
				hasText = true
			}
			hard := strings.Contains(trailing, "\n")
			switch {
			case hard && (len(rest) > 0 || ri < len(p.Runs)-1):
				elems = append(elems,
					layout.Glue(layout.Spacing{Max: layout.FillStretch}, false, layout.NoPosition),
					layout.ForcedBreak(layout.NoPosition))
			case hard:
			case trailing != "":
				elems = append(elems, layout.Glue(p.wordSpace(spaceWidth), true, layout.NoPosition))
			case len(rest) > 0 && word != "" && !mustBreak:
				// 词内断行机会（例如 CJK 字符之间或连字符之后）
				flagged := strings.HasSuffix(word, "-")
				cost := 0
				if flagged {
					cost = 50
				}
				elems = append(elems, layout.Penalty(0, cost, flagged, layout.NoPosition))
			}
		}
	}
	if !hasText {
		return nil, nil, nil
	}
	if p.resume > 0 {
		for j, e := range elems {
			if e.IsBox() && ctx.Positions.Index(e.Position()) == p.resume {
				elems = elems[j:]
				break
			}
		}
	}
	for len(elems) > 0 && elems[len(elems)-1].IsGlue() {
		elems = elems[:len(elems)-1]
	}
	elems = append(elems,
		layout.Penalty(0, layout.Infinite, false, layout.NoPosition),
		layout.Glue(layout.Spacing{Max: layout.FillStretch}, false, layout.NoPosition),
		layout.ForcedBreak(layout.NoPosition))
	return elems, items, nil
}

// wordSpace 两端对齐时空格可以伸缩；其余对齐方式给出较大的伸展量只用于评估断点。
func (p *Paragraph) wordSpace(w int) layout.Spacing {
	if p.Align == layout.AlignJustify {
		return layout.Spacing{Min: w - w/3, Opt: w, Max: w + w/2}
	}
	return layout.Spacing{Min: w - w/3, Opt: w, Max: w * 4}
}

func (p *Paragraph) buildLine(ctx *layout.Context, part layout.Part, items []inlineItem) (lineLayout, error) {
	line := lineLayout{first: -1}
	ratio := 0.0
	if p.Align == layout.AlignJustify || part.Ratio < 0 {
		ratio = part.Ratio
	}
	natural := part.Natural.Adjust(ratio)
	x := 0
	switch p.Align {
	case layout.AlignCenter:
		x = (ctx.RefIPD - natural) / 2
	case layout.AlignEnd:
		x = ctx.RefIPD - natural
	}
	if x < 0 {
		x = 0
	}
	ascent, descent := 0, 0
	for _, e := range part.Elements {
		switch {
		case e.IsBox():
			idx := ctx.Positions.Index(e.Position())
			if line.first < 0 {
				line.first = idx
			}
			item := items[idx]
			if item.run >= 0 {
				run := p.Runs[item.run]
				m, err := ctx.Measurer.Metrics(run.Style.Font)
				if err != nil {
					return line, fmt.Errorf("读取字体度量失败: %w", err)
				}
				if h := run.Style.LineHeight.Resolve(run.Style.Font.Size); h > line.height {
					line.height = h
				}
				ascent = max(ascent, m.Ascent)
				descent = max(descent, m.Descent)
				line.words = append(line.words, area.Word{
					Text:  item.text,
					X:     x,
					Width: item.width,
					Font:  run.Style.Font.Name,
					Size:  run.Style.Font.Size,
					Color: run.Style.Color,
					Link:  run.Link,
				})
			}
			x += item.width
		case e.IsGlue():
			x += e.GlueSize().Adjust(ratio)
		}
	}
	if ascent+descent > line.height {
		line.height = ascent + descent
	}
	line.baseline = (line.height-ascent-descent)/2 + ascent
	line.width = x
	return line, nil
}

// AttachAreas 生成段落区域，本页包含的每一行对应一个 Line。
func (p *Paragraph) AttachAreas(positions []layout.Position, ac *layout.AreaContext) error {
	blk := &area.Block{Kind: "paragraph", Width: ac.Target.ContentWidth()}
	err := layout.DescendAreas(positions, ac, func(index int) error {
		if index < 0 || index >= len(p.lines) {
			return nil
		}
		l := p.lines[index]
		words := make([]area.Word, len(l.words))
		for i, w := range l.words {
			w.Text = withPageNumber(w.Text, ac.PageNumber)
			words[i] = w
		}
		blk.AddLine(&area.Line{Height: l.height, Baseline: l.baseline, Width: l.width, Words: words})
		return nil
	})
	if err != nil {
		return err
	}
	if len(blk.Lines) > 0 {
		ac.Target.AddBlock(blk)
	}
	return nil
}

// ResetBreakState 丢弃断行结果，下次拉取时重新断行（例如页码变化）。
func (p *Paragraph) ResetBreakState() {
	p.lines = nil
	p.resume = 0
	p.lineBase = 0
	p.done = false
}

// ResumeAt 从 pos 对应的行开始，以新的参考宽度重新断行；之前的行已经输出。
func (p *Paragraph) ResumeAt(pos layout.Position, positions *layout.PositionArena) bool {
	i := positions.Index(pos)
	if positions.Owner(pos) != layout.Delegate(p) || i < 0 || i >= len(p.lines) || p.lines[i].first < 0 {
		return false
	}
	p.resume = p.lines[i].first
	p.lineBase += i
	p.lines = nil
	p.done = false
	return true
}

func withPageNumber(s string, page int) string {
	if !strings.Contains(s, PageNumberPlaceholder) {
		return s
	}
	return strings.ReplaceAll(s, PageNumberPlaceholder, strconv.Itoa(page))
}

// Lines returns the number of laid-out lines.
func (p *Paragraph) Lines() int { return len(p.lines) }
