package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/diag"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/pagination"
)

// stubMeasurer 每个字符宽度为字号的一半。
type stubMeasurer struct{}

func (stubMeasurer) TextWidth(text string, font layout.FontSpec) (int, error) {
	return utf8.RuneCountInString(text) * font.Size / 2, nil
}

func (stubMeasurer) Metrics(font layout.FontSpec) (layout.FontMetrics, error) {
	return layout.FontMetrics{Ascent: font.Size * 8 / 10, Descent: font.Size * 2 / 10, LineHeight: font.Size}, nil
}

// 10pt 字号，行高 12000mpt。
var bodyStyle = content.TextStyle{Font: layout.FontSpec{Name: "Body", Size: 10000}}

// lines 生成 n 个单行段落。
func lines(n int) []layout.Delegate {
	out := make([]layout.Delegate, n)
	for i := range out {
		out[i] = content.NewParagraph(layout.AlignStart, content.Run{Text: fmt.Sprintf("line %d", i), Style: bodyStyle})
	}
	return out
}

// template 建立无页边距的模板：body 高 bodyHeight，可选 before 区域。
func template(t *testing.T, name string, bodyHeight, before int, policy pagination.OverflowPolicy) *pagination.Template {
	t.Helper()
	g := pagination.Geometry{
		Width:      100000,
		Height:     bodyHeight + before,
		BodyMargin: pagination.Insets{Top: before},
		Extents:    map[string]int{pagination.RegionBefore: before},
		Policies:   map[string]pagination.OverflowPolicy{pagination.RegionBody: policy, pagination.RegionBefore: policy},
	}
	tpl, err := pagination.NewTemplate(name, g)
	if err != nil {
		t.Fatalf("创建模板 %s 失败: %v", name, err)
	}
	return tpl
}

func newTable(t *testing.T, tpls ...*pagination.Template) *pagination.Table {
	t.Helper()
	tb := pagination.NewTable()
	for _, tpl := range tpls {
		if err := tb.AddTemplate(tpl); err != nil {
			t.Fatal(err)
		}
	}
	return tb
}

func build(t *testing.T, doc *Document, sink diag.Sink) *Result {
	t.Helper()
	res, err := Build(doc, Options{Measurer: stubMeasurer{}, Sink: sink})
	if err != nil {
		t.Fatalf("Build 失败: %v", err)
	}
	return res
}

func templates(pages []*area.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Template
	}
	return out
}

func bodyLines(p *area.Page) int {
	n := 0
	for _, b := range p.Region(pagination.RegionBody).Blocks {
		n += len(b.Lines)
	}
	return n
}

func TestBuildPaginatesFlow(t *testing.T) {
	tb := newTable(t, template(t, "plain", 50000, 0, pagination.PolicyWarnAndClip))
	doc := &Document{Table: tb, Sequences: []*Sequence{
		{Name: "main", Master: "plain", Flow: content.NewFlow("body", lines(10)...)},
	}}
	res := build(t, doc, nil)
	pages := res.Tree.Pages
	if len(pages) != 3 {
		t.Fatalf("期望 3 页，实际 %d", len(pages))
	}
	var got []int
	for i, p := range pages {
		got = append(got, bodyLines(p))
		if p.Number != i+1 || p.Index != i {
			t.Fatalf("第 %d 页页码错误: number=%d index=%d", i, p.Number, p.Index)
		}
	}
	if diff := cmp.Diff([]int{4, 4, 2}, got); diff != "" {
		t.Fatalf("每页行数不符 (-want +got):\n%s", diff)
	}
}

func TestBuildSelectsFirstOddEvenAndLast(t *testing.T) {
	tb := newTable(t,
		template(t, "first", 50000, 0, pagination.PolicyWarnAndClip),
		template(t, "odd", 50000, 0, pagination.PolicyWarnAndClip),
		template(t, "even", 50000, 0, pagination.PolicyWarnAndClip),
		template(t, "last", 50000, 0, pagination.PolicyWarnAndClip),
		template(t, "only", 50000, 0, pagination.PolicyWarnAndClip),
	)
	cond := func(words, master string) pagination.Condition {
		c, err := pagination.ParseCondition(strings.Fields(words), master)
		if err != nil {
			t.Fatal(err)
		}
		return c
	}
	err := tb.AddMaster(&pagination.MasterDecl{Name: "book", Subsequences: []pagination.SubsequenceDecl{{
		Kind:       pagination.SubAlternatives,
		MaxRepeats: pagination.Unbounded,
		Conditions: []pagination.Condition{
			cond("only", "only"),
			cond("first", "first"),
			cond("last", "last"),
			cond("odd", "odd"),
			cond("even", "even"),
		},
	}}})
	if err != nil {
		t.Fatal(err)
	}
	doc := &Document{Table: tb, Sequences: []*Sequence{
		{Name: "long", Master: "book", Flow: content.NewFlow("body", lines(18)...)},
		{Name: "short", Master: "book", Flow: content.NewFlow("body", lines(2)...)},
	}}
	res := build(t, doc, nil)
	want := []string{"first", "even", "odd", "even", "last", "only"}
	if diff := cmp.Diff(want, templates(res.Tree.Pages)); diff != "" {
		t.Fatalf("模板选择不符 (-want +got):\n%s", diff)
	}
	// 第二个序列接续页码
	if n := res.Tree.Pages[5].Number; n != 6 {
		t.Fatalf("第二个序列应从第 6 页开始，实际 %d", n)
	}
}

func TestBuildEmptyFlowProducesOnePage(t *testing.T) {
	tb := newTable(t, template(t, "plain", 50000, 0, pagination.PolicyWarnAndClip))
	doc := &Document{Table: tb, Sequences: []*Sequence{{Name: "empty", Master: "plain"}}}
	res := build(t, doc, nil)
	if len(res.Tree.Pages) != 1 {
		t.Fatalf("空流应产生 1 页，实际 %d", len(res.Tree.Pages))
	}
}

func TestBuildStaticContentPerPage(t *testing.T) {
	tb := newTable(t, template(t, "plain", 50000, 12000, pagination.PolicyWarnAndClip))
	header := content.NewFlow("before", content.NewParagraph(layout.AlignStart,
		content.Run{Text: "Page " + content.PageNumberPlaceholder, Style: bodyStyle}))
	doc := &Document{Table: tb, Sequences: []*Sequence{{
		Name:        "main",
		Master:      "plain",
		InitialPage: 7,
		Flow:        content.NewFlow("body", lines(6)...),
		Static:      map[string]*content.Flow{pagination.RegionBefore: header},
	}}}
	res := build(t, doc, nil)
	if len(res.Tree.Pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(res.Tree.Pages))
	}
	for i, p := range res.Tree.Pages {
		reg := p.Region(pagination.RegionBefore)
		if reg == nil || len(reg.Blocks) != 1 {
			t.Fatalf("第 %d 页缺少页眉", i)
		}
		var words []string
		for _, w := range reg.Blocks[0].Lines[0].Words {
			words = append(words, w.Text)
		}
		text := strings.Join(words, "")
		if want := fmt.Sprintf("Page%d", 7+i); strings.ReplaceAll(text, " ", "") != want {
			t.Fatalf("第 %d 页页眉文字 %q，期望 %q", i, text, want)
		}
		if reg.Overflow {
			t.Fatalf("页眉不应溢出")
		}
	}
}

func TestBuildStaticOverflowClips(t *testing.T) {
	tb := newTable(t, template(t, "plain", 50000, 12000, pagination.PolicyWarnAndClip))
	rec := &diag.Recorder{}
	doc := &Document{Table: tb, Sequences: []*Sequence{{
		Name:   "main",
		Master: "plain",
		Flow:   content.NewFlow("body", lines(1)...),
		Static: map[string]*content.Flow{pagination.RegionBefore: content.NewFlow("before", lines(3)...)},
	}}}
	res := build(t, doc, rec)
	reg := res.Tree.Pages[0].Region(pagination.RegionBefore)
	if !reg.Overflow || !reg.Clip {
		t.Fatalf("溢出的静态区域应标记 overflow 与 clip: %+v", reg)
	}
	if rec.Count(diag.Overflow) != 1 {
		t.Fatalf("期望 1 个溢出事件，实际 %v", rec.Events())
	}
	if used := reg.Used(); used != 12000 {
		t.Fatalf("warn-and-clip 只放入第一部分，实际高度 %d", used)
	}
}

func TestBuildOverflowErrorIsolatesSequence(t *testing.T) {
	tb := newTable(t,
		template(t, "strict", 10000, 0, pagination.PolicyError),
		template(t, "plain", 50000, 0, pagination.PolicyWarnAndClip),
	)
	doc := &Document{Table: tb, Sequences: []*Sequence{
		{Name: "bad", Master: "strict", Flow: content.NewFlow("body", lines(1)...)},
		{Name: "good", Master: "plain", Flow: content.NewFlow("body", lines(1)...)},
	}}
	res, err := Build(doc, Options{Measurer: stubMeasurer{}})
	if err == nil {
		t.Fatalf("期望溢出错误")
	}
	var oe *layout.OverflowError
	if !errors.As(err, &oe) || oe.Sequence != "bad" || oe.Excess != 2000 {
		t.Fatalf("期望 bad 序列的 OverflowError，实际 %v", err)
	}
	if len(res.Failures) != 1 || res.Failures[0].Sequence != "bad" {
		t.Fatalf("失败列表错误: %+v", res.Failures)
	}
	if len(res.Tree.Pages) != 1 || res.Tree.Pages[0].Sequence != "good" || res.Tree.Pages[0].Number != 1 {
		t.Fatalf("成功的序列应保留页面: %+v", res.Tree.Pages)
	}
}

func TestBuildUnresolvedMasterFails(t *testing.T) {
	tb := newTable(t, template(t, "plain", 50000, 0, pagination.PolicyWarnAndClip))
	rec := &diag.Recorder{}
	doc := &Document{Table: tb, Sequences: []*Sequence{{Name: "main", Master: "missing"}}}
	_, err := Build(doc, Options{Measurer: stubMeasurer{}, Sink: rec})
	var ue *pagination.UnresolvedTemplateError
	if !errors.As(err, &ue) {
		t.Fatalf("期望 UnresolvedTemplateError，实际 %v", err)
	}
	if rec.Count(diag.NoMatchingTemplate) != 1 {
		t.Fatalf("期望 NoMatchingTemplate 事件")
	}
}

func TestBuildForcePageCount(t *testing.T) {
	tb := newTable(t,
		template(t, "plain", 50000, 0, pagination.PolicyWarnAndClip),
		template(t, "blank", 50000, 0, pagination.PolicyWarnAndClip),
	)
	blank, _ := pagination.ParseCondition([]string{"blank"}, "blank")
	rest, _ := pagination.ParseCondition(nil, "plain")
	if err := tb.AddMaster(&pagination.MasterDecl{Name: "m", Subsequences: []pagination.SubsequenceDecl{{
		Kind: pagination.SubAlternatives, MaxRepeats: pagination.Unbounded, Conditions: []pagination.Condition{blank, rest},
	}}}); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		force   ForcePageCount
		initial int
		lines   int
		want    []string
	}{
		{ForceEven, 1, 10, []string{"plain", "plain", "plain", "blank"}},
		{ForceOdd, 1, 10, []string{"plain", "plain", "plain"}},
		{ForceEndOnEven, 1, 10, []string{"plain", "plain", "plain", "blank"}},
		{ForceEndOnEven, 2, 10, []string{"plain", "plain", "plain"}},
		{ForceEndOnOdd, 2, 10, []string{"plain", "plain", "plain", "blank"}},
		{ForceAuto, 1, 4, []string{"plain"}},
	}
	for _, c := range cases {
		doc := &Document{Table: tb, Sequences: []*Sequence{{
			Name: "s", Master: "m", InitialPage: c.initial, ForcePageCount: c.force,
			Flow: content.NewFlow("body", lines(c.lines)...),
		}}}
		res := build(t, doc, nil)
		if diff := cmp.Diff(c.want, templates(res.Tree.Pages)); diff != "" {
			t.Fatalf("force=%d (-want +got):\n%s", c.force, diff)
		}
		if last := res.Tree.Pages[len(res.Tree.Pages)-1]; len(c.want) == 4 && !last.Blank {
			t.Fatalf("补充的页面应标记为空白页")
		}
	}
}

func TestBuildParallelMatchesSequentialLayout(t *testing.T) {
	tb := newTable(t, template(t, "plain", 50000, 0, pagination.PolicyWarnAndClip))
	mk := func() *Document {
		return &Document{Table: tb, Sequences: []*Sequence{
			{Name: "a", Master: "plain", Flow: content.NewFlow("body", lines(9)...)},
			{Name: "b", Master: "plain", InitialPage: 10, Flow: content.NewFlow("body", lines(5)...)},
		}}
	}
	seq, err := Build(mk(), Options{Measurer: stubMeasurer{}})
	if err != nil {
		t.Fatal(err)
	}
	par, err := Build(mk(), Options{Measurer: stubMeasurer{}, Parallel: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(seq.Tree.Pages, par.Tree.Pages, cmp.AllowUnexported(area.Region{}, area.Block{})); diff != "" {
		t.Fatalf("并行排版结果不同 (-seq +par):\n%s", diff)
	}
	if par.Tree.Pages[3].Number != 10 {
		t.Fatalf("序列 b 应从 initial-page 开始，实际 %d", par.Tree.Pages[3].Number)
	}
}

// collectLines 按顺序收集块及其子块中的全部行。
func collectLines(blocks []*area.Block) []*area.Line {
	var out []*area.Line
	for _, b := range blocks {
		out = append(out, b.Lines...)
		out = append(out, collectLines(b.Children)...)
	}
	return out
}

func lineText(l *area.Line) string {
	var words []string
	for _, w := range l.Words {
		words = append(words, w.Text)
	}
	return strings.Join(words, " ")
}

func TestBuildRebreaksWhenBodyWidthChanges(t *testing.T) {
	mk := func(name string, width int) *pagination.Template {
		tpl, err := pagination.NewTemplate(name, pagination.Geometry{Width: width, Height: 24000})
		if err != nil {
			t.Fatal(err)
		}
		return tpl
	}
	tb := newTable(t, mk("narrow", 60000), mk("wide", 300000))
	if err := tb.AddMaster(&pagination.MasterDecl{Name: "m", Subsequences: []pagination.SubsequenceDecl{
		{Kind: pagination.SubSingle, Master: "narrow"},
		{Kind: pagination.SubRepeat, Master: "wide", MaxRepeats: pagination.Unbounded},
	}}); err != nil {
		t.Fatal(err)
	}
	var tokens []string
	for i := 0; i < 60; i++ {
		tokens = append(tokens, fmt.Sprintf("%02d", i))
	}
	para := content.NewParagraph(layout.AlignStart, content.Run{Text: strings.Join(tokens, " "), Style: bodyStyle})
	doc := &Document{Table: tb, Sequences: []*Sequence{
		{Name: "main", Master: "m", Flow: content.NewFlow("body", para)},
	}}
	res := build(t, doc, nil)
	pages := res.Tree.Pages
	if len(pages) < 2 || pages[0].Template != "narrow" || pages[1].Template != "wide" {
		t.Fatalf("模板顺序错误: %v", templates(pages))
	}
	var got []string
	for i, p := range pages {
		maxWidth := 0
		for _, l := range collectLines(p.Region(pagination.RegionBody).Blocks) {
			if l.Width > p.Width {
				t.Fatalf("第 %d 页的行宽 %d 超出 body 宽度 %d", i, l.Width, p.Width)
			}
			maxWidth = max(maxWidth, l.Width)
			got = append(got, strings.Fields(lineText(l))...)
		}
		if i > 0 && maxWidth <= 60000 {
			t.Fatalf("宽页面 %d 仍按窄页面的宽度断行: 最大行宽 %d", i, maxWidth)
		}
	}
	if diff := cmp.Diff(tokens, got); diff != "" {
		t.Fatalf("重新断行后内容不连续 (-want +got):\n%s", diff)
	}
}

func TestBuildBodyPageNumberPerPage(t *testing.T) {
	tb := newTable(t, template(t, "plain", 12000, 0, pagination.PolicyWarnAndClip))
	var paras []layout.Delegate
	for i := 0; i < 3; i++ {
		paras = append(paras, content.NewParagraph(layout.AlignStart,
			content.Run{Text: "p" + content.PageNumberPlaceholder, Style: bodyStyle}))
	}
	doc := &Document{Table: tb, Sequences: []*Sequence{
		{Name: "main", Master: "plain", Flow: content.NewFlow("body", paras...)},
	}}
	res := build(t, doc, nil)
	var got []string
	for _, p := range res.Tree.Pages {
		for _, l := range collectLines(p.Region(pagination.RegionBody).Blocks) {
			got = append(got, strings.ReplaceAll(lineText(l), " ", ""))
		}
	}
	if diff := cmp.Diff([]string{"p1", "p2", "p3"}, got); diff != "" {
		t.Fatalf("body 中的页码应取所在页 (-want +got):\n%s", diff)
	}
}

func TestBuildStaticIgnoresForcedBreak(t *testing.T) {
	tb := newTable(t, template(t, "plain", 50000, 24000, pagination.PolicyWarnAndClip))
	rec := &diag.Recorder{}
	header := content.NewFlow("before",
		content.NewParagraph(layout.AlignStart, content.Run{Text: "A", Style: bodyStyle}),
		content.NewBlock(content.BlockProps{BreakBefore: true},
			content.NewParagraph(layout.AlignStart, content.Run{Text: "B", Style: bodyStyle})),
	)
	doc := &Document{Table: tb, Sequences: []*Sequence{{
		Name:   "main",
		Master: "plain",
		Flow:   content.NewFlow("body", lines(1)...),
		Static: map[string]*content.Flow{pagination.RegionBefore: header},
	}}}
	res := build(t, doc, rec)
	reg := res.Tree.Pages[0].Region(pagination.RegionBefore)
	if reg.Overflow || rec.Count(diag.Overflow) != 0 {
		t.Fatalf("静态区域中的强制断开不应导致溢出: %v", rec.Events())
	}
	var got []string
	for _, l := range collectLines(reg.Blocks) {
		got = append(got, lineText(l))
	}
	if diff := cmp.Diff([]string{"A", "B"}, got); diff != "" {
		t.Fatalf("静态区域应包含全部内容 (-want +got):\n%s", diff)
	}
}
