package engine

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/binding"
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/pagination"
)

const invoiceDSL = `
doc Invoice v1 {
  meta {
    title: "Invoice ${id}"
    author: "ACME"
  }
  resources {
    font Body { src: "builtin:go-regular" }
    font Bold { src: "builtin:go-bold" }
    color Accent = #0F62FE
    color Muted = rgb(50%, 0, 100%)
    style Base {
      font: Body
      size: 10pt
    }
    style Title extends Base {
      size: 20pt
      color: Accent
    }
  }
  masters {
    page cover A5 margin 10mm {
      before 12mm overflow error
      body margin 12mm 0 0 0
    }
    page plain A5 landscape margin 10mm 15mm
    sequence-master main {
      single cover
      repeat plain
    }
  }
  sequence Main master main initial-page 3 {
    static before {
      text Base align end { "p." page-number }
    }
    flow {
      block space-before 4pt 6pt 8pt keep-with-next label intro fill Muted {
        text Title { "Invoice for ${customer.name}" }
      }
      table columns 2 border #cccccc {
        header {
          cell { text Base { "Item" } }
          cell { text Base { "Qty" } }
        }
        each items {
          row {
            cell { text Base { "${name}" } }
            cell { text Base { span Bold { "${qty}" } " pcs" } }
          }
        }
      }
      break page
      text Base align justify { "See " link "https://example.com" { "terms" } "." }
    }
  }
}
`

const invoiceData = `{"id": 42, "customer": {"name": "Ada"}, "items": [{"name": "pen", "qty": 2}, {"name": "ink", "qty": 5}]}`

func convert(t *testing.T, src, data string) *Document {
	t.Helper()
	ast, err := dsl.ParseString(src)
	if err != nil {
		t.Fatalf("解析 DSL 失败: %v", err)
	}
	var bound *binding.Data
	if data != "" {
		if bound, err = binding.Parse([]byte(data)); err != nil {
			t.Fatal(err)
		}
	}
	doc, err := FromDSL(ast, bound)
	if err != nil {
		t.Fatalf("FromDSL 失败: %v", err)
	}
	return doc
}

func TestFromDSLInvoice(t *testing.T) {
	doc := convert(t, invoiceDSL, invoiceData)

	if doc.Meta.Title != "Invoice 42" || doc.Meta.Author != "ACME" || doc.Meta.Creator != "quire" {
		t.Fatalf("元信息错误: %+v", doc.Meta)
	}
	if got := doc.Table.TemplateNames(); !cmp.Equal(got, []string{"cover", "plain"}) {
		t.Fatalf("模板名称错误: %v", got)
	}
	plain, _ := doc.Table.Resolve("plain")
	if plain.Width != layout.MMToMpt(210) || plain.Height != layout.MMToMpt(148) {
		t.Fatalf("landscape 应交换宽高: %dx%d", plain.Width, plain.Height)
	}
	cover, _ := doc.Table.Resolve("cover")
	before, ok := cover.Region(pagination.RegionBefore)
	if !ok || before.Height != layout.MMToMpt(12) || before.Overflow != pagination.PolicyError {
		t.Fatalf("before 区域错误: %+v", before)
	}
	if body := cover.Body(); body.Y != layout.MMToMpt(10)+layout.MMToMpt(12) {
		t.Fatalf("body margin 未生效: %+v", body)
	}

	if len(doc.Sequences) != 1 {
		t.Fatalf("期望 1 个序列，实际 %d", len(doc.Sequences))
	}
	seq := doc.Sequences[0]
	if seq.Master != "main" || seq.InitialPage != 3 || seq.Static[pagination.RegionBefore] == nil {
		t.Fatalf("序列属性错误: %+v", seq)
	}
	children := seq.Flow.Children()
	if len(children) != 4 {
		t.Fatalf("期望 4 个块级内容，实际 %d", len(children))
	}

	blk, ok := children[0].(*content.Block)
	if !ok {
		t.Fatalf("第一个内容应为 block: %T", children[0])
	}
	wantProps := content.BlockProps{
		SpaceBefore:  layout.Spacing{Min: 4000, Opt: 6000, Max: 8000},
		KeepWithNext: true,
		Label:        "intro",
		Fill:         &area.Color{R: 128, G: 0, B: 255},
	}
	if diff := cmp.Diff(wantProps, blk.Props); diff != "" {
		t.Fatalf("block 属性不符 (-want +got):\n%s", diff)
	}

	tbl, ok := children[1].(*content.Table)
	if !ok || tbl.Columns != 2 || len(tbl.Header) != 1 || len(tbl.Rows) != 2 {
		t.Fatalf("表格结构错误: %+v", children[1])
	}
	if tbl.Border == nil || *tbl.Border != (area.Color{R: 0xcc, G: 0xcc, B: 0xcc}) {
		t.Fatalf("表格边框颜色错误: %+v", tbl.Border)
	}
	name := tbl.Rows[1].Cells[0].Content[0].(*content.Paragraph)
	if name.Text() != "ink" {
		t.Fatalf("each 绑定错误: %q", name.Text())
	}
	qty := tbl.Rows[0].Cells[1].Content[0].(*content.Paragraph)
	if qty.Text() != "2 pcs" || qty.Runs[0].Style.Font.Name != "Bold" || qty.Runs[0].Style.Font.Size != 10000 {
		t.Fatalf("span 样式错误: %+v", qty.Runs)
	}

	if _, ok := children[2].(*content.Break); !ok {
		t.Fatalf("第三个内容应为分页: %T", children[2])
	}
	para := children[3].(*content.Paragraph)
	if para.Align != layout.AlignJustify || len(para.Runs) != 3 || para.Runs[1].Link != "https://example.com" {
		t.Fatalf("链接段落错误: %+v", para.Runs)
	}
}

func TestFromDSLResolvesStyleInheritance(t *testing.T) {
	ast, err := dsl.ParseString(invoiceDSL)
	if err != nil {
		t.Fatal(err)
	}
	res, err := collectResources(ast)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"font": "Body", "size": "20pt", "color": "Accent"}
	if diff := cmp.Diff(want, res.styles["Title"].Props); diff != "" {
		t.Fatalf("继承后的样式不符 (-want +got):\n%s", diff)
	}
}

func TestFromDSLBuildsPages(t *testing.T) {
	doc := convert(t, invoiceDSL, invoiceData)
	res, err := Build(doc, Options{Measurer: stubMeasurer{}})
	if err != nil {
		t.Fatalf("Build 失败: %v", err)
	}
	pages := res.Tree.Pages
	if diff := cmp.Diff([]string{"cover", "plain"}, templates(pages)); diff != "" {
		t.Fatalf("模板序列不符 (-want +got):\n%s", diff)
	}
	if pages[0].Number != 3 || pages[1].Number != 4 {
		t.Fatalf("页码应从 3 开始: %d %d", pages[0].Number, pages[1].Number)
	}
	header := pages[0].Region(pagination.RegionBefore)
	if header == nil || len(header.Blocks) == 0 {
		t.Fatalf("封面缺少页眉")
	}
	var text strings.Builder
	for _, w := range header.Blocks[0].Lines[0].Words {
		text.WriteString(w.Text)
	}
	if got := text.String(); got != "p.3" {
		t.Fatalf("页眉文字 %q，期望 p.3", got)
	}
	if res.Tree.Resources.Fonts["Bold"].Src != "builtin:go-bold" {
		t.Fatalf("字体资源未传递到区域树: %+v", res.Tree.Resources.Fonts)
	}
	labelled := pages[0].Region(pagination.RegionBody).Blocks[0]
	if labelled.Label != "intro" || labelled.Fill == nil {
		t.Fatalf("首个块应带 label 与填充色: %+v", labelled)
	}
}

func TestFromDSLErrors(t *testing.T) {
	cases := map[string]string{
		"style cycle": `doc X v1 {
  resources {
    style A extends B { size: 10pt }
    style B extends A { size: 12pt }
  }
  masters { page p A4 }
  sequence S master p { flow { } }
}`,
		"unknown command": `doc X v1 {
  masters { page p A4 }
  sequence S master p { flow { shape circle } }
}`,
		"missing master": `doc X v1 {
  masters { page p A4 }
  sequence S { flow { } }
}`,
		"bad paper": `doc X v1 {
  masters { page p B7 }
  sequence S master p { flow { } }
}`,
		"region without extent": `doc X v1 {
  masters { page p A4 { before overflow error } }
  sequence S master p { flow { } }
}`,
		"margin on outer region": `doc X v1 {
  masters { page p A4 { after 10mm margin 2mm } }
  sequence S master p { flow { } }
}`,
		"bad overflow policy": `doc X v1 {
  masters { page p A4 overflow sometimes }
  sequence S master p { flow { } }
}`,
		"unknown font": `doc X v1 {
  masters { page p A4 }
  sequence S master p { flow { text Missing { "x" } } }
}`,
	}
	for name, src := range cases {
		ast, err := dsl.ParseString(src)
		if err != nil {
			t.Fatalf("%s: 解析失败: %v", name, err)
		}
		if _, err := FromDSL(ast, nil); err == nil {
			t.Fatalf("%s: 期望转换错误", name)
		}
	}
}

func TestParseColor(t *testing.T) {
	named := map[string]area.Color{"Brand": {R: 1, G: 2, B: 3}}
	cases := []struct {
		in   string
		want area.Color
		ok   bool
	}{
		{"#fff", area.Color{R: 255, G: 255, B: 255}, true},
		{"#0F62FE", area.Color{R: 0x0f, G: 0x62, B: 0xfe}, true},
		{"#0F62FE80", area.Color{R: 0x0f, G: 0x62, B: 0xfe}, true},
		{"rgb(10, 20%, 300)", area.Color{R: 10, G: 51, B: 255}, true},
		{"Brand", area.Color{R: 1, G: 2, B: 3}, true},
		{"rgb(1,2)", area.Color{}, false},
		{"teal", area.Color{}, false},
		{"#zzzzzz", area.Color{}, false},
		{"#12g", area.Color{}, false},
		{"#0F62FEzz", area.Color{}, false},
	}
	for _, c := range cases {
		got, err := parseColor(c.in, named)
		if (err == nil) != c.ok || got != c.want {
			t.Fatalf("parseColor(%q) = %+v, %v", c.in, got, err)
		}
	}
}

func TestParseAttrs(t *testing.T) {
	ast, err := dsl.ParseString(`doc X v1 { sequence S master m { block Note space-after 1pt 2pt 3pt keep-together fill rgb(1, 2, 3) indent 5mm break-after false } }`)
	if err != nil {
		t.Fatal(err)
	}
	cmd := ast.Sections[0].Sequence.Block.Statements[0].Command
	a := parseAttrs(cmd, true)
	if a.style != "Note" {
		t.Fatalf("样式名错误: %q", a.style)
	}
	want := map[string][]string{
		"space-after":   {"1pt", "2pt", "3pt"},
		"keep-together": {"true"},
		"fill":          {"rgb(1,2,3)"},
		"indent":        {"5mm"},
		"break-after":   {"false"},
	}
	if diff := cmp.Diff(want, a.values); diff != "" {
		t.Fatalf("参数解析不符 (-want +got):\n%s", diff)
	}
	sp, err := a.spacing("space-after")
	if err != nil || sp != (layout.Spacing{Min: 1000, Opt: 2000, Max: 3000}) {
		t.Fatalf("spacing 错误: %+v %v", sp, err)
	}
}

func TestFromDSLDefaultOverflow(t *testing.T) {
	ast, err := dsl.ParseString(invoiceDSL)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := FromDSLWithDefaults(ast, nil, Defaults{Overflow: pagination.PolicyAllow})
	if err != nil {
		t.Fatal(err)
	}
	plain, _ := doc.Table.Resolve("plain")
	if got := plain.Body().Overflow; got != pagination.PolicyAllow {
		t.Fatalf("未声明 overflow 的模板应使用默认策略，实际 %s", got)
	}
	cover, _ := doc.Table.Resolve("cover")
	if before, _ := cover.Region(pagination.RegionBefore); before.Overflow != pagination.PolicyError {
		t.Fatalf("显式声明的策略不应被覆盖，实际 %s", before.Overflow)
	}
	if got := cover.Body().Overflow; got != pagination.PolicyAllow {
		t.Fatalf("cover body 应使用默认策略，实际 %s", got)
	}
}

func TestPaperSize(t *testing.T) {
	w, h, ok := PaperSize("letter")
	if !ok || w != layout.MMToMpt(215.9) || h != layout.MMToMpt(279.4) {
		t.Fatalf("Letter 尺寸错误: %d x %d", w, h)
	}
	if _, _, ok := PaperSize("B9"); ok {
		t.Fatalf("未知纸张应返回 false")
	}
}
