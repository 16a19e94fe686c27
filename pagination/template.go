// Package pagination 负责页面模板表以及为每一页选择模板的 sequence-master 状态机。
package pagination

import (
	"fmt"
	"sort"
	"strings"
)

// OverflowPolicy 决定区域内容溢出时的处理方式。
type OverflowPolicy int

const (
	// PolicyWarnAndClip 报告溢出并裁剪（默认）。
	PolicyWarnAndClip OverflowPolicy = iota
	// PolicyError 把溢出视为当前序列的致命错误。
	PolicyError
	// PolicyAllow 允许内容超出区域，仍然报告诊断事件。
	PolicyAllow
)

// ParseOverflowPolicy accepts error, warn, warn-and-clip, hidden and allow/visible.
func ParseOverflowPolicy(v string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "warn", "warn-and-clip", "hidden":
		return PolicyWarnAndClip, nil
	case "error":
		return PolicyError, nil
	case "allow", "visible":
		return PolicyAllow, nil
	}
	return PolicyWarnAndClip, fmt.Errorf("未知的溢出策略: %s", v)
}

func (p OverflowPolicy) String() string {
	switch p {
	case PolicyError:
		return "error"
	case PolicyAllow:
		return "allow"
	default:
		return "warn-and-clip"
	}
}

// MarshalText lets config files and debug JSON use the policy name.
func (p OverflowPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText parses the policy name.
func (p *OverflowPolicy) UnmarshalText(b []byte) error {
	v, err := ParseOverflowPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// 区域名称。
const (
	RegionBody   = "body"
	RegionBefore = "before"
	RegionAfter  = "after"
	RegionStart  = "start"
	RegionEnd    = "end"
)

// Region 是模板中的一个矩形区域，坐标相对页面左上角，单位 millipoint。
type Region struct {
	Name     string
	X, Y     int
	Width    int
	Height   int
	Overflow OverflowPolicy
}

// Insets 表示四边的边距（millipoint）。
type Insets struct {
	Top, Right, Bottom, Left int
}

// UniformInsets returns the same inset on every side.
func UniformInsets(v int) Insets { return Insets{Top: v, Right: v, Bottom: v, Left: v} }

// Geometry 描述一个页面模板的声明：页面尺寸、页边距、body 边距以及外围区域的 extent。
type Geometry struct {
	Width, Height int
	Margin        Insets
	BodyMargin    Insets
	Extents       map[string]int
	Policies      map[string]OverflowPolicy
}

// Template 是解析后的页面模板（simple-page-master）。
type Template struct {
	Name    string
	Width   int
	Height  int
	Regions []Region
}

// NewTemplate 根据几何声明计算各区域矩形。
// before/after 占满内容区宽度，start/end 位于两者之间，body 由 BodyMargin 从内容区内缩得到。
func NewTemplate(name string, g Geometry) (*Template, error) {
	cx, cy := g.Margin.Left, g.Margin.Top
	cw := g.Width - g.Margin.Left - g.Margin.Right
	ch := g.Height - g.Margin.Top - g.Margin.Bottom
	if cw <= 0 || ch <= 0 {
		return nil, fmt.Errorf("页面模板 %s: 页边距超出页面尺寸", name)
	}
	t := &Template{Name: name, Width: g.Width, Height: g.Height}
	policy := func(region string) OverflowPolicy { return g.Policies[region] }
	body := Region{
		Name:     RegionBody,
		X:        cx + g.BodyMargin.Left,
		Y:        cy + g.BodyMargin.Top,
		Width:    cw - g.BodyMargin.Left - g.BodyMargin.Right,
		Height:   ch - g.BodyMargin.Top - g.BodyMargin.Bottom,
		Overflow: policy(RegionBody),
	}
	if body.Width <= 0 || body.Height <= 0 {
		return nil, fmt.Errorf("页面模板 %s: body 区域没有可用空间", name)
	}
	t.Regions = append(t.Regions, body)
	before, after := g.Extents[RegionBefore], g.Extents[RegionAfter]
	if before > 0 {
		t.Regions = append(t.Regions, Region{Name: RegionBefore, X: cx, Y: cy, Width: cw, Height: before, Overflow: policy(RegionBefore)})
	}
	if after > 0 {
		t.Regions = append(t.Regions, Region{Name: RegionAfter, X: cx, Y: cy + ch - after, Width: cw, Height: after, Overflow: policy(RegionAfter)})
	}
	if v := g.Extents[RegionStart]; v > 0 {
		t.Regions = append(t.Regions, Region{Name: RegionStart, X: cx, Y: cy + before, Width: v, Height: ch - before - after, Overflow: policy(RegionStart)})
	}
	if v := g.Extents[RegionEnd]; v > 0 {
		t.Regions = append(t.Regions, Region{Name: RegionEnd, X: cx + cw - v, Y: cy + before, Width: v, Height: ch - before - after, Overflow: policy(RegionEnd)})
	}
	return t, nil
}

// Region returns the named region.
func (t *Template) Region(name string) (Region, bool) {
	for _, r := range t.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Body returns the body region. Every template built by NewTemplate has one.
func (t *Template) Body() Region {
	r, _ := t.Region(RegionBody)
	return r
}

// Table 是文档级的只读模板表：建立之后不再修改，可被多个序列共享。
type Table struct {
	templates map[string]*Template
	masters   map[string]*MasterDecl
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{templates: map[string]*Template{}, masters: map[string]*MasterDecl{}}
}

// AddTemplate registers t. Names are shared with sequence masters and must be unique.
func (tb *Table) AddTemplate(t *Template) error {
	if _, dup := tb.templates[t.Name]; dup {
		return fmt.Errorf("页面模板 %s 重复定义", t.Name)
	}
	if _, dup := tb.masters[t.Name]; dup {
		return fmt.Errorf("名称 %s 已被 sequence-master 使用", t.Name)
	}
	tb.templates[t.Name] = t
	return nil
}

// AddMaster registers a sequence master declaration.
func (tb *Table) AddMaster(m *MasterDecl) error {
	if _, dup := tb.masters[m.Name]; dup {
		return fmt.Errorf("sequence-master %s 重复定义", m.Name)
	}
	if _, dup := tb.templates[m.Name]; dup {
		return fmt.Errorf("名称 %s 已被页面模板使用", m.Name)
	}
	tb.masters[m.Name] = m
	return nil
}

// Resolve 按名称查找页面模板。
func (tb *Table) Resolve(name string) (*Template, bool) {
	t, ok := tb.templates[name]
	return t, ok
}

// Master looks up a sequence master declaration.
func (tb *Table) Master(name string) (*MasterDecl, bool) {
	m, ok := tb.masters[name]
	return m, ok
}

// TemplateNames returns the template names in sorted order.
func (tb *Table) TemplateNames() []string {
	names := make([]string, 0, len(tb.templates))
	for n := range tb.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
