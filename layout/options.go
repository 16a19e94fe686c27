package layout

// Alignment 控制行内（或页内）是否两端对齐。
type Alignment int

const (
	AlignStart Alignment = iota
	AlignCenter
	AlignEnd
	AlignJustify
)

// ParseAlignment accepts left/start, center, right/end and justify.
func ParseAlignment(v string) (Alignment, bool) {
	switch v {
	case "", "left", "start":
		return AlignStart, true
	case "center":
		return AlignCenter, true
	case "right", "end":
		return AlignEnd, true
	case "justify":
		return AlignJustify, true
	}
	return AlignStart, false
}

func (a Alignment) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignEnd:
		return "end"
	case AlignJustify:
		return "justify"
	default:
		return "start"
	}
}

// Params 是断行/断页算法的策略参数。
type Params struct {
	// Tolerance 是可接受的最大拉伸比例，超过则该断点不可行。
	Tolerance float64
	// FlaggedDemerits 在相邻两个断点都是 flagged penalty（例如连字符）时追加。
	FlaggedDemerits int
	// Orphans/Widows 段首/段尾至少保留的行数。
	Orphans int
	Widows  int
}

// DefaultParams returns the engine defaults.
func DefaultParams() Params {
	return Params{Tolerance: 1, FlaggedDemerits: 100, Orphans: 2, Widows: 2}
}

// FontSpec 标识测量文本所需的字体。Size 为 millipoint。
type FontSpec struct {
	Name  string
	Src   string
	Style string
	Size  int
}

// FontMetrics 以 millipoint 表示字体的纵向度量。
type FontMetrics struct {
	Ascent     int
	Descent    int
	LineHeight int
}

// Measurer 负责测量文本宽度，由渲染后端实现（例如 canvas 渲染器）。
type Measurer interface {
	TextWidth(text string, font FontSpec) (int, error)
	Metrics(font FontSpec) (FontMetrics, error)
}
