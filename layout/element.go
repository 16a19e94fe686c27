package layout

import "fmt"

// Infinite 是 penalty 的无穷代价：cost ≥ Infinite 禁止断开，cost ≤ -Infinite 强制断开。
const Infinite = 1000

// Kind tags an Element.
type Kind uint8

const (
	KindBox Kind = iota
	KindGlue
	KindPenalty
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return "box"
	case KindGlue:
		return "glue"
	case KindPenalty:
		return "penalty"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Element 是可断开元素流中的一项（box / glue / penalty）。
// 元素一经创建即不可变，Position 指向产生它的内容节点。
type Element struct {
	kind      Kind
	width     int
	size      Spacing
	breakable bool
	cost      int
	flagged   bool
	pos       Position
}

// Box returns a non-breakable element of fixed advance.
func Box(width int, pos Position) Element {
	return Element{kind: KindBox, width: width, pos: pos}
}

// Glue returns a stretchable space. A breakable glue directly after a box is a
// legal break point.
func Glue(size Spacing, breakable bool, pos Position) Element {
	return Element{kind: KindGlue, size: size, breakable: breakable, pos: pos}
}

// Penalty returns a candidate break point. Costs are clamped to ±Infinite.
func Penalty(width, cost int, flagged bool, pos Position) Element {
	if cost > Infinite {
		cost = Infinite
	} else if cost < -Infinite {
		cost = -Infinite
	}
	return Element{kind: KindPenalty, width: width, cost: cost, flagged: flagged, pos: pos}
}

// ForcedBreak 返回一个强制断开的 penalty。
func ForcedBreak(pos Position) Element { return Penalty(0, -Infinite, false, pos) }

func (e Element) Kind() Kind          { return e.kind }
func (e Element) IsBox() bool         { return e.kind == KindBox }
func (e Element) IsGlue() bool        { return e.kind == KindGlue }
func (e Element) IsPenalty() bool     { return e.kind == KindPenalty }
func (e Element) Position() Position  { return e.pos }
func (e Element) Cost() int           { return e.cost }
func (e Element) Flagged() bool       { return e.flagged }
func (e Element) Breakable() bool     { return e.breakable }
func (e Element) GlueSize() Spacing   { return e.size }
func (e Element) IsForcedBreak() bool { return e.kind == KindPenalty && e.cost <= -Infinite }

// IsForbiddenBreak reports a +∞ penalty.
func (e Element) IsForbiddenBreak() bool { return e.kind == KindPenalty && e.cost >= Infinite }

// Width 返回元素在未断开时占用的自然宽度（glue 为 opt）。
func (e Element) Width() int {
	if e.kind == KindGlue {
		return e.size.Opt
	}
	return e.width
}

// Size returns the element's contribution as a spacing triple. Penalties
// contribute nothing unless chosen as the break.
func (e Element) Size() Spacing {
	switch e.kind {
	case KindBox:
		return Fixed(e.width)
	case KindGlue:
		return e.size
	default:
		return Spacing{}
	}
}

// WithPosition returns a copy of e pointing at pos.
func (e Element) WithPosition(pos Position) Element {
	e.pos = pos
	return e
}

// WithCost returns a copy of a penalty with a new cost.
func (e Element) WithCost(cost int) Element {
	if e.kind != KindPenalty {
		return e
	}
	return Penalty(e.width, cost, e.flagged, e.pos)
}

// Unbreakable returns a copy of a glue that is no longer a break point.
func (e Element) Unbreakable() Element {
	e.breakable = false
	return e
}

func (e Element) String() string {
	switch e.kind {
	case KindBox:
		return fmt.Sprintf("box(%d)", e.width)
	case KindGlue:
		return fmt.Sprintf("glue(%s)", e.size)
	default:
		switch {
		case e.IsForcedBreak():
			return "penalty(-inf)"
		case e.IsForbiddenBreak():
			return "penalty(+inf)"
		}
		return fmt.Sprintf("penalty(%d,%d)", e.width, e.cost)
	}
}

// IsLegalBreak 判断 elems[i] 是否为合法断点：非 +∞ 的 penalty，
// 或紧跟在 box 之后且可断开的 glue。
func IsLegalBreak(elems []Element, i int) bool {
	e := elems[i]
	switch e.kind {
	case KindPenalty:
		return e.cost < Infinite
	case KindGlue:
		return e.breakable && i > 0 && elems[i-1].kind == KindBox
	default:
		return false
	}
}

// EndsWithForcedBreak reports whether the stream's last element forces a break.
func EndsWithForcedBreak(elems []Element) bool {
	return len(elems) > 0 && elems[len(elems)-1].IsForcedBreak()
}

// IsSingleForcedBreak reports a stream made of exactly one forced break.
func IsSingleForcedBreak(elems []Element) bool {
	return len(elems) == 1 && elems[0].IsForcedBreak()
}
