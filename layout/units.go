package layout

import (
	"strconv"
	"strings"
)

// This file defines unit-safe lengths. Layout works in millipoints (mpt),
// renderers work in millimetres.

// Unit represents the original unit of a length value as written in the DSL.
type Unit int

const (
	UnitNone Unit = iota // unit-less numbers like factors
	UnitMM               // millimeters
	UnitCM               // centimeters
	UnitIN               // inches
	UnitPT               // points
)

// Conversion constants between pt and mm.
const (
	PtToMm = 25.4 / 72
	MmToPt = 72 / 25.4
	// MptPerPt 每 pt 的 millipoint 数。
	MptPerPt = 1000
)

// UnitToString returns a short string for a Unit value.
func UnitToString(u Unit) string {
	switch u {
	case UnitMM:
		return "mm"
	case UnitCM:
		return "cm"
	case UnitIN:
		return "in"
	case UnitPT:
		return "pt"
	default:
		return ""
	}
}

// Length preserves a numeric value with its unit.
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

func (l Length) IsZero() bool { return l.Value == 0 }

// ToPT converts to points. Unit-less values are taken as points.
func (l Length) ToPT() float64 {
	switch l.Unit {
	case UnitMM:
		return l.Value * MmToPt
	case UnitCM:
		return l.Value * 10 * MmToPt
	case UnitIN:
		return l.Value * 72
	default:
		return l.Value
	}
}

// ToMM converts to millimetres.
func (l Length) ToMM() float64 { return l.ToPT() * PtToMm }

// Mpt 转换为布局使用的 millipoint 整数。
func (l Length) Mpt() int { return roundSat(l.ToPT() * MptPerPt) }

// MptToMM 将 millipoint 转换为毫米，供渲染器使用。
func MptToMM(v int) float64 { return float64(v) / MptPerPt * PtToMm }

// MMToMpt 将毫米转换为 millipoint。
func MMToMpt(mm float64) int { return roundSat(mm * MmToPt * MptPerPt) }

// ParseLength parses a DSL length such as "12pt" or "1.5cm".
// ok is false when the numeric part is not a number.
func ParseLength(value string) (Length, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return Length{}, false
	}
	unit := UnitNone
	num := v
	for _, suf := range []struct {
		s string
		u Unit
	}{{"mm", UnitMM}, {"cm", UnitCM}, {"in", UnitIN}, {"pt", UnitPT}} {
		if strings.HasSuffix(v, suf.s) {
			unit = suf.u
			num = strings.TrimSpace(strings.TrimSuffix(v, suf.s))
			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, false
	}
	return Length{Value: f, Unit: unit}, true
}

// ParseMpt 解析长度并直接返回 millipoint；无法解析时返回 0,false。
func ParseMpt(value string) (int, bool) {
	l, ok := ParseLength(value)
	if !ok {
		return 0, false
	}
	return l.Mpt(), true
}

// LineHeightKind distinguishes factor-based vs absolute line-height values.
type LineHeightKind int

const (
	LineHeightFactor LineHeightKind = iota
	LineHeightAbsolute
)

// LineHeightSpec preserves author intent: a factor (1.2x) or an absolute length (18pt).
type LineHeightSpec struct {
	Kind   LineHeightKind `json:"kind"`
	Factor float64        `json:"factor,omitempty"`
	Len    Length         `json:"len,omitempty"`
}

// ParseLineHeight 解析 "1.2x" 或 "14pt"。
func ParseLineHeight(value string) (LineHeightSpec, bool) {
	v := strings.TrimSpace(value)
	if strings.HasSuffix(v, "x") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "x"), 64)
		if err != nil || f <= 0 {
			return LineHeightSpec{}, false
		}
		return LineHeightSpec{Kind: LineHeightFactor, Factor: f}, true
	}
	l, ok := ParseLength(v)
	if !ok || l.Value <= 0 {
		return LineHeightSpec{}, false
	}
	return LineHeightSpec{Kind: LineHeightAbsolute, Len: l}, true
}

// Resolve computes the absolute line height in millipoints for the given font size.
func (s LineHeightSpec) Resolve(fontSize int) int {
	switch s.Kind {
	case LineHeightAbsolute:
		return s.Len.Mpt()
	case LineHeightFactor:
		if s.Factor > 0 {
			return roundSat(float64(fontSize) * s.Factor)
		}
	}
	return roundSat(float64(fontSize) * 1.2)
}
