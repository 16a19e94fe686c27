package layout

import (
	"fmt"
	"math"
)

// Spacing 是三元宽度模型 {Min, Opt, Max}，单位为 millipoint（1/1000 pt）。
// 用于 glue 的伸缩量以及可用空间。所有运算按分量进行并在溢出时饱和。
type Spacing struct {
	Min int `json:"min"`
	Opt int `json:"opt"`
	Max int `json:"max"`
}

// NewSpacing 校验 min ≤ opt ≤ max 后构造 Spacing。
func NewSpacing(min, opt, max int) (Spacing, error) {
	if min > opt || opt > max {
		return Spacing{}, fmt.Errorf("spacing: 需要 min ≤ opt ≤ max，实际 %d/%d/%d", min, opt, max)
	}
	return Spacing{Min: min, Opt: opt, Max: max}, nil
}

// Fixed returns a spacing without stretch or shrink.
func Fixed(v int) Spacing { return Spacing{Min: v, Opt: v, Max: v} }

func (s Spacing) IsZero() bool { return s.Min == 0 && s.Opt == 0 && s.Max == 0 }

// Stretch is Max-Opt.
func (s Spacing) Stretch() int { return subSat(s.Max, s.Opt) }

// Shrink is Opt-Min.
func (s Spacing) Shrink() int { return subSat(s.Opt, s.Min) }

// Add 分量相加。
func (s Spacing) Add(o Spacing) Spacing {
	return Spacing{Min: addSat(s.Min, o.Min), Opt: addSat(s.Opt, o.Opt), Max: addSat(s.Max, o.Max)}
}

// Sub 计算 s - o。为了保持 min ≤ opt ≤ max，最小值减去对方最大值，最大值减去对方最小值。
func (s Spacing) Sub(o Spacing) Spacing {
	return Spacing{Min: subSat(s.Min, o.Max), Opt: subSat(s.Opt, o.Opt), Max: subSat(s.Max, o.Min)}
}

// Scale multiplies every component by k. Negative k swaps min and max.
func (s Spacing) Scale(k int) Spacing {
	a, b, c := mulSat(s.Min, k), mulSat(s.Opt, k), mulSat(s.Max, k)
	if k < 0 {
		a, c = c, a
	}
	return Spacing{Min: a, Opt: b, Max: c}
}

// Adjust 根据调整比例 r 返回实际尺寸：r ≥ 0 时按 stretch 拉伸，r < 0 时按 shrink 压缩。
// r 会被限制在 [-1, +∞) 内，避免压缩超过最小值。
func (s Spacing) Adjust(r float64) int {
	switch {
	case r > 0:
		return addSat(s.Opt, roundSat(r*float64(s.Stretch())))
	case r < 0:
		if r < -1 {
			r = -1
		}
		return addSat(s.Opt, roundSat(r*float64(s.Shrink())))
	default:
		return s.Opt
	}
}

func (s Spacing) String() string {
	if s.Min == s.Opt && s.Opt == s.Max {
		return fmt.Sprintf("%d", s.Opt)
	}
	return fmt.Sprintf("%d..%d..%d", s.Min, s.Opt, s.Max)
}

func addSat(a, b int) int {
	c := a + b
	if a > 0 && b > 0 && c < 0 {
		return math.MaxInt
	}
	if a < 0 && b < 0 && c >= 0 {
		return math.MinInt
	}
	return c
}

func subSat(a, b int) int {
	if b == math.MinInt {
		if a >= 0 {
			return math.MaxInt
		}
		return a - b
	}
	return addSat(a, -b)
}

func mulSat(a, k int) int {
	if a == 0 || k == 0 {
		return 0
	}
	c := a * k
	if c/k != a || (a == -1 && k == math.MinInt) || (k == -1 && a == math.MinInt) {
		if (a > 0) == (k > 0) {
			return math.MaxInt
		}
		return math.MinInt
	}
	return c
}

func roundSat(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(math.Round(f))
}
