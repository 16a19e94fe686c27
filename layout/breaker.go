package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrExhausted 表示断页器已经没有可输出的 part。
var ErrExhausted = errors.New("layout: breaker exhausted")

// FillStretch 是段尾填充 glue 的伸展量，足够大以至于调整比例趋近于 0。
const FillStretch = 1 << 40

// recoveryDemerits 在不得不接受欠满断点时追加的代价。
const recoveryDemerits = 1e6

// Part 是断开结果中的一个单元（一行或一页）。
type Part struct {
	Start      int       `json:"start"` // 首元素下标（含）
	End        int       `json:"end"`   // 末元素下标（不含）
	Elements   []Element `json:"-"`
	Ratio      float64   `json:"ratio"`
	Natural    Spacing   `json:"natural"`
	Available  int       `json:"available"`
	Difference Spacing   `json:"difference"`
	Demerits   float64   `json:"demerits"`
	Overflow   bool      `json:"overflow,omitempty"`
	Excess     int       `json:"excess,omitempty"`
	Underfull  bool      `json:"underfull,omitempty"`
	Forced     bool      `json:"forced,omitempty"`
}

// Positions returns the non-empty positions of the part's elements in order.
func (p Part) Positions() []Position {
	out := make([]Position, 0, len(p.Elements))
	for _, e := range p.Elements {
		if e.Position() != NoPosition {
			out = append(out, e.Position())
		}
	}
	return out
}

// Width 返回应用调整比例后的实际尺寸。
func (p Part) Width() int { return p.Natural.Adjust(p.Ratio) }

// Ratio 计算把 natural 调整到 available 所需的比例。
// 伸展量为 0 时返回 +Inf，压缩量为 0 时返回 -Inf。
func Ratio(natural Spacing, available int) float64 {
	diff := available - natural.Opt
	switch {
	case diff == 0:
		return 0
	case diff > 0:
		if st := natural.Stretch(); st > 0 {
			return float64(diff) / float64(st)
		}
		return math.Inf(1)
	default:
		if sh := natural.Shrink(); sh > 0 {
			return float64(diff) / float64(sh)
		}
		return math.Inf(-1)
	}
}

// Badness 随 |r| 三次方增长；超出 glue 能力（r < -1 或 r > tolerance）时为 +Inf。
func Badness(r, tolerance float64) float64 {
	if r < -1 || r > tolerance || math.IsNaN(r) {
		return math.Inf(1)
	}
	a := math.Abs(r)
	return 100 * a * a * a
}

// measure 维护元素流的前缀和，以便 O(1) 求任意区间的自然尺寸。
type measure struct {
	prefix []Spacing
}

func newMeasure(elems []Element) *measure {
	m := &measure{prefix: make([]Spacing, 1, len(elems)+1)}
	m.extend(elems)
	return m
}

func (m *measure) extend(elems []Element) {
	acc := m.prefix[len(m.prefix)-1]
	for _, e := range elems {
		acc = acc.Add(e.Size())
		m.prefix = append(m.prefix, acc)
	}
}

// span 返回 [s, b) 的自然尺寸；若在 penalty 处断开，加上该 penalty 的宽度。
func (m *measure) span(elems []Element, s, b int) Spacing {
	hi, lo := m.prefix[b], m.prefix[s]
	nat := Spacing{Min: subSat(hi.Min, lo.Min), Opt: subSat(hi.Opt, lo.Opt), Max: subSat(hi.Max, lo.Max)}
	if b < len(elems) && elems[b].IsPenalty() {
		nat = nat.Add(Fixed(elems[b].width))
	}
	return nat
}

// skipDiscardable 返回断点之后第一个 box 的下标；断点后的 glue 与 penalty 被丢弃。
func skipDiscardable(elems []Element, from int) int {
	for from < len(elems) && !elems[from].IsBox() {
		from++
	}
	return from
}

func penaltyCost(elems []Element, b int) float64 {
	if b < len(elems) && elems[b].IsPenalty() && !elems[b].IsForcedBreak() {
		return float64(elems[b].cost)
	}
	return 0
}

func isFlaggedBreak(elems []Element, b int) bool {
	return b >= 0 && b < len(elems) && elems[b].IsPenalty() && elems[b].flagged
}

// partEnd 返回 part 的结束下标：在 penalty 处断开时包含该 penalty。
func partEnd(elems []Element, b int) int {
	if b < len(elems) && elems[b].IsPenalty() {
		return b + 1
	}
	return b
}

// settle 根据断点类型整理调整比例并填充 Part 的派生字段。
func settle(p *Part, closing bool, tolerance float64) {
	r := Ratio(p.Natural, p.Available)
	switch {
	case r < -1:
		p.Overflow = true
		p.Excess = p.Natural.Min - p.Available
		if p.Natural.Shrink() > 0 {
			r = -1
		} else {
			r = 0
		}
	case r > 0 && closing:
		// 最后一段与强制断开不拉伸
		p.Underfull = p.Natural.Opt < p.Available
		r = 0
	case r > tolerance:
		p.Underfull = true
		if math.IsInf(r, 1) {
			r = 0
		}
	}
	p.Ratio = r
	p.Difference = Fixed(p.Available).Sub(p.Natural)
}

type breakNode struct {
	brk      int // 断点元素下标，起点为 -1
	next     int // 下一段首元素下标
	demerits float64
	parts    int
	prev     *breakNode
	overflow bool
	short    bool
}

func better(c, best *breakNode) bool {
	if best == nil {
		return true
	}
	if c.demerits != best.demerits {
		return c.demerits < best.demerits
	}
	if c.parts != best.parts {
		return c.parts < best.parts
	}
	return c.prev.brk < best.prev.brk
}

// BreakBestFit 在所有合法断点上做动态规划，返回总代价最小的断开方案。
// 所有 part 的可用宽度相同。空流返回 nil。
func BreakBestFit(elems []Element, available int, p Params) []Part {
	n := len(elems)
	if n == 0 {
		return nil
	}
	if p.Tolerance <= 0 {
		p.Tolerance = DefaultParams().Tolerance
	}
	m := newMeasure(elems)
	start := &breakNode{brk: -1, next: 0}
	active := []*breakNode{start}

	evaluate := func(a *breakNode, b int, closing bool) (*breakNode, bool) {
		nat := m.span(elems, a.next, b)
		r := Ratio(nat, available)
		if r < -1 {
			return nil, true
		}
		if closing && r > 0 {
			r = 0
		}
		bad := Badness(r, p.Tolerance)
		if math.IsInf(bad, 1) {
			return nil, false
		}
		d := a.demerits + bad + penaltyCost(elems, b)
		if isFlaggedBreak(elems, b) && isFlaggedBreak(elems, a.brk) {
			d += float64(p.FlaggedDemerits)
		}
		return &breakNode{brk: b, next: skipDiscardable(elems, b+1), demerits: d, parts: a.parts + 1, prev: a}, false
	}

	for b := 0; b <= n; b++ {
		final := b == n
		if !final && !IsLegalBreak(elems, b) {
			continue
		}
		forced := !final && elems[b].IsForcedBreak()
		closing := final || forced
		for {
			var (
				best    *breakNode
				tooLong []*breakNode
				kept    = active[:0:0]
			)
			for _, a := range active {
				if a.next >= b {
					kept = append(kept, a)
					continue
				}
				c, long := evaluate(a, b, closing)
				if long {
					tooLong = append(tooLong, a)
					continue
				}
				kept = append(kept, a)
				if c != nil && better(c, best) {
					best = c
				}
			}
			active = kept
			if best == nil && len(active) == 0 && len(tooLong) > 0 {
				node, retry := recoverBreak(elems, m, tooLong, b, available, p.Tolerance)
				if retry {
					active = []*breakNode{node}
					continue
				}
				best = node
			}
			if best != nil {
				if closing {
					active = []*breakNode{best}
				} else {
					active = append(active, best)
				}
			}
			break
		}
	}

	var last *breakNode
	for _, a := range active {
		if last == nil || a.brk > last.brk || (a.brk == last.brk && better(a, last)) {
			last = a
		}
	}
	var path []*breakNode
	for node := last; node != nil && node.prev != nil; node = node.prev {
		path = append(path, node)
	}
	parts := make([]Part, 0, len(path))
	for i := len(path) - 1; i >= 0; i-- {
		node := path[i]
		s := node.prev.next
		part := Part{
			Start:     s,
			End:       partEnd(elems, node.brk),
			Natural:   m.span(elems, s, node.brk),
			Available: available,
			Demerits:  node.demerits - node.prev.demerits,
			Forced:    node.brk < n && elems[node.brk].IsForcedBreak(),
		}
		part.Elements = elems[part.Start:part.End]
		settle(&part, node.brk == n || part.Forced, p.Tolerance)
		parts = append(parts, part)
	}
	return parts
}

// recoverBreak 处理所有活动节点都放不下的情况：优先在溢出点之前最后一个合法断点处
// 欠满断开（需要以该节点重新评估 b，retry=true），否则在 b 处溢出断开。
func recoverBreak(elems []Element, m *measure, tooLong []*breakNode, b, available int, tolerance float64) (*breakNode, bool) {
	var a *breakNode
	for _, c := range tooLong {
		if a == nil || c.demerits < a.demerits || (c.demerits == a.demerits && c.parts < a.parts) {
			a = c
		}
	}
	for q := b - 1; q > a.next; q-- {
		if !IsLegalBreak(elems, q) {
			continue
		}
		tracer().Debugf("layout: 元素 %d 处放不下，回退到 %d 欠满断开", b, q)
		return &breakNode{
			brk:      q,
			next:     skipDiscardable(elems, q+1),
			demerits: a.demerits + recoveryDemerits,
			parts:    a.parts + 1,
			prev:     a,
			short:    true,
		}, true
	}
	tracer().Debugf("layout: 元素 %d 之前没有合法断点，溢出断开", b)
	return &breakNode{
		brk:      b,
		next:     skipDiscardable(elems, b+1),
		demerits: a.demerits + recoveryDemerits,
		parts:    a.parts + 1,
		prev:     a,
		overflow: true,
	}, false
}

// BreakerState 是按页断开器的状态。
type BreakerState int

const (
	StatePending BreakerState = iota
	StateAccumulating
	StateEmittingPart
	StateExhausted
)

func (s BreakerState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAccumulating:
		return "accumulating"
	case StateEmittingPart:
		return "emitting-part"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PageBreaker 实现可用空间逐 part 变化的断开模式：
// 每次 Next 只确定一个 part，下一 part 的可用空间在当前 part 提交之后才查询。
type PageBreaker struct {
	src    Source
	params Params

	buf     []Element
	m       *measure
	base    int // buf[0] 在整个流中的下标
	pos     int // 下一个 part 的起点（buf 内下标）
	srcDone bool
	state   BreakerState
	// lastFlagged 记录上一个 part 是否在 flagged penalty 处断开，跨越 Release 保留
	lastFlagged bool
	emitted     int
}

// NewPageBreaker creates a breaker that pulls elements lazily from src.
func NewPageBreaker(src Source, p Params) *PageBreaker {
	if p.Tolerance <= 0 {
		p.Tolerance = DefaultParams().Tolerance
	}
	return &PageBreaker{src: src, params: p, m: newMeasure(nil)}
}

// State returns the current state.
func (b *PageBreaker) State() BreakerState { return b.state }

// Emitted returns the number of parts produced so far.
func (b *PageBreaker) Emitted() int { return b.emitted }

func (b *PageBreaker) pull() error {
	if b.srcDone {
		return nil
	}
	elems, done, err := b.src()
	if err != nil {
		return err
	}
	b.srcDone = done
	b.buf = append(b.buf, elems...)
	b.m.extend(elems)
	return nil
}

// More 报告是否还有 part 可以输出；没有时状态变为 Exhausted。
func (b *PageBreaker) More() (bool, error) {
	if b.state == StateExhausted {
		return false, nil
	}
	for {
		if b.emitted > 0 {
			b.pos = skipDiscardable(b.buf, b.pos)
		}
		if b.pos < len(b.buf) {
			return true, nil
		}
		if b.srcDone {
			b.state = StateExhausted
			return false, nil
		}
		if err := b.pull(); err != nil {
			return false, err
		}
	}
}

// Next 在给定可用空间下确定下一个 part。
func (b *PageBreaker) Next(available int) (Part, error) {
	more, err := b.More()
	if err != nil {
		return Part{}, err
	}
	if !more {
		return Part{}, ErrExhausted
	}
	b.state = StateAccumulating

	var (
		best      = -1
		bestD     = math.Inf(1)
		lastShort = -1
		tooLong   = -1
		chosen    = -1
	)
	i := b.pos
	for {
		if i == len(b.buf) {
			if !b.srcDone {
				if err := b.pull(); err != nil {
					return Part{}, err
				}
				continue
			}
			nat := b.m.span(b.buf, b.pos, i)
			if Ratio(nat, available) >= -1 {
				chosen = i
			} else if tooLong < 0 {
				tooLong = i
			}
			break
		}
		if i > b.pos && IsLegalBreak(b.buf, i) {
			nat := b.m.span(b.buf, b.pos, i)
			r := Ratio(nat, available)
			if r < -1 {
				tooLong = i
				break
			}
			if b.buf[i].IsForcedBreak() {
				chosen = i
				break
			}
			bad := Badness(r, b.params.Tolerance)
			if math.IsInf(bad, 1) {
				lastShort = i
			} else {
				d := bad + penaltyCost(b.buf, i)
				if isFlaggedBreak(b.buf, i) && b.lastFlagged {
					d += float64(b.params.FlaggedDemerits)
				}
				if d < bestD {
					best, bestD = i, d
				}
			}
		}
		i++
	}

	brk := chosen
	switch {
	case brk >= 0:
	case best >= 0:
		brk = best
	case lastShort >= 0:
		brk = lastShort
	default:
		brk = tooLong
	}
	return b.emit(brk, available), nil
}

func (b *PageBreaker) emit(brk, available int) Part {
	b.state = StateEmittingPart
	final := brk >= len(b.buf)
	forced := !final && b.buf[brk].IsForcedBreak()
	part := Part{
		Start:     b.base + b.pos,
		End:       b.base + partEnd(b.buf, brk),
		Natural:   b.m.span(b.buf, b.pos, brk),
		Available: available,
		Forced:    forced,
	}
	part.Elements = b.buf[b.pos:partEnd(b.buf, brk)]
	settle(&part, final || forced, b.params.Tolerance)
	if !part.Overflow && !part.Underfull {
		part.Demerits = Badness(part.Ratio, b.params.Tolerance) + penaltyCost(b.buf, brk)
		if isFlaggedBreak(b.buf, brk) && b.lastFlagged {
			part.Demerits += float64(b.params.FlaggedDemerits)
		}
	}
	b.emitted++
	switch {
	case part.Overflow:
		tracer().Infof("layout: part %d [%d,%d) 溢出 %d", b.emitted, part.Start, part.End, part.Excess)
	case part.Underfull && !final:
		tracer().Debugf("layout: part %d [%d,%d) 欠满, natural=%d available=%d", b.emitted, part.Start, part.End, part.Natural.Opt, available)
	default:
		tracer().Debugf("layout: part %d 断在 [%d,%d) ratio=%.3f demerits=%g", b.emitted, part.Start, part.End, part.Ratio, part.Demerits)
	}
	if final {
		b.pos = len(b.buf)
		b.state = StateExhausted
		return part
	}
	b.lastFlagged = isFlaggedBreak(b.buf, brk)
	b.pos = brk + 1
	return part
}

// Release 丢弃已经输出的元素，释放断点缓存。
func (b *PageBreaker) Release() {
	if b.pos == 0 {
		return
	}
	n := b.pos
	b.base += n
	b.buf = append([]Element(nil), b.buf[n:]...)
	b.m = newMeasure(b.buf)
	b.pos = 0
}

// Pending 返回第一个尚未输出的元素的位置；缓存中没有未输出的元素时 ok 为 false。
func (b *PageBreaker) Pending() (pos Position, ok bool) {
	i := b.pos
	if b.emitted > 0 {
		i = skipDiscardable(b.buf, i)
	}
	if i >= len(b.buf) {
		return NoPosition, false
	}
	return b.buf[i].Position(), true
}

// Restart 丢弃全部缓存（已输出的部分先 Release），之后从 src 继续拉取。
// 用于可用宽度变化、未输出的元素需要重新生成的情形。
func (b *PageBreaker) Restart(src Source) {
	b.Release()
	b.base += len(b.buf)
	b.buf = nil
	b.m = newMeasure(nil)
	b.pos = 0
	b.src = src
	b.srcDone = false
	if b.state == StateExhausted {
		b.state = StatePending
	}
}

// BreakVarying 逐 part 断开整个流，available(i) 给出第 i 个 part 的可用空间，
// 只在第 i-1 个 part 确定之后才调用。
func BreakVarying(elems []Element, available func(i int) int, p Params) ([]Part, error) {
	br := NewPageBreaker(SliceSource(elems), p)
	var parts []Part
	for {
		more, err := br.More()
		if err != nil {
			return parts, err
		}
		if !more {
			return parts, nil
		}
		part, err := br.Next(available(len(parts)))
		if err != nil {
			return parts, err
		}
		parts = append(parts, part)
	}
}
