package layout

import (
	"errors"

	"github.com/ByLCY/quire/area"
)

// ErrFinished 表示向已经结束的内容委托继续拉取元素。
var ErrFinished = errors.New("layout: delegate already finished")

// JoinIndex 是容器在子流之间插入的 penalty 使用的叶子索引。
const JoinIndex = 1 << 30

// Delegate 是所有内容生产者（段落、块容器、静态区域、表格……）实现的协议。
//
// PullElements 返回下一段元素流以及是否已经没有更多内容；
// AttachAreas 在断点确定后根据位置句柄生成具体区域；
// ResetBreakState 丢弃断点缓存，使委托可以重新排版（例如每页重排的静态内容）。
type Delegate interface {
	PullElements(ctx *Context) ([]Element, bool, error)
	AttachAreas(positions []Position, ac *AreaContext) error
	ResetBreakState()
}

// Keeper 由需要与相邻内容保持在一起的委托实现。
type Keeper interface {
	KeepWithNext() bool
	KeepWithPrevious() bool
}

func keepWithNext(d Delegate) bool {
	k, ok := d.(Keeper)
	return ok && k.KeepWithNext()
}

func keepWithPrevious(d Delegate) bool {
	k, ok := d.(Keeper)
	return ok && k.KeepWithPrevious()
}

// Context 是拉取元素时向下传递的排版上下文。
type Context struct {
	Available  Spacing // 目标区域在块方向上的可用空间
	RefIPD     int     // 参考行宽
	Alignment  Alignment
	Positions  *PositionArena
	Measurer   Measurer
	PageNumber int
	Params     Params
}

// WithRefIPD returns a copy of ctx with a different reference width.
func (c *Context) WithRefIPD(w int) *Context {
	cp := *c
	cp.RefIPD = w
	return &cp
}

// AreaContext 是生成区域时向下传递的上下文。
type AreaContext struct {
	Positions  *PositionArena
	Ratio      float64 // 当前 part 的调整比例，作用于委托自己拥有的 glue
	Target     area.Container
	PageNumber int
}

// WithTarget returns a copy of ac that adds areas to t.
func (ac *AreaContext) WithTarget(t area.Container) *AreaContext {
	cp := *ac
	cp.Target = t
	return &cp
}

// Resumer 由能从自身流中某个位置重新生成元素的委托实现。
// 参考宽度变化时，尚未输出的元素需要按新宽度重新生成。
type Resumer interface {
	// ResumeAt 让下一次 PullElements 从 pos（该委托产生的位置）开始重新生成；
	// 返回 false 表示无法从该位置恢复。
	ResumeAt(pos Position, positions *PositionArena) bool
}

// Stack 实现容器委托拼接子元素流的规则：
// 包装位置、子流之间插入 penalty、遇到强制断开立即向上传递。
// 累积的内容超过 ctx.Available 后在子委托之间停下，使上层可以逐页拉取。
type Stack struct {
	Owner    Delegate
	Children []Delegate

	next     int
	prev     Delegate
	current  bool // Children[next] 已经产生过元素
	endsGlue bool // 已输出的流以 glue 结尾
	finished bool
}

// Finished reports whether all children have been pulled.
func (s *Stack) Finished() bool { return s.finished }

// Pull 依次拉取子委托的元素并拼接。
func (s *Stack) Pull(ctx *Context) ([]Element, bool, error) {
	if s.finished {
		return nil, true, ErrFinished
	}
	var out []Element
	for s.next < len(s.Children) {
		child := s.Children[s.next]
		if len(out) > 0 && !s.current && full(out, ctx.Available) &&
			!keepWithNext(s.prev) && !keepWithPrevious(child) {
			return out, false, nil
		}
		returned, childDone, err := child.PullElements(ctx)
		if err != nil {
			return nil, false, err
		}
		fresh := !s.current
		if childDone {
			s.next++
			s.current = false
		}
		if len(returned) == 0 {
			continue
		}
		if !childDone {
			s.current = true
		}
		wrapped := make([]Element, len(returned))
		for i, e := range returned {
			wrapped[i] = e.WithPosition(ctx.Positions.Wrap(s.Owner, e.Position()))
		}

		if IsSingleForcedBreak(wrapped) {
			// 后代声明了 break-before
			out = append(out, wrapped...)
			s.prev = nil // 强制断开之后不再需要连接 penalty
			s.endsGlue = false
			return out, s.done(), nil
		}
		if fresh && s.prev != nil {
			if keepWithNext(s.prev) || keepWithPrevious(child) {
				lockTrailingGlue(out)
				out = append(out, Penalty(0, Infinite, false, ctx.Positions.Leaf(s.Owner, JoinIndex)))
			} else if !s.endsGlue {
				out = append(out, Penalty(0, 0, false, ctx.Positions.Leaf(s.Owner, JoinIndex)))
			}
		}
		out = append(out, wrapped...)
		s.prev = child
		s.endsGlue = out[len(out)-1].IsGlue()
		if EndsWithForcedBreak(wrapped) {
			// 后代声明了 break-after
			s.prev = nil
			return out, s.done(), nil
		}
		if !childDone {
			// 子委托只交出了一部分
			return out, false, nil
		}
	}
	s.finished = true
	return out, true, nil
}

// full 报告 out 的自然尺寸是否已经超过可用空间；可用空间为 0 表示不限制。
func full(out []Element, available Spacing) bool {
	if available.Max <= 0 {
		return false
	}
	size := 0
	for _, e := range out {
		size = addSat(size, e.Size().Opt)
	}
	return size > available.Max
}

// lockTrailingGlue 让流末尾的 glue 不再可断开，使 keep 约束在连接处生效。
func lockTrailingGlue(out []Element) {
	for i := len(out) - 1; i >= 0 && out[i].IsGlue(); i-- {
		out[i] = out[i].Unbreakable()
	}
}

func (s *Stack) done() bool {
	if s.next >= len(s.Children) {
		s.finished = true
	}
	return s.finished
}

// Reset rewinds the stack and resets every child.
func (s *Stack) Reset() {
	s.next = 0
	s.prev = nil
	s.current = false
	s.endsGlue = false
	s.finished = false
	for _, c := range s.Children {
		c.ResetBreakState()
	}
}

// ResumeAt 把拉取游标移到 pos 所属的子委托，并让该子委托从内层位置恢复；
// 其后的子委托全部重置。pos 必须是本栈包装过的位置。
func (s *Stack) ResumeAt(pos Position, positions *PositionArena) bool {
	if positions.Owner(pos) != s.Owner {
		return false
	}
	inner := positions.Unwrap(pos)
	if inner == NoPosition {
		return false
	}
	owner := positions.Owner(inner)
	idx := -1
	for i, c := range s.Children {
		if c == owner {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	r, ok := owner.(Resumer)
	if !ok || !r.ResumeAt(inner, positions) {
		return false
	}
	for _, c := range s.Children[idx+1:] {
		c.ResetBreakState()
	}
	s.next = idx
	s.prev = owner
	s.current = true
	s.endsGlue = false
	s.finished = false
	return true
}

// DescendAreas 沿位置链向下一层：连续属于同一子委托的位置合并后调用其 AttachAreas。
// 容器自身产生的叶子位置交给 own 处理（可以为 nil）。
func DescendAreas(positions []Position, ac *AreaContext, own func(index int) error) error {
	var (
		cur   Delegate
		group []Position
	)
	flush := func() error {
		if cur == nil || len(group) == 0 {
			return nil
		}
		err := cur.AttachAreas(group, ac)
		group = nil
		return err
	}
	for _, p := range positions {
		inner := ac.Positions.Unwrap(p)
		if inner == NoPosition {
			if err := flush(); err != nil {
				return err
			}
			cur = nil
			if own != nil && ac.Positions.IsLeaf(p) {
				if err := own(ac.Positions.Index(p)); err != nil {
					return err
				}
			}
			continue
		}
		owner := ac.Positions.Owner(inner)
		if owner != cur {
			if err := flush(); err != nil {
				return err
			}
			cur = owner
		}
		group = append(group, inner)
	}
	return flush()
}

// Source 为按页断开提供惰性的元素来源。
type Source func() ([]Element, bool, error)

// DelegateSource pulls from d with ctx until d reports it is finished.
func DelegateSource(d Delegate, ctx *Context) Source {
	done := false
	return func() ([]Element, bool, error) {
		if done {
			return nil, true, nil
		}
		elems, finished, err := d.PullElements(ctx)
		if err != nil {
			return nil, false, err
		}
		done = finished
		return elems, finished, nil
	}
}

// SliceSource serves a fixed stream in one go.
func SliceSource(elems []Element) Source {
	served := false
	return func() ([]Element, bool, error) {
		if served {
			return nil, true, nil
		}
		served = true
		return elems, true, nil
	}
}
