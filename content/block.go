package content

import (
	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/layout"
)

// 块自身产生的叶子位置。
const (
	spaceBeforeIndex = iota
	spaceAfterIndex
	breakIndex
)

// BlockProps 是块级属性，全部已解析为 millipoint。
type BlockProps struct {
	SpaceBefore      layout.Spacing
	SpaceAfter       layout.Spacing
	KeepWithNext     bool
	KeepWithPrevious bool
	KeepTogether     bool
	BreakBefore      bool
	BreakAfter       bool
	Indent           int
	Label            string
	Fill             *area.Color
	Border           *area.Color
}

// Block 是块容器：在子内容前后加入 space 并处理 keep 与强制分页。
type Block struct {
	Props BlockProps
	stack layout.Stack

	brokeBefore bool
	started     bool
	labelled    bool
}

// NewBlock creates a block container.
func NewBlock(props BlockProps, children ...layout.Delegate) *Block {
	b := &Block{Props: props}
	b.stack = layout.Stack{Owner: b, Children: children}
	return b
}

// Add appends children.
func (b *Block) Add(children ...layout.Delegate) {
	b.stack.Children = append(b.stack.Children, children...)
}

// Children returns the block's child delegates.
func (b *Block) Children() []layout.Delegate { return b.stack.Children }

func (b *Block) KeepWithNext() bool     { return b.Props.KeepWithNext }
func (b *Block) KeepWithPrevious() bool { return b.Props.KeepWithPrevious }

func (b *Block) PullElements(ctx *layout.Context) ([]layout.Element, bool, error) {
	if b.Props.BreakBefore && !b.brokeBefore {
		b.brokeBefore = true
		return []layout.Element{layout.ForcedBreak(ctx.Positions.Leaf(b, breakIndex))}, false, nil
	}
	child := ctx.WithRefIPD(ctx.RefIPD - b.Props.Indent)
	elems, done, err := b.stack.Pull(child)
	if err != nil {
		return nil, false, err
	}
	// keep-together 的块一次交出全部内容，连接处的 penalty 才能一并禁止
	for b.Props.KeepTogether && !done && !layout.EndsWithForcedBreak(elems) {
		var more []layout.Element
		if more, done, err = b.stack.Pull(child); err != nil {
			return nil, false, err
		}
		elems = append(elems, more...)
	}
	if b.Props.KeepTogether {
		for i, e := range elems {
			switch {
			case e.IsPenalty() && !e.IsForcedBreak():
				elems[i] = e.WithCost(layout.Infinite)
			case e.IsGlue():
				elems[i] = e.Unbreakable()
			}
		}
	}
	var out []layout.Element
	if !b.started && len(elems) > 0 {
		b.started = true
		if !b.Props.SpaceBefore.IsZero() {
			out = append(out, layout.Glue(b.Props.SpaceBefore, false, ctx.Positions.Leaf(b, spaceBeforeIndex)))
		}
	}
	out = append(out, elems...)
	if done {
		if b.started && !b.Props.SpaceAfter.IsZero() && !layout.EndsWithForcedBreak(out) {
			out = append(out, layout.Glue(b.Props.SpaceAfter, !b.Props.KeepWithNext, ctx.Positions.Leaf(b, spaceAfterIndex)))
		}
		if b.Props.BreakAfter {
			out = append(out, layout.ForcedBreak(ctx.Positions.Leaf(b, breakIndex)))
		}
	}
	return out, done, nil
}

// AttachAreas 为本页上属于该块的内容生成一个块区域。
func (b *Block) AttachAreas(positions []layout.Position, ac *layout.AreaContext) error {
	blk := &area.Block{
		Kind:   "block",
		X:      b.Props.Indent,
		Width:  ac.Target.ContentWidth() - b.Props.Indent,
		Fill:   b.Props.Fill,
		Border: b.Props.Border,
	}
	if !b.labelled && b.Props.Label != "" {
		blk.Label = b.Props.Label
		b.labelled = true
	}
	var before, after int
	err := layout.DescendAreas(positions, ac.WithTarget(blk), func(index int) error {
		switch index {
		case spaceBeforeIndex:
			before = b.Props.SpaceBefore.Adjust(ac.Ratio)
		case spaceAfterIndex:
			after = b.Props.SpaceAfter.Adjust(ac.Ratio)
		}
		return nil
	})
	if err != nil {
		return err
	}
	ac.Target.AddSpace(before)
	if blk.Height > 0 || len(blk.Children) > 0 || blk.Label != "" {
		ac.Target.AddBlock(blk)
	}
	ac.Target.AddSpace(after)
	return nil
}

// ResumeAt 从子内容中的 pos 恢复；space-before 与 break-before 不再重复产生。
func (b *Block) ResumeAt(pos layout.Position, positions *layout.PositionArena) bool {
	if !b.stack.ResumeAt(pos, positions) {
		return false
	}
	b.brokeBefore = true
	b.started = true
	return true
}

func (b *Block) ResetBreakState() {
	b.stack.Reset()
	b.brokeBefore = false
	b.started = false
	b.labelled = false
}
