// Package content 实现具体的内容委托：流、块、段落、图片、表格、空白与分页。
// 每种内容只通过 layout.Delegate 协议与断开算法交互。
package content

import (
	"github.com/ByLCY/quire/layout"
)

// Flow 是一个页面序列的顶层流（body 或静态区域），把子内容依次拼接。
type Flow struct {
	Name  string
	stack layout.Stack
}

var (
	_ layout.Delegate = (*Flow)(nil)
	_ layout.Delegate = (*Block)(nil)
	_ layout.Delegate = (*Paragraph)(nil)
	_ layout.Delegate = (*Image)(nil)
	_ layout.Delegate = (*Table)(nil)
	_ layout.Delegate = (*Space)(nil)
	_ layout.Delegate = (*Break)(nil)
	_ layout.Keeper   = (*Block)(nil)

	_ layout.Resumer = (*Flow)(nil)
	_ layout.Resumer = (*Block)(nil)
	_ layout.Resumer = (*Paragraph)(nil)
	_ layout.Resumer = (*Image)(nil)
	_ layout.Resumer = (*Table)(nil)
	_ layout.Resumer = (*Space)(nil)
)

// NewFlow creates a flow over children.
func NewFlow(name string, children ...layout.Delegate) *Flow {
	f := &Flow{Name: name}
	f.stack = layout.Stack{Owner: f, Children: children}
	return f
}

// Add appends a child.
func (f *Flow) Add(children ...layout.Delegate) {
	f.stack.Children = append(f.stack.Children, children...)
}

// Children returns the flow's direct children.
func (f *Flow) Children() []layout.Delegate { return f.stack.Children }

func (f *Flow) PullElements(ctx *layout.Context) ([]layout.Element, bool, error) {
	return f.stack.Pull(ctx)
}

// AttachAreas 把子内容的区域直接放入目标区域。
func (f *Flow) AttachAreas(positions []layout.Position, ac *layout.AreaContext) error {
	return layout.DescendAreas(positions, ac, nil)
}

func (f *Flow) ResetBreakState() { f.stack.Reset() }

// ResumeAt 让流从 pos 处重新生成元素，pos 是流自己交出的位置。
func (f *Flow) ResumeAt(pos layout.Position, positions *layout.PositionArena) bool {
	return f.stack.ResumeAt(pos, positions)
}
