package content

import (
	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/layout"
)

// Image 是不可分割的图片块。Width 为 0 时占满参考宽度，Height 为 0 时与宽度相同。
type Image struct {
	Src     string
	Width   int
	Height  int
	Fit     string
	Opacity float64

	width  int
	height int
	done   bool
}

func (img *Image) PullElements(ctx *layout.Context) ([]layout.Element, bool, error) {
	if img.done {
		return nil, true, nil
	}
	img.done = true
	img.width = img.Width
	if img.width <= 0 || img.width > ctx.RefIPD {
		img.width = ctx.RefIPD
	}
	img.height = img.Height
	if img.height <= 0 {
		img.height = img.width
	} else if img.Width > img.width {
		// 缩放到参考宽度时保持比例
		img.height = img.height * img.width / img.Width
	}
	return []layout.Element{layout.Box(img.height, ctx.Positions.Leaf(img, 0))}, true, nil
}

func (img *Image) AttachAreas(positions []layout.Position, ac *layout.AreaContext) error {
	return layout.DescendAreas(positions, ac, func(int) error {
		opacity := img.Opacity
		if opacity <= 0 {
			opacity = 1
		}
		ac.Target.AddBlock(&area.Block{
			Kind:   "image",
			Width:  img.width,
			Height: img.height,
			Image:  &area.Image{Src: img.Src, Fit: img.Fit, Opacity: opacity},
		})
		return nil
	})
}

func (img *Image) ResetBreakState() { img.done = false }

// ResumeAt 图片不可分割，恢复即重新生成整张图片。
func (img *Image) ResumeAt(layout.Position, *layout.PositionArena) bool {
	img.done = false
	return true
}

// Space 是块方向上的可伸缩空白，本身是一个合法断点。
type Space struct {
	Size layout.Spacing
	done bool
}

func (s *Space) PullElements(ctx *layout.Context) ([]layout.Element, bool, error) {
	if s.done {
		return nil, true, nil
	}
	s.done = true
	return []layout.Element{layout.Glue(s.Size, true, ctx.Positions.Leaf(s, 0))}, true, nil
}

func (s *Space) AttachAreas(positions []layout.Position, ac *layout.AreaContext) error {
	return layout.DescendAreas(positions, ac, func(int) error {
		ac.Target.AddSpace(s.Size.Adjust(ac.Ratio))
		return nil
	})
}

func (s *Space) ResetBreakState() { s.done = false }

func (s *Space) ResumeAt(layout.Position, *layout.PositionArena) bool {
	s.done = false
	return true
}

// Break 强制分页。
type Break struct {
	done bool
}

func (b *Break) PullElements(ctx *layout.Context) ([]layout.Element, bool, error) {
	if b.done {
		return nil, true, nil
	}
	b.done = true
	return []layout.Element{layout.ForcedBreak(ctx.Positions.Leaf(b, 0))}, true, nil
}

func (b *Break) AttachAreas([]layout.Position, *layout.AreaContext) error { return nil }

func (b *Break) ResetBreakState() { b.done = false }
