package layout

import "github.com/ByLCY/quire/area"

// stubDelegate 返回预先给定的元素块，并记录 AttachAreas 收到的位置。
type stubDelegate struct {
	chunks   [][]Element
	keepNext bool
	keepPrev bool
	attached [][]Position
	resets   int
	pulled   int
}

func (s *stubDelegate) PullElements(ctx *Context) ([]Element, bool, error) {
	if len(s.chunks) == 0 {
		return nil, true, nil
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	out := make([]Element, len(chunk))
	for i, e := range chunk {
		out[i] = e.WithPosition(ctx.Positions.Leaf(s, s.pulled))
		s.pulled++
	}
	return out, len(s.chunks) == 0, nil
}

func (s *stubDelegate) AttachAreas(positions []Position, ac *AreaContext) error {
	s.attached = append(s.attached, positions)
	for range positions {
		ac.Target.AddBlock(&area.Block{Kind: "stub", Height: 1})
	}
	return nil
}

func (s *stubDelegate) ResetBreakState() { s.resets++ }
func (s *stubDelegate) KeepWithNext() bool     { return s.keepNext }
func (s *stubDelegate) KeepWithPrevious() bool { return s.keepPrev }

var (
	_ Delegate = (*stubDelegate)(nil)
	_ Keeper   = (*stubDelegate)(nil)
)

// words 构造 n 个宽度为 w 的 box，中间以可断开的 glue 分隔。
func words(n, w int, glue Spacing) []Element {
	var out []Element
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, Glue(glue, true, NoPosition))
		}
		out = append(out, Box(w, NoPosition))
	}
	return out
}

func kinds(elems []Element) []Kind {
	out := make([]Kind, len(elems))
	for i, e := range elems {
		out[i] = e.Kind()
	}
	return out
}
