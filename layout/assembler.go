package layout

import (
	"fmt"

	"github.com/ByLCY/quire/area"
)

// Assembler 把断开得到的 part 交还给内容委托生成区域。
// 这是唯一向页面区域树写入几何信息的地方。
type Assembler struct {
	Top       Delegate
	Positions *PositionArena
	Breaker   *PageBreaker

	parts int
}

// NewAssembler wires an assembler to the delegate feeding br.
func NewAssembler(top Delegate, positions *PositionArena, br *PageBreaker) *Assembler {
	return &Assembler{Top: top, Positions: positions, Breaker: br}
}

// Assemble 以 part 的调整比例生成区域并放入 target。
func (a *Assembler) Assemble(part Part, target area.Container, pageNumber int) error {
	if a.Top == nil {
		return fmt.Errorf("assemble part %d: %w", a.parts, ErrFinished)
	}
	ac := &AreaContext{
		Positions:  a.Positions,
		Ratio:      part.Ratio,
		Target:     target,
		PageNumber: pageNumber,
	}
	if err := a.Top.AttachAreas(part.Positions(), ac); err != nil {
		return fmt.Errorf("assemble part %d: %w", a.parts, err)
	}
	a.parts++
	if a.Breaker != nil {
		a.Breaker.Release()
		if a.Breaker.State() == StateExhausted {
			a.Top = nil
		}
	}
	return nil
}

// Assembled returns how many parts have been attached.
func (a *Assembler) Assembled() int { return a.parts }

// Done reports whether the producer has been released.
func (a *Assembler) Done() bool { return a.Top == nil }
