package content

import (
	"fmt"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/layout"
)

// cellPadding 单元格四周的内边距（millipoint）。
const cellPadding = 2000

// Cell 是表格单元格，内容是任意块级委托。
type Cell struct {
	Content []layout.Delegate
	Fill    *area.Color
}

// Row 是表格的一行。
type Row struct {
	Cells []*Cell
}

type cellLayout struct {
	positions []layout.Position
}

type rowLayout struct {
	height int
	cells  []cellLayout
}

// Table 按行参与分页：每一行不可分割，表头与第一行保持在一起。
type Table struct {
	Columns int
	Header  []*Row
	Rows    []*Row
	Border  *area.Color

	colWidth int
	rows     []rowLayout
	start    int // 恢复时从这一行开始重新排版
	done     bool
}

func (t *Table) allRows() []*Row {
	return append(append([]*Row(nil), t.Header...), t.Rows...)
}

func (t *Table) PullElements(ctx *layout.Context) ([]layout.Element, bool, error) {
	if t.done {
		return nil, true, nil
	}
	t.done = true
	if t.Columns <= 0 {
		return nil, false, fmt.Errorf("表格列数必须大于 0")
	}
	t.colWidth = ctx.RefIPD / t.Columns
	cellCtx := ctx.WithRefIPD(t.colWidth - 2*cellPadding)
	rows := t.allRows()
	if len(t.rows) != len(rows) {
		t.rows = make([]rowLayout, len(rows))
	}
	var out []layout.Element
	for i := t.start; i < len(rows); i++ {
		row := rows[i]
		if len(row.Cells) > t.Columns {
			return nil, false, fmt.Errorf("表格第 %d 行有 %d 个单元格，超过列数 %d", i+1, len(row.Cells), t.Columns)
		}
		rl := rowLayout{}
		for _, cell := range row.Cells {
			cl, h, err := t.layoutCell(cell, cellCtx)
			if err != nil {
				return nil, false, fmt.Errorf("表格第 %d 行: %w", i+1, err)
			}
			rl.cells = append(rl.cells, cl)
			rl.height = max(rl.height, h)
		}
		rl.height += 2 * cellPadding
		if i > t.start {
			cost := 0
			if i <= len(t.Header) {
				cost = layout.Infinite
			}
			out = append(out, layout.Penalty(0, cost, false, ctx.Positions.Leaf(t, layout.JoinIndex)))
		}
		t.rows[i] = rl
		out = append(out, layout.Box(rl.height, ctx.Positions.Leaf(t, i)))
	}
	return out, true, nil
}

// layoutCell 拉取单元格的全部内容并计算自然高度，单元格内部不分页。
func (t *Table) layoutCell(cell *Cell, ctx *layout.Context) (cellLayout, int, error) {
	stack := &layout.Stack{Owner: t, Children: cell.Content}
	var cl cellLayout
	height := 0
	for !stack.Finished() {
		elems, _, err := stack.Pull(ctx)
		if err != nil {
			return cl, 0, err
		}
		for _, e := range elems {
			if e.IsPenalty() {
				continue
			}
			height += e.Size().Opt
			cl.positions = append(cl.positions, e.Position())
		}
	}
	return cl, height, nil
}

// AttachAreas 生成表格区域，本页包含的每一行对应一个 row 块。
func (t *Table) AttachAreas(positions []layout.Position, ac *layout.AreaContext) error {
	tbl := &area.Block{Kind: "table", Width: t.colWidth * t.Columns, Border: t.Border}
	rows := t.allRows()
	err := layout.DescendAreas(positions, ac, func(index int) error {
		if index < 0 || index >= len(t.rows) {
			return nil
		}
		rl := t.rows[index]
		rowBlk := &area.Block{Kind: "row", Width: tbl.Width, Height: rl.height}
		if index < len(t.Header) {
			rowBlk.Kind = "header"
		}
		for j, cl := range rl.cells {
			cellBlk := &area.Block{
				Kind:   "cell",
				X:      j * t.colWidth,
				Width:  t.colWidth,
				Height: rl.height,
				Fill:   rows[index].Cells[j].Fill,
				Border: t.Border,
			}
			inner := &area.Block{Kind: "cell-content", X: cellPadding, Y: cellPadding, Width: t.colWidth - 2*cellPadding}
			cellAC := ac.WithTarget(inner)
			cellAC.Ratio = 0
			if err := layout.DescendAreas(cl.positions, cellAC, nil); err != nil {
				return err
			}
			cellBlk.Children = append(cellBlk.Children, inner)
			rowBlk.Children = append(rowBlk.Children, cellBlk)
		}
		tbl.AddBlock(rowBlk)
		return nil
	})
	if err != nil {
		return err
	}
	if len(tbl.Children) > 0 {
		ac.Target.AddBlock(tbl)
	}
	return nil
}

// ResumeAt 从 pos 对应的行开始重新排版，之前的行已经输出。
func (t *Table) ResumeAt(pos layout.Position, positions *layout.PositionArena) bool {
	i := positions.Index(pos)
	if positions.Owner(pos) != layout.Delegate(t) || i < 0 || i >= len(t.rows) {
		return false
	}
	for _, row := range t.allRows()[i:] {
		for _, cell := range row.Cells {
			for _, c := range cell.Content {
				c.ResetBreakState()
			}
		}
	}
	t.start = i
	t.done = false
	return true
}

func (t *Table) ResetBreakState() {
	t.done = false
	t.start = 0
	t.rows = nil
	for _, row := range t.allRows() {
		for _, cell := range row.Cells {
			for _, c := range cell.Content {
				c.ResetBreakState()
			}
		}
	}
}
