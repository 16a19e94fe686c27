package layout

// Position 是 PositionArena 中节点的句柄。0 表示没有位置信息。
type Position int32

// NoPosition is the zero handle.
const NoPosition Position = 0

type positionNode struct {
	owner Delegate
	inner Position
	index int
}

// PositionArena 保存一次排版尝试中所有的位置节点。
// 每层内容委托把子节点的位置包一层（Wrap），形成只追加、不共享可变状态的链。
type PositionArena struct {
	nodes []positionNode
}

// NewPositionArena creates an arena; slot 0 is reserved for NoPosition.
func NewPositionArena() *PositionArena {
	return &PositionArena{nodes: make([]positionNode, 1, 256)}
}

// Leaf 记录由 owner 直接产生的元素，index 由 owner 自行解释。
func (a *PositionArena) Leaf(owner Delegate, index int) Position {
	a.nodes = append(a.nodes, positionNode{owner: owner, index: index})
	return Position(len(a.nodes) - 1)
}

// Wrap records that inner came from a child of owner.
func (a *PositionArena) Wrap(owner Delegate, inner Position) Position {
	a.nodes = append(a.nodes, positionNode{owner: owner, inner: inner, index: -1})
	return Position(len(a.nodes) - 1)
}

func (a *PositionArena) valid(p Position) bool {
	return p > 0 && int(p) < len(a.nodes)
}

// Owner returns the delegate that created p.
func (a *PositionArena) Owner(p Position) Delegate {
	if !a.valid(p) {
		return nil
	}
	return a.nodes[p].owner
}

// Unwrap returns the child position wrapped by p, or NoPosition for leaves.
func (a *PositionArena) Unwrap(p Position) Position {
	if !a.valid(p) {
		return NoPosition
	}
	return a.nodes[p].inner
}

// Index returns the leaf index stored in p (-1 for wrapping nodes).
func (a *PositionArena) Index(p Position) int {
	if !a.valid(p) {
		return -1
	}
	return a.nodes[p].index
}

// IsLeaf reports whether p was created with Leaf.
func (a *PositionArena) IsLeaf(p Position) bool {
	return a.valid(p) && a.nodes[p].inner == NoPosition && a.nodes[p].index >= 0
}

// Chain 返回从 p 开始逐层展开的 owner 链，便于调试。
func (a *PositionArena) Chain(p Position) []Delegate {
	var out []Delegate
	for a.valid(p) {
		out = append(out, a.nodes[p].owner)
		p = a.nodes[p].inner
	}
	return out
}

// Len returns the number of allocated nodes.
func (a *PositionArena) Len() int { return len(a.nodes) - 1 }
