package renderer

import "github.com/ByLCY/quire/area"

// Renderer 将区域树输出为最终文件，例如 PDF。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(tree *area.Tree) ([]byte, error)
}
