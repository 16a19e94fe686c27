package area

// 该文件定义排版结果（区域树），供装配器写入、渲染器与调试 JSON 读取。
// 所有坐标与尺寸均为 millipoint，相对于父容器左上角。

// Tree 保存排版后的全部页面与资源信息。
type Tree struct {
	Pages     []*Page      `json:"pages"`
	Resources ResourceSet  `json:"resources"`
	Meta      DocumentMeta `json:"meta"`
}

// ResourceSet 记录渲染阶段需要的字体定义。
type ResourceSet struct {
	Fonts map[string]FontResource `json:"fonts"`
}

// FontResource 描述字体资源，src 可以是文件路径或 builtin:* 形式。
type FontResource struct {
	Name  string `json:"name"`
	Src   string `json:"src"`
	Style string `json:"style,omitempty"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Page 是一页物理页面：使用的模板、页码与若干区域。
type Page struct {
	Sequence string    `json:"sequence"`
	Index    int       `json:"index"`  // 在所属 page-sequence 内的序号（从 0 开始）
	Number   int       `json:"number"` // 页码
	Template string    `json:"template"`
	Blank    bool      `json:"blank,omitempty"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Regions  []*Region `json:"regions"`
}

// Region returns the region with the given name, or nil.
func (p *Page) Region(name string) *Region {
	for _, r := range p.Regions {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Container 是可以纵向堆叠子块的区域或块。
type Container interface {
	AddBlock(b *Block)
	AddSpace(h int)
	ContentWidth() int
}

// Region 是页面上的一个区域（body/before/after/start/end）。
type Region struct {
	Name     string   `json:"name"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Blocks   []*Block `json:"blocks"`
	Overflow bool     `json:"overflow,omitempty"`
	Clip     bool     `json:"clip,omitempty"`
	cursor   int
}

var (
	_ Container = (*Region)(nil)
	_ Container = (*Block)(nil)
)

// AddBlock stacks b below the previous content.
func (r *Region) AddBlock(b *Block) {
	b.Y = r.cursor
	r.cursor += b.Height
	r.Blocks = append(r.Blocks, b)
	if r.cursor > r.Height {
		r.Overflow = true
	}
}

// AddSpace advances the stacking cursor.
func (r *Region) AddSpace(h int) {
	r.cursor += h
}

// ContentWidth returns the inline size available to children.
func (r *Region) ContentWidth() int { return r.Width }

// Used returns the block-progression extent consumed so far.
func (r *Region) Used() int { return r.cursor }

// Block 是块级区域；段落的行、表格行的单元格与嵌套块都挂在这里。
type Block struct {
	Kind     string   `json:"kind"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Label    string   `json:"label,omitempty"`
	Lines    []*Line  `json:"lines,omitempty"`
	Children []*Block `json:"children,omitempty"`
	Image    *Image   `json:"image,omitempty"`
	Fill     *Color   `json:"fill,omitempty"`
	Border   *Color   `json:"border,omitempty"`
	cursor   int
}

// AddBlock stacks a child block and grows the parent.
func (b *Block) AddBlock(c *Block) {
	c.Y = b.cursor
	b.cursor += c.Height
	b.Children = append(b.Children, c)
	if b.cursor > b.Height {
		b.Height = b.cursor
	}
}

// AddSpace advances the stacking cursor and grows the block.
func (b *Block) AddSpace(h int) {
	b.cursor += h
	if b.cursor > b.Height {
		b.Height = b.cursor
	}
}

// ContentWidth returns the inline size available to children.
func (b *Block) ContentWidth() int { return b.Width }

// AddLine appends a line area below the previous one.
func (b *Block) AddLine(l *Line) {
	l.Y = b.cursor
	b.cursor += l.Height
	b.Lines = append(b.Lines, l)
	if b.cursor > b.Height {
		b.Height = b.cursor
	}
}

// Line 表示排版后的一行，Words 的 X 相对行首。
type Line struct {
	Y        int    `json:"y"`
	Height   int    `json:"height"`
	Baseline int    `json:"baseline"`
	Width    int    `json:"width"`
	Words    []Word `json:"words"`
}

// Word 是一段使用同一字体的文本。
type Word struct {
	Text  string `json:"text"`
	X     int    `json:"x"`
	Width int    `json:"width"`
	Font  string `json:"font"`
	Size  int    `json:"size"`
	Color Color  `json:"color"`
	Link  string `json:"link,omitempty"`
}

// Image 记录图片来源与适配方式。
type Image struct {
	Src     string  `json:"src"`
	Fit     string  `json:"fit,omitempty"`
	Opacity float64 `json:"opacity"`
}
