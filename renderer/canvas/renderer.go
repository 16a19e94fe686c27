package canvasrenderer

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"os"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/renderer"
)

const (
	borderWidth    = 0.2  // mm
	underlineWidth = 0.15 // mm
)

// Renderer 通过 github.com/tdewolff/canvas 把区域树绘制为 PDF，同时为排版提供文本测量。
type Renderer struct {
	baseDir string

	fontBlobs  map[string][]byte
	imageBlobs map[string][]byte

	fontMu         sync.Mutex
	measureMu      sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	faces          map[faceKey]*canvas.FontFace
	fallbackFamily *canvas.FontFamily
}

var (
	_ renderer.Renderer = (*Renderer)(nil)
	_ layout.Measurer   = (*Renderer)(nil)
)

// Options configures the canvas renderer.
type Options struct {
	BaseDir string
	Fonts   map[string]Resource // 通过 builtin:<name> 访问，优先于内置的 Go 字体
	Images  map[string]Resource // 通过 builtin:<name> 访问
}

// Resource can be provided either by Bytes or by Path.
type Resource struct {
	Bytes []byte
	Path  string
}

// NewRenderer creates a canvas-based renderer rooted at baseDir for resolving assets.
func NewRenderer(baseDir string) *Renderer { return NewRendererWithOptions(Options{BaseDir: baseDir}) }

// NewRendererWithOptions creates a renderer with injected resources and optional baseDir.
func NewRendererWithOptions(opts Options) *Renderer {
	return &Renderer{
		baseDir:      opts.BaseDir,
		fontBlobs:    ingest(opts.Fonts),
		imageBlobs:   ingest(opts.Images),
		fontFamilies: map[string]*fontFamilyEntry{},
		faces:        map[faceKey]*canvas.FontFace{},
	}
}

func ingest(resources map[string]Resource) map[string][]byte {
	blobs := make(map[string][]byte, len(resources))
	for name, res := range resources {
		if name == "" {
			continue
		}
		if len(res.Bytes) > 0 {
			blobs[name] = res.Bytes
			continue
		}
		if res.Path != "" {
			// 读取失败时在真正使用该资源时报错
			if data, err := os.ReadFile(res.Path); err == nil && len(data) > 0 {
				blobs[name] = data
			}
		}
	}
	return blobs
}

// Render renders the tree into a PDF byte slice.
func (r *Renderer) Render(tree *area.Tree) ([]byte, error) {
	if tree == nil {
		return nil, errors.New("区域树为空")
	}
	if len(tree.Pages) == 0 {
		return nil, errors.New("缺少可渲染的页面")
	}

	var buf bytes.Buffer
	first := tree.Pages[0]
	writer := pdf.New(&buf, layout.MptToMM(first.Width), layout.MptToMM(first.Height), nil)
	applyMeta(writer, tree.Meta)
	for i, page := range tree.Pages {
		w, h := layout.MptToMM(page.Width), layout.MptToMM(page.Height)
		if i > 0 {
			writer.NewPage(w, h)
		}
		c := canvas.New(w, h)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 与区域树一致，左上角为原点

		if err := r.drawPage(ctx, page, tree.Resources); err != nil {
			return nil, fmt.Errorf("第 %d 页: %w", page.Number, err)
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func applyMeta(writer *pdf.PDF, meta area.DocumentMeta) {
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// drawPage 依次绘制各区域；区域坐标相对页面左上角。
func (r *Renderer) drawPage(ctx *canvas.Context, page *area.Page, resources area.ResourceSet) error {
	for _, region := range page.Regions {
		// clip 的区域只绘制完整落在区域内的内容
		limit := -1
		if region.Clip {
			limit = region.Y + region.Height
		}
		for _, b := range region.Blocks {
			if err := r.drawBlock(ctx, b, region.X, region.Y, limit, resources); err != nil {
				return err
			}
		}
	}
	return nil
}

// drawBlock 先画背景与边框，再画行、图片与子块。ox/oy 为父容器的绝对位置（mpt）。
func (r *Renderer) drawBlock(ctx *canvas.Context, b *area.Block, ox, oy, limit int, resources area.ResourceSet) error {
	x, y := ox+b.X, oy+b.Y
	if limit >= 0 && y >= limit {
		return nil
	}
	height := b.Height
	if limit >= 0 && y+height > limit {
		height = limit - y
	}

	if b.Fill != nil || b.Border != nil {
		fill := color.Color(color.RGBA{})
		if b.Fill != nil {
			fill = colorFromArea(*b.Fill)
		}
		stroke := color.Color(color.RGBA{})
		if b.Border != nil {
			stroke = colorFromArea(*b.Border)
		}
		ctx.SetFillColor(fill)
		ctx.SetStrokeColor(stroke)
		ctx.SetStrokeWidth(borderWidth)
		ctx.DrawPath(mm(x), mm(y), canvas.Rectangle(mm(b.Width), mm(height)))
	}

	if b.Image != nil && (limit < 0 || y+b.Height <= limit) {
		if err := r.drawImage(ctx, b, x, y); err != nil {
			return err
		}
	}

	for _, line := range b.Lines {
		top := y + line.Y
		if limit >= 0 && top+line.Height > limit {
			break
		}
		if err := r.drawLine(ctx, line, x, top, resources); err != nil {
			return err
		}
	}
	for _, child := range b.Children {
		if err := r.drawBlock(ctx, child, x, y, limit, resources); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawLine(ctx *canvas.Context, line *area.Line, x, top int, resources area.ResourceSet) error {
	baseline := mm(top + line.Baseline)
	for _, w := range line.Words {
		font := resolveFontResource(w.Font, resources.Fonts)
		face, err := r.fontFace(font, float64(w.Size)/layout.MptPerPt, w.Color)
		if err != nil {
			return err
		}
		wx := mm(x + w.X)
		ctx.DrawText(wx, baseline, canvas.NewTextLine(face, w.Text, canvas.Left))
		if w.Link != "" {
			drawUnderline(ctx, wx, baseline+face.Metrics().Descent/2, mm(w.Width), colorFromArea(w.Color))
		}
	}
	return nil
}

func drawUnderline(ctx *canvas.Context, x, y, width float64, col color.Color) {
	ctx.SetStrokeColor(col)
	ctx.SetStrokeWidth(underlineWidth)
	p := &canvas.Path{}
	p.MoveTo(0, 0)
	p.LineTo(width, 0)
	ctx.DrawPath(x, y, p)
}

func colorFromArea(c area.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}

// mm 将 millipoint 转换为 canvas 使用的毫米。
func mm(v int) float64 { return layout.MptToMM(v) }
