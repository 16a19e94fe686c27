package canvasrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/canvas"
	xdraw "golang.org/x/image/draw"

	"github.com/ByLCY/quire/area"
)

// 未指定 fit 时按 contain 处理。
const (
	fitContain = "contain"
	fitFill    = "fill"
	fitNone    = "none"

	naturalDPMM = 96 / 25.4
)

func (r *Renderer) loadImage(src string) (image.Image, error) {
	var data []byte
	switch {
	case strings.HasPrefix(src, "builtin:") || strings.HasPrefix(src, "built-in:"):
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		blob, ok := r.imageBlobs[name]
		if !ok {
			return nil, fmt.Errorf("找不到内置图片资源 builtin:%s", name)
		}
		data = blob
	default:
		if r.baseDir == "" && !filepath.IsAbs(src) {
			return nil, fmt.Errorf("未指定资源目录时不允许直接使用路径：%s（请改用 builtin:）", src)
		}
		path := src
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.baseDir, path)
		}
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("读取图片 %s 失败: %w", src, err)
		}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s 失败: %w", src, err)
	}
	return img, nil
}

// drawImage 按 fit 把图片放进块的矩形内；x/y 为块的绝对位置（mpt）。
func (r *Renderer) drawImage(ctx *canvas.Context, b *area.Block, x, y int) error {
	img, err := r.loadImage(b.Image.Src)
	if err != nil {
		return err
	}
	px, py := img.Bounds().Dx(), img.Bounds().Dy()
	if px == 0 || py == 0 {
		return nil
	}
	boxW, boxH := mm(b.Width), mm(b.Height)

	var dpmm, dx, dy float64
	switch b.Image.Fit {
	case fitNone:
		dpmm = naturalDPMM
	case fitFill:
		// 按块的宽高比重采样，使其以统一分辨率铺满整个块
		h := int(float64(px) * boxH / boxW)
		if h > 0 && h != py {
			img = resample(img, px, h)
			py = h
		}
		dpmm = float64(px) / boxW
	default:
		dpmm = max(float64(px)/boxW, float64(py)/boxH)
		dx = (boxW - float64(px)/dpmm) / 2
		dy = (boxH - float64(py)/dpmm) / 2
	}
	if op := b.Image.Opacity; op > 0 && op < 1 {
		img = fade(img, op)
	}
	ctx.DrawImage(mm(x)+dx, mm(y)+dy, img, canvas.DPMM(dpmm))
	return nil
}

func resample(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func fade(src image.Image, opacity float64) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	mask := image.NewUniform(color.Alpha{A: uint8(opacity * 255)})
	xdraw.DrawMask(dst, dst.Bounds(), src, b.Min, mask, image.Point{}, xdraw.Over)
	return dst
}
