package canvasrenderer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

type faceKey struct {
	font string
	size int
}

// TextWidth 实现 layout.Measurer，返回 millipoint 宽度。
// 并行排版的多个序列共用同一个字体面，测量串行进行。
func (r *Renderer) TextWidth(text string, font layout.FontSpec) (int, error) {
	face, err := r.measureFace(font)
	if err != nil {
		return 0, err
	}
	r.measureMu.Lock()
	defer r.measureMu.Unlock()
	return layout.MMToMpt(face.TextWidth(text)), nil
}

// Metrics 实现 layout.Measurer。
func (r *Renderer) Metrics(font layout.FontSpec) (layout.FontMetrics, error) {
	face, err := r.measureFace(font)
	if err != nil {
		return layout.FontMetrics{}, err
	}
	r.measureMu.Lock()
	m := face.Metrics()
	r.measureMu.Unlock()
	return layout.FontMetrics{
		Ascent:     layout.MMToMpt(m.Ascent),
		Descent:    layout.MMToMpt(math.Abs(m.Descent)),
		LineHeight: layout.MMToMpt(m.LineHeight),
	}, nil
}

// measureFace 缓存按字体与字号创建的字体面；测量只关心度量，颜色固定为黑色。
func (r *Renderer) measureFace(font layout.FontSpec) (*canvas.FontFace, error) {
	res := area.FontResource{Name: font.Name, Src: font.Src, Style: font.Style}
	key := faceKey{font: fontCacheKey(res), size: font.Size}

	r.fontMu.Lock()
	face, ok := r.faces[key]
	r.fontMu.Unlock()
	if ok {
		return face, nil
	}
	face, err := r.fontFace(res, float64(font.Size)/layout.MptPerPt, area.Color{})
	if err != nil {
		return nil, err
	}
	r.fontMu.Lock()
	r.faces[key] = face
	r.fontMu.Unlock()
	return face, nil
}

func (r *Renderer) fontFace(font area.FontResource, sizePt float64, col area.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(font)
	if err != nil {
		return nil, err
	}
	return family.Face(sizePt, colorFromArea(col), style, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(font area.FontResource) (*canvas.FontFamily, canvas.FontStyle, error) {
	key := fontCacheKey(font)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[key]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(font.Style)
	name := font.Name
	if name == "" {
		name = "Body"
	}
	family := canvas.NewFontFamily(name)
	if err := r.loadFontIntoFamily(family, font, style); err != nil {
		fallback, fbErr := r.fallback()
		if fbErr != nil {
			return nil, canvas.FontRegular, err
		}
		r.fontFamilies[key] = &fontFamilyEntry{family: fallback, style: canvas.FontRegular}
		return fallback, canvas.FontRegular, nil
	}
	r.fontFamilies[key] = &fontFamilyEntry{family: family, style: style}
	return family, style, nil
}

func (r *Renderer) loadFontIntoFamily(family *canvas.FontFamily, font area.FontResource, style canvas.FontStyle) error {
	data, err := r.loadFontBytes(font)
	if err != nil {
		return err
	}
	if err := family.LoadFont(data, 0, style); err != nil {
		return fmt.Errorf("加载字体 %s 失败: %w", font.Name, err)
	}
	return nil
}

func (r *Renderer) loadFontBytes(font area.FontResource) ([]byte, error) {
	src := font.Src
	if src == "" {
		return nil, fmt.Errorf("字体 %s 缺少 src", font.Name)
	}
	if fonts.IsBuiltin(src) {
		name := strings.TrimPrefix(strings.TrimPrefix(src, "built-in:"), "builtin:")
		if blob, ok := r.fontBlobs[name]; ok {
			return blob, nil
		}
		return fonts.Load(name)
	}
	if r.baseDir == "" && !filepath.IsAbs(src) {
		return nil, fmt.Errorf("未指定资源目录时不允许直接使用字体路径：%s（请改用 builtin:）", src)
	}
	path := src
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体 %s 失败: %w", src, err)
	}
	return data, nil
}

// fallback 在调用方已持有 fontMu 时使用。
func (r *Renderer) fallback() (*canvas.FontFamily, error) {
	if r.fallbackFamily != nil {
		return r.fallbackFamily, nil
	}
	data, err := fonts.Load(fonts.Fallback)
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("quire-fallback")
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, err
	}
	r.fallbackFamily = family
	return family, nil
}

func resolveFontResource(name string, fonts map[string]area.FontResource) area.FontResource {
	if font, ok := fonts[name]; ok {
		return font
	}
	if font, ok := fonts["Body"]; ok {
		return font
	}
	return area.FontResource{Name: name}
}

func parseFontStyle(style string) canvas.FontStyle {
	s := strings.ToLower(style)
	result := canvas.FontRegular
	switch {
	case s == "":
		return canvas.FontRegular
	case strings.Contains(s, "black"):
		result = canvas.FontBlack
	case strings.Contains(s, "extrabold"):
		result = canvas.FontExtraBold
	case strings.Contains(s, "semibold"), strings.Contains(s, "demibold"):
		result = canvas.FontSemiBold
	case strings.Contains(s, "bold"):
		result = canvas.FontBold
	case strings.Contains(s, "medium"):
		result = canvas.FontMedium
	case strings.Contains(s, "light"):
		result = canvas.FontLight
	}
	if strings.Contains(s, "italic") || strings.Contains(s, "oblique") {
		result |= canvas.FontItalic
	}
	return result
}

func fontCacheKey(font area.FontResource) string {
	return fmt.Sprintf("%s|%s|%s", font.Name, font.Src, font.Style)
}
