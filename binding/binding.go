// Package binding 把 JSON 数据绑定到文档文本中的 ${path} 占位符。
package binding

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ErrInvalidJSON 表示绑定数据不是合法的 JSON。
var ErrInvalidJSON = errors.New("binding: invalid JSON data")

// Data 是绑定到文档的只读 JSON 数据。
type Data struct {
	raw []byte
}

// Parse validates raw and wraps it for lookups.
func Parse(raw []byte) (*Data, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	return &Data{raw: raw}, nil
}

// Lookup 返回 path 对应的值；path 支持 a.b[0].c 形式。
func (d *Data) Lookup(path string) (gjson.Result, bool) {
	if d == nil {
		return gjson.Result{}, false
	}
	res := gjson.GetBytes(d.raw, normalizePath(path))
	return res, res.Exists()
}

// Each 遍历 path 处数组的元素，供表格等重复内容使用。
func (d *Data) Each(path string, fn func(i int, item *Data) bool) {
	res, ok := d.Lookup(path)
	if !ok || !res.IsArray() {
		return
	}
	i := 0
	res.ForEach(func(_, v gjson.Result) bool {
		cont := fn(i, &Data{raw: []byte(v.Raw)})
		i++
		return cont
	})
}

// Interpolate 将文本中的 ${path.to.value} 替换为 data 中的值。
// 若 data 为空或路径不存在，则返回原占位符。
func Interpolate(text string, data *Data) string {
	if data == nil || !strings.Contains(text, "${") {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		path := strings.TrimSpace(groups[1])
		if path == "" {
			return match
		}
		if val, ok := data.Lookup(path); ok {
			return val.String()
		}
		return match
	})
}

// normalizePath 把 items[0].name 改写为 gjson 的 items.0.name。
func normalizePath(path string) string {
	if !strings.Contains(path, "[") {
		return path
	}
	var b strings.Builder
	for _, segment := range strings.Split(path, ".") {
		name, indexes := parseSegment(segment)
		parts := indexes
		if name != "" {
			parts = append([]string{name}, indexes...)
		}
		for _, p := range parts {
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(p)
		}
	}
	return b.String()
}

func parseSegment(segment string) (string, []string) {
	name := segment
	indexes := []string{}
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 {
			if rest[0] != '[' {
				break
			}
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return name, indexes
}
