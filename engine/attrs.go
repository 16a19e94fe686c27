package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/layout"
)

// 参数的取值个数：正数为固定个数，负数为最多 -n 个长度，flagArity 为可省略取值的开关。
// 未列出的参数按 1 个取值处理；列出的参数名不会被当作样式名。
const flagArity = 0

var attrArity = map[string]int{
	"space-before":       -3,
	"space-after":        -3,
	"keep-with-next":     flagArity,
	"keep-with-previous": flagArity,
	"keep-together":      flagArity,
	"break-before":       flagArity,
	"break-after":        flagArity,

	"align":       1,
	"font":        1,
	"size":        1,
	"color":       1,
	"line-height": 1,
	"text-indent": 1,
	"indent":      1,
	"fill":        1,
	"border":      1,
	"label":       1,
	"width":       1,
	"height":      1,
	"fit":         1,
	"opacity":     1,
	"columns":     1,
}

var flagValues = map[string]bool{
	"true": true, "yes": true, "page": true, "always": true,
	"false": false, "no": false,
}

// attrs 是命令参数解析后的结果：可选的样式名以及 key value 形式的属性。
type attrs struct {
	style  string
	values map[string][]string
	pos    string
}

// parseAttrs 解析 `Style key value flag key v1 v2 ...` 形式的参数列表。
// 函数调用形式的值（例如 rgb(1, 2, 3)）被合并为一个值。
func parseAttrs(cmd *dsl.Command, allowStyle bool) attrs {
	a := attrs{values: map[string][]string{}, pos: cmd.Pos.String()}
	args := cmd.Args
	i := 0
	if allowStyle && len(args) > 0 && args[0].Type != "Number" {
		if _, known := attrArity[args[0].Value]; !known {
			a.style = args[0].Value
			i = 1
		}
	}
	for i < len(args) {
		key := args[i].Value
		i++
		arity, known := attrArity[key]
		if !known {
			arity = 1
		}
		switch {
		case arity == flagArity:
			v := "true"
			if i < len(args) {
				if b, ok := flagValues[strings.ToLower(args[i].Value)]; ok {
					v = strconv.FormatBool(b)
					i++
				}
			}
			a.values[key] = []string{v}
		case arity < 0:
			var vals []string
			for i < len(args) && len(vals) < -arity && args[i].Type == "Number" {
				vals = append(vals, args[i].Value)
				i++
			}
			a.values[key] = vals
		default:
			var val string
			val, i = takeValue(args, i)
			a.values[key] = []string{val}
		}
	}
	return a
}

// takeValue 读取一个值；后面紧跟括号时一直读到匹配的右括号。
func takeValue(args []*dsl.Lexeme, i int) (string, int) {
	if i >= len(args) {
		return "", i
	}
	if i+1 < len(args) && args[i+1].Value == "(" {
		depth := 0
		j := i + 1
		for ; j < len(args); j++ {
			if args[j].Value == "(" {
				depth++
			} else if args[j].Value == ")" {
				depth--
			}
			if depth == 0 {
				return joinRaw(args[i : j+1]), j + 1
			}
		}
		return joinRaw(args[i:]), len(args)
	}
	return args[i].Value, i + 1
}

func (a attrs) has(key string) bool {
	_, ok := a.values[key]
	return ok
}

func (a attrs) get(key string) string {
	if v := a.values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (a attrs) flag(key string) bool { return a.get(key) == "true" }

func (a attrs) length(key string) (int, error) {
	v := a.get(key)
	if v == "" {
		return 0, nil
	}
	mpt, ok := layout.ParseMpt(v)
	if !ok {
		return 0, fmt.Errorf("%s: %s 的长度无法解析: %s", a.pos, key, v)
	}
	return mpt, nil
}

func (a attrs) lengths(key string) ([]int, error) {
	vals := a.values[key]
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		mpt, ok := layout.ParseMpt(v)
		if !ok {
			return nil, fmt.Errorf("%s: %s 的长度无法解析: %s", a.pos, key, v)
		}
		out = append(out, mpt)
	}
	return out, nil
}

// spacing 解析单个长度或 min opt max 三元组。
func (a attrs) spacing(key string) (layout.Spacing, error) {
	vals, err := a.lengths(key)
	if err != nil {
		return layout.Spacing{}, err
	}
	switch len(vals) {
	case 0:
		return layout.Spacing{}, nil
	case 1:
		return layout.Fixed(vals[0]), nil
	case 3:
		s, err := layout.NewSpacing(vals[0], vals[1], vals[2])
		if err != nil {
			return layout.Spacing{}, fmt.Errorf("%s: %s: %w", a.pos, key, err)
		}
		return s, nil
	}
	return layout.Spacing{}, fmt.Errorf("%s: %s 需要一个长度或 min opt max 三个长度", a.pos, key)
}

func (a attrs) number(key string, def float64) (float64, error) {
	v := a.get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %s 不是数字: %s", a.pos, key, v)
	}
	return f, nil
}
