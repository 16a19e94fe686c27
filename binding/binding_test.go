package binding

import "testing"

const sample = `{"user":{"name":"Ada","tags":["x","y"]},"items":[{"name":"pen","qty":2},{"name":"ink","qty":5}]}`

func TestInterpolate(t *testing.T) {
	data, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("解析数据失败: %v", err)
	}
	cases := []struct {
		in, want string
	}{
		{"Hello, ${user.name}!", "Hello, Ada!"},
		{"${ items[1].name } x${items[1].qty}", "ink x5"},
		{"${user.tags[0]}${user.tags[1]}", "xy"},
		{"missing ${user.age}", "missing ${user.age}"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		if got := Interpolate(c.in, data); got != c.want {
			t.Fatalf("Interpolate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := Interpolate("${user.name}", nil); got != "${user.name}" {
		t.Fatalf("nil 数据应原样返回，实际 %q", got)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte("{")); err != ErrInvalidJSON {
		t.Fatalf("期望 ErrInvalidJSON，实际 %v", err)
	}
}

func TestEach(t *testing.T) {
	data, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	data.Each("items", func(i int, item *Data) bool {
		names = append(names, Interpolate("${name}", item))
		return true
	})
	if len(names) != 2 || names[0] != "pen" || names[1] != "ink" {
		t.Fatalf("遍历结果错误: %v", names)
	}
}
