package fonts

import "testing"

func TestLoadBuiltin(t *testing.T) {
	for _, src := range []string{"builtin:go-regular", "built-in:go-bold", "go-mono"} {
		data, err := Load(src)
		if err != nil {
			t.Fatalf("加载 %s 失败: %v", src, err)
		}
		if len(data) == 0 {
			t.Fatalf("%s 数据为空", src)
		}
	}
	if _, err := Load("builtin:comic"); err == nil {
		t.Fatalf("未知字体应返回错误")
	}
	if !IsBuiltin("builtin:go-regular") || IsBuiltin("fonts/a.ttf") {
		t.Fatalf("IsBuiltin 判断错误")
	}
}
