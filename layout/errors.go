package layout

import "fmt"

// OverflowError 表示内容超出区域且该区域的溢出策略为 error。
type OverflowError struct {
	Sequence  string
	Region    string
	PageIndex int
	Excess    int // millipoint
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("序列 %q 第 %d 页区域 %s 溢出 %dmpt", e.Sequence, e.PageIndex, e.Region, e.Excess)
}
