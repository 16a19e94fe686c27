/*
Package layout 实现 box/glue/penalty 元素流上的断开算法与布局委托。

同一套元素模型既用于段落断行，也用于 body 流分页：
BreakBestFit 在固定可用空间下求全局最优断点，
PageBreaker 则逐 part 确定断点，可用空间在上一个 part 提交之后才查询。

委托（Delegate）按需产生元素，Stack 在累积内容超过可用空间后停止拉取，
因此页面尺寸相关的内容按页生成。宽度变化时，实现了 Resumer 的委托
可以从第一个未输出的位置重新生成元素。

# Tracing

断点选择、欠满与溢出的回退都输出到 tracer 'quire.layout'。
*/
package layout

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to 'quire.layout'.
func tracer() tracing.Trace {
	return tracing.Select("quire.layout")
}
