package pagination

import "fmt"

// ConfigurationError 表示 sequence-master 声明本身有问题（例如没有任何子序列）。
type ConfigurationError struct {
	Sequence string
	Master   string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("序列 %q: sequence-master %q 配置错误: %s", e.Sequence, e.Master, e.Reason)
}

// SequenceExhaustedError 表示子序列第二次耗尽，无法继续恢复。
type SequenceExhaustedError struct {
	Sequence string
	Master   string
}

func (e *SequenceExhaustedError) Error() string {
	return fmt.Sprintf("序列 %q: sequence-master %q 的子序列已耗尽", e.Sequence, e.Master)
}

// UnresolvedTemplateError 表示子序列给出的模板名在模板表中不存在。
type UnresolvedTemplateError struct {
	Sequence string
	Template string
}

func (e *UnresolvedTemplateError) Error() string {
	return fmt.Sprintf("序列 %q: 找不到页面模板 %q", e.Sequence, e.Template)
}
