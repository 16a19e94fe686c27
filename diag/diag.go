// Package diag 收集排版过程中的诊断事件。
// 核心包不直接写日志，只向 Sink 报告事件，由调用方决定如何记录。
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Kind 区分诊断事件的类型。
type Kind int

const (
	MissingSubsequences Kind = iota + 1
	SequenceExhausted
	NoMatchingTemplate
	Overflow
)

func (k Kind) String() string {
	switch k {
	case MissingSubsequences:
		return "missing-subsequences"
	case SequenceExhausted:
		return "sequence-exhausted"
	case NoMatchingTemplate:
		return "no-matching-template"
	case Overflow:
		return "overflow"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event 携带足够定位问题的上下文：序列名、模板名、页序号。
type Event struct {
	Kind        Kind
	Sequence    string
	Master      string
	Template    string
	Region      string
	PageIndex   int
	Excess      int
	Recoverable bool
}

func (e Event) String() string {
	switch e.Kind {
	case MissingSubsequences:
		return fmt.Sprintf("序列 %q 的 sequence-master %q 没有任何子序列", e.Sequence, e.Master)
	case SequenceExhausted:
		return fmt.Sprintf("序列 %q 的 sequence-master %q 已耗尽 (recoverable=%v)", e.Sequence, e.Master, e.Recoverable)
	case NoMatchingTemplate:
		return fmt.Sprintf("序列 %q 找不到页面模板 %q", e.Sequence, e.Template)
	case Overflow:
		return fmt.Sprintf("序列 %q 第 %d 页 %s 溢出 %dmpt", e.Sequence, e.PageIndex, e.Region, e.Excess)
	default:
		return e.Kind.String()
	}
}

// Sink 接收诊断事件。实现必须可以被多个 goroutine 同时调用。
type Sink interface {
	Report(e Event)
}

// Discard drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Event) {}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Report(e Event) { f(e) }

// LogSink 通过 slog 输出事件：可恢复的事件为 Warn，其余为 Error。
type LogSink struct {
	Logger *slog.Logger
}

// NewLogSink returns a sink writing to l (slog.Default when nil).
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{Logger: l}
}

func (s *LogSink) Report(e Event) {
	level := slog.LevelError
	if e.Recoverable {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("kind", e.Kind.String()),
		slog.String("sequence", e.Sequence),
	}
	if e.Master != "" {
		attrs = append(attrs, slog.String("master", e.Master))
	}
	if e.Template != "" {
		attrs = append(attrs, slog.String("template", e.Template))
	}
	if e.Kind == Overflow {
		attrs = append(attrs,
			slog.String("region", e.Region),
			slog.Int("page", e.PageIndex),
			slog.Int("excess_mpt", e.Excess))
	}
	s.Logger.LogAttrs(context.Background(), level, e.String(), attrs...)
}

// Recorder 在内存中保存事件，主要用于测试。
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Multi fans events out to every sink.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Report(e Event) {
	for _, s := range m {
		s.Report(e)
	}
}
