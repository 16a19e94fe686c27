package diag

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	sink.Report(Event{Kind: SequenceExhausted, Sequence: "main", Master: "m", Recoverable: true})
	sink.Report(Event{Kind: Overflow, Sequence: "main", Region: "body", PageIndex: 3, Excess: 1200})
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "kind=sequence-exhausted") {
		t.Fatalf("可恢复事件应为 WARN: %s", out)
	}
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "excess_mpt=1200") {
		t.Fatalf("溢出事件缺少字段: %s", out)
	}
}

func TestMultiAndRecorder(t *testing.T) {
	var a, b Recorder
	var called int
	s := Multi(&a, nil, &b, SinkFunc(func(Event) { called++ }))
	s.Report(Event{Kind: NoMatchingTemplate, Template: "x"})
	s.Report(Event{Kind: Overflow})
	if a.Count(NoMatchingTemplate) != 1 || b.Count(Overflow) != 1 || called != 2 {
		t.Fatalf("事件分发错误: a=%v b=%v called=%d", a.Events(), b.Events(), called)
	}
	if got := len(a.Events()); got != 2 {
		t.Fatalf("记录数量错误: %d", got)
	}
	Discard.Report(Event{})
}
