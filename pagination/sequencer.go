package pagination

import "github.com/ByLCY/quire/diag"

// Sequencer 是一个页面序列的模板选择状态机：
// 在有序的子序列列表上移动游标，为每一页给出模板。
type Sequencer struct {
	sequence string
	master   string
	specs    []Specifier
	index    int
	current  Specifier

	// canRecover 在第一次耗尽后变为 false，第二次耗尽即为致命错误。
	canRecover bool

	table *Table
	sink  diag.Sink
}

// NewSequencer builds a sequencer with fresh specifiers from decl.
func NewSequencer(sequence string, decl *MasterDecl, table *Table, sink diag.Sink) *Sequencer {
	if sink == nil {
		sink = diag.Discard
	}
	s := &Sequencer{sequence: sequence, master: decl.Name, table: table, sink: sink}
	for _, d := range decl.Subsequences {
		s.specs = append(s.specs, d.Build())
	}
	s.Reset()
	return s
}

// ForMaster 为序列引用的 master 名称创建 sequencer。
// 名称可以是 sequence-master，也可以直接是页面模板（等价于无限重复该模板）。
func ForMaster(sequence, name string, table *Table, sink diag.Sink) (*Sequencer, error) {
	if sink == nil {
		sink = diag.Discard
	}
	if decl, ok := table.Master(name); ok {
		return NewSequencer(sequence, decl, table, sink), nil
	}
	if _, ok := table.Resolve(name); ok {
		decl := &MasterDecl{Name: name, Subsequences: []SubsequenceDecl{{Kind: SubRepeat, Master: name, MaxRepeats: Unbounded}}}
		return NewSequencer(sequence, decl, table, sink), nil
	}
	sink.Report(diag.Event{Kind: diag.NoMatchingTemplate, Sequence: sequence, Template: name})
	return nil, &UnresolvedTemplateError{Sequence: sequence, Template: name}
}

// Sequence returns the page-sequence name.
func (s *Sequencer) Sequence() string { return s.sequence }

func (s *Sequencer) advance() Specifier {
	if s.index+1 < len(s.specs) {
		s.index++
		return s.specs[s.index]
	}
	return nil
}

// Next 返回当前页应使用的模板。
func (s *Sequencer) Next(f Flags) (*Template, error) {
	if s.current == nil {
		s.current = s.advance()
		if s.current == nil {
			s.sink.Report(diag.Event{Kind: diag.MissingSubsequences, Sequence: s.sequence, Master: s.master})
			return nil, &ConfigurationError{Sequence: s.sequence, Master: s.master, Reason: "没有任何子序列"}
		}
	}
	name := s.current.NextMaster(f)
	for name == "" {
		next := s.advance()
		if next != nil {
			tracer().Debugf("pagination: 序列 %s 进入第 %d 个子序列", s.sequence, s.index)
			s.current = next
		} else {
			s.sink.Report(diag.Event{
				Kind:        diag.SequenceExhausted,
				Sequence:    s.sequence,
				Master:      s.master,
				Recoverable: s.canRecover,
			})
			if !s.canRecover {
				return nil, &SequenceExhaustedError{Sequence: s.sequence, Master: s.master}
			}
			tracer().Infof("pagination: 序列 %s 的 master %s 已耗尽，重置最后一个子序列", s.sequence, s.master)
			s.canRecover = false
			s.current.Reset()
		}
		name = s.current.NextMaster(f)
	}
	t, ok := s.table.Resolve(name)
	if !ok {
		s.sink.Report(diag.Event{Kind: diag.NoMatchingTemplate, Sequence: s.sequence, Master: s.master, Template: name})
		return nil, &UnresolvedTemplateError{Sequence: s.sequence, Template: name}
	}
	tracer().Debugf("pagination: 序列 %s 选择模板 %s %+v", s.sequence, name, f)
	return t, nil
}

// Previous 把游标退回一页：先让当前子序列内部后退，不行再退到前一个子序列。
// 返回 false 表示已经回到起点。
func (s *Sequencer) Previous() bool {
	if s.current == nil {
		return false
	}
	if !s.current.GoToPrevious() {
		if s.index > 0 {
			s.index--
			s.current = s.specs[s.index]
		} else {
			s.index = -1
			s.current = nil
		}
	}
	return s.current != nil
}

// Reset 恢复初始游标与 canRecover，并重置所有子序列。
func (s *Sequencer) Reset() {
	s.index = -1
	s.current = nil
	s.canRecover = true
	for _, sp := range s.specs {
		sp.Reset()
	}
}

// HasPagePositionLast 报告当前子序列是否区分最后一页。
func (s *Sequencer) HasPagePositionLast() bool {
	return s.current != nil && s.current.HasPagePositionLast()
}

// HasPagePositionOnly 报告当前子序列是否区分唯一一页。
func (s *Sequencer) HasPagePositionOnly() bool {
	return s.current != nil && s.current.HasPagePositionOnly()
}
