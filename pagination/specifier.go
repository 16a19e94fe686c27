package pagination

import (
	"fmt"
	"strings"
)

// Flags 描述当前页在序列中的位置。
type Flags struct {
	Odd   bool
	First bool
	Last  bool
	Only  bool
	Blank bool
}

// Specifier 是子序列说明：根据页面位置给出下一个模板名，空字符串表示已耗尽。
type Specifier interface {
	NextMaster(f Flags) string
	GoToPrevious() bool
	Reset()
	HasPagePositionLast() bool
	HasPagePositionOnly() bool
}

var (
	_ Specifier = (*SingleRef)(nil)
	_ Specifier = (*RepeatableRef)(nil)
	_ Specifier = (*RepeatableAlternatives)(nil)
)

// Unbounded 表示可以无限重复。
const Unbounded = -1

// SingleRef 只产生一次模板名。
type SingleRef struct {
	Master string
	used   bool
}

func (s *SingleRef) NextMaster(Flags) string {
	if s.used {
		return ""
	}
	s.used = true
	return s.Master
}

func (s *SingleRef) GoToPrevious() bool {
	if !s.used {
		return false
	}
	s.used = false
	return true
}

func (s *SingleRef) Reset()                    { s.used = false }
func (s *SingleRef) HasPagePositionLast() bool { return false }
func (s *SingleRef) HasPagePositionOnly() bool { return false }

// RepeatableRef 重复同一个模板，最多 MaxRepeats 次（Unbounded 表示不限）。
type RepeatableRef struct {
	Master     string
	MaxRepeats int
	consumed   int
}

func (r *RepeatableRef) NextMaster(Flags) string {
	if r.MaxRepeats != Unbounded && r.consumed >= r.MaxRepeats {
		return ""
	}
	r.consumed++
	return r.Master
}

func (r *RepeatableRef) GoToPrevious() bool {
	if r.consumed == 0 {
		return false
	}
	r.consumed--
	return true
}

func (r *RepeatableRef) Reset()                    { r.consumed = 0 }
func (r *RepeatableRef) HasPagePositionLast() bool { return false }
func (r *RepeatableRef) HasPagePositionOnly() bool { return false }

// OddOrEven 条件。
type OddOrEven int

const (
	AnyParity OddOrEven = iota
	OddPage
	EvenPage
)

// PagePosition 条件。
type PagePosition int

const (
	AnyPosition PagePosition = iota
	FirstPage
	LastPage
	RestPage
	OnlyPage
)

// BlankOrNot 条件。
type BlankOrNot int

const (
	AnyBlank BlankOrNot = iota
	BlankPage
	NotBlankPage
)

// Condition 是 alternatives 中的一条带条件的模板引用。
type Condition struct {
	Parity   OddOrEven
	Position PagePosition
	Blank    BlankOrNot
	Master   string
}

// Matches 判断条件是否适用于 f。
func (c Condition) Matches(f Flags) bool {
	switch c.Position {
	case FirstPage:
		if !f.First {
			return false
		}
	case LastPage:
		if !f.Last {
			return false
		}
	case RestPage:
		if f.First || f.Last {
			return false
		}
	case OnlyPage:
		if !f.Only {
			return false
		}
	}
	switch c.Parity {
	case OddPage:
		if !f.Odd {
			return false
		}
	case EvenPage:
		if f.Odd {
			return false
		}
	}
	switch c.Blank {
	case BlankPage:
		return f.Blank
	case NotBlankPage:
		return !f.Blank
	}
	return true
}

// ParseCondition 解析 DSL 中 when 之后的关键字，例如 "odd first not-blank"。
func ParseCondition(words []string, master string) (Condition, error) {
	c := Condition{Master: master}
	for _, w := range words {
		switch strings.ToLower(w) {
		case "odd":
			c.Parity = OddPage
		case "even":
			c.Parity = EvenPage
		case "first":
			c.Position = FirstPage
		case "last":
			c.Position = LastPage
		case "rest":
			c.Position = RestPage
		case "only":
			c.Position = OnlyPage
		case "blank":
			c.Blank = BlankPage
		case "not-blank":
			c.Blank = NotBlankPage
		case "any":
		default:
			return Condition{}, fmt.Errorf("未知的页面条件: %s", w)
		}
	}
	return c, nil
}

// RepeatableAlternatives 每页选择第一条匹配的条件。
type RepeatableAlternatives struct {
	MaxRepeats int
	Conditions []Condition
	consumed   int
}

func (r *RepeatableAlternatives) NextMaster(f Flags) string {
	if r.MaxRepeats != Unbounded && r.consumed >= r.MaxRepeats {
		return ""
	}
	r.consumed++
	for _, c := range r.Conditions {
		if c.Matches(f) {
			return c.Master
		}
	}
	return ""
}

func (r *RepeatableAlternatives) GoToPrevious() bool {
	if r.consumed == 0 {
		return false
	}
	r.consumed--
	return true
}

func (r *RepeatableAlternatives) Reset() { r.consumed = 0 }

func (r *RepeatableAlternatives) HasPagePositionLast() bool {
	for _, c := range r.Conditions {
		if c.Position == LastPage {
			return true
		}
	}
	return false
}

func (r *RepeatableAlternatives) HasPagePositionOnly() bool {
	for _, c := range r.Conditions {
		if c.Position == OnlyPage {
			return true
		}
	}
	return false
}

// SubsequenceKind 区分子序列声明的种类。
type SubsequenceKind int

const (
	SubSingle SubsequenceKind = iota
	SubRepeat
	SubAlternatives
)

// SubsequenceDecl 是子序列的声明，每个序列开始时由它构建新的 Specifier。
type SubsequenceDecl struct {
	Kind       SubsequenceKind
	Master     string
	MaxRepeats int
	Conditions []Condition
}

// Build returns a fresh specifier in its initial state.
func (d SubsequenceDecl) Build() Specifier {
	switch d.Kind {
	case SubRepeat:
		return &RepeatableRef{Master: d.Master, MaxRepeats: d.MaxRepeats}
	case SubAlternatives:
		return &RepeatableAlternatives{MaxRepeats: d.MaxRepeats, Conditions: append([]Condition(nil), d.Conditions...)}
	default:
		return &SingleRef{Master: d.Master}
	}
}

// MasterDecl 是 sequence-master 的声明。
type MasterDecl struct {
	Name         string
	Subsequences []SubsequenceDecl
}
