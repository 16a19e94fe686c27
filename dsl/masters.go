package dsl

import "github.com/alecthomas/participle/v2/lexer"

// MastersSection declares page templates and sequence masters.
type MastersSection struct {
	Decls []*MasterEntry `parser:"'masters' '{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// MasterEntry is one declaration inside `masters { }`.
type MasterEntry struct {
	Page     *PageDecl           `parser:"  @@"`
	Sequence *SequenceMasterDecl `parser:"| @@"`
}

// PageDecl 声明一个页面模板：
//
//	page name A4 [landscape] [margin ...] [body-margin ...] [overflow P] { regions }
//	page name 100mm 150mm ...
type PageDecl struct {
	Pos     lexer.Position `parser:"" json:"-"`
	Name    string         `parser:"'page' @Ident"`
	Size    *PageSize      `parser:"@@"`
	Options []*PageOption  `parser:"@@*"`
	Regions *RegionBlock   `parser:"( Newline* @@ )?"`
}

// PageSize is either a named paper or an explicit width and height.
type PageSize struct {
	Width  string `parser:"  @Number"`
	Height string `parser:"  @Number"`
	Paper  string `parser:"| @Ident"`
}

// PageOption is one page-level attribute.
type PageOption struct {
	Landscape  bool     `parser:"  @'landscape'"`
	Margin     []string `parser:"| 'margin' @Number+"`
	BodyMargin []string `parser:"| 'body-margin' @Number+"`
	Overflow   string   `parser:"| 'overflow' @Ident"`
}

// RegionBlock lists the region declarations of a page template.
type RegionBlock struct {
	Regions []*RegionDecl `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// RegionDecl: `before [extent] 12mm [overflow P]`, `body margin ... [overflow P]`。
type RegionDecl struct {
	Pos     lexer.Position  `parser:"" json:"-"`
	Name    string          `parser:"@( 'body' | 'before' | 'after' | 'start' | 'end' )"`
	Extent  string          `parser:"( 'extent'? @Number )?"`
	Options []*RegionOption `parser:"@@*"`
}

// RegionOption is one region-level attribute.
type RegionOption struct {
	Margin   []string `parser:"  'margin' @Number+"`
	Overflow string   `parser:"| 'overflow' @Ident"`
}

// SequenceMasterDecl 声明 sequence-master 及其有序的子序列。
type SequenceMasterDecl struct {
	Pos          lexer.Position     `parser:"" json:"-"`
	Name         string             `parser:"'sequence-master' @Ident"`
	Subsequences []*SubsequenceDecl `parser:"Newline* '{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// SubsequenceDecl is `single m`, `repeat m [times N]` or `alternatives [times N] { ... }`.
type SubsequenceDecl struct {
	Pos          lexer.Position    `parser:"" json:"-"`
	Single       *string           `parser:"  'single' @Ident"`
	Repeat       *RepeatDecl       `parser:"| @@"`
	Alternatives *AlternativesDecl `parser:"| @@"`
}

// RepeatDecl repeats one template, Times 为 nil 表示不限次数。
type RepeatDecl struct {
	Master string `parser:"'repeat' @Ident"`
	Times  *int   `parser:"( 'times' @Number )?"`
}

// AlternativesDecl 每页选择第一条匹配的 when。
type AlternativesDecl struct {
	Times *int        `parser:"'alternatives' ( 'times' @Number )?"`
	Cases []*WhenDecl `parser:"Newline* '{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// WhenDecl: `when [odd|even] [first|last|rest|only] [blank|not-blank] use m`。
type WhenDecl struct {
	Pos        lexer.Position `parser:"" json:"-"`
	Conditions []string       `parser:"'when' @( 'odd' | 'even' | 'first' | 'last' | 'rest' | 'only' | 'blank' | 'not-blank' | 'any' )*"`
	Master     string         `parser:"'use' @Ident"`
}
