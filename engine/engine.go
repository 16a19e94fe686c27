// Package engine 把文档的各个页面序列排成区域树：
// 为每一页选择模板、用断开算法切分 body 流、装配区域并排版静态内容。
package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/npillmayer/schuko/tracing"

	"github.com/ByLCY/quire/area"
	"github.com/ByLCY/quire/content"
	"github.com/ByLCY/quire/diag"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/pagination"
)

// ForcePageCount 控制序列结束时是否补空白页。
type ForcePageCount int

const (
	ForceAuto ForcePageCount = iota
	ForceEven
	ForceOdd
	ForceEndOnEven
	ForceEndOnOdd
)

// ParseForcePageCount accepts auto, even, odd, end-on-even and end-on-odd.
func ParseForcePageCount(v string) (ForcePageCount, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "auto", "no-force":
		return ForceAuto, nil
	case "even":
		return ForceEven, nil
	case "odd":
		return ForceOdd, nil
	case "end-on-even":
		return ForceEndOnEven, nil
	case "end-on-odd":
		return ForceEndOnOdd, nil
	}
	return ForceAuto, fmt.Errorf("未知的 force-page-count: %s", v)
}

// Sequence 是一个页面序列：引用的 master、页码设置、body 流与静态区域内容。
type Sequence struct {
	Name           string
	Master         string
	InitialPage    int // 0 表示接续上一个序列
	ForcePageCount ForcePageCount
	Flow           *content.Flow
	Static         map[string]*content.Flow
}

// Document 是排版引擎的输入。Table 建立后只读，可以被并行的序列共享。
type Document struct {
	Meta      area.DocumentMeta
	Fonts     map[string]area.FontResource
	Table     *pagination.Table
	Sequences []*Sequence
}

// Options 控制一次排版。
type Options struct {
	Params   layout.Params
	Measurer layout.Measurer
	Sink     diag.Sink
	// Parallel 时各序列并发排版，页码只由 InitialPage 决定（缺省为 1）。
	Parallel bool
}

// Failure 记录失败的序列，失败序列不产生任何页面。
type Failure struct {
	Sequence string
	Err      error
}

// Result 是排版结果。
type Result struct {
	Tree     *area.Tree
	Failures []Failure
}

// Build 排版 doc 的全部序列。某个序列失败不影响其它序列，
// 返回的错误是所有失败的 errors.Join，Result 仍然包含成功序列的页面。
func Build(doc *Document, opts Options) (*Result, error) {
	if doc == nil || doc.Table == nil {
		return nil, errors.New("engine: 文档缺少页面模板表")
	}
	if opts.Measurer == nil {
		return nil, errors.New("engine: 缺少文本测量器")
	}
	if opts.Sink == nil {
		opts.Sink = diag.Discard
	}
	if opts.Params == (layout.Params{}) {
		opts.Params = layout.DefaultParams()
	}

	tree := &area.Tree{
		Meta:      doc.Meta,
		Resources: area.ResourceSet{Fonts: doc.Fonts},
	}
	runs := make([]*run, len(doc.Sequences))
	for i, seq := range doc.Sequences {
		runs[i] = &run{seq: seq, table: doc.Table, opts: opts}
	}

	if opts.Parallel {
		var wg sync.WaitGroup
		for _, r := range runs {
			r.first = r.seq.InitialPage
			if r.first <= 0 {
				r.first = 1
			}
			wg.Add(1)
			go func(r *run) {
				defer wg.Done()
				r.err = r.layout()
			}(r)
		}
		wg.Wait()
	} else {
		next := 1
		for _, r := range runs {
			r.first = r.seq.InitialPage
			if r.first <= 0 {
				r.first = next
			}
			if r.err = r.layout(); r.err == nil && len(r.pages) > 0 {
				next = r.pages[len(r.pages)-1].Number + 1
			}
		}
	}

	res := &Result{Tree: tree}
	var errs []error
	for _, r := range runs {
		if r.err != nil {
			res.Failures = append(res.Failures, Failure{Sequence: r.seq.Name, Err: r.err})
			errs = append(errs, fmt.Errorf("序列 %s: %w", r.seq.Name, r.err))
			continue
		}
		tree.Pages = append(tree.Pages, r.pages...)
	}
	return res, errors.Join(errs...)
}

// run 是单个序列的排版状态，只在一个 goroutine 内使用。
type run struct {
	seq   *Sequence
	table *pagination.Table
	opts  Options
	first int

	sequencer *pagination.Sequencer
	pages     []*area.Page
	err       error
}

func (r *run) layout() error {
	seq := r.seq
	if seq.Flow == nil {
		seq.Flow = content.NewFlow(pagination.RegionBody)
	}
	sq, err := pagination.ForMaster(seq.Name, seq.Master, r.table, r.opts.Sink)
	if err != nil {
		return err
	}
	r.sequencer = sq

	arena := layout.NewPositionArena()
	ctx := &layout.Context{
		Positions:  arena,
		Measurer:   r.opts.Measurer,
		Params:     r.opts.Params,
		PageNumber: r.first,
	}
	br := layout.NewPageBreaker(layout.DelegateSource(seq.Flow, ctx), r.opts.Params)
	asm := layout.NewAssembler(seq.Flow, arena, br)

	for index := 0; ; index++ {
		number := r.first + index
		flags := pagination.Flags{Odd: number%2 == 1, First: index == 0}
		tpl, err := sq.Next(flags)
		if err != nil {
			return err
		}
		body := tpl.Body()
		if index > 0 && body.Width != ctx.RefIPD {
			r.rewidth(br, arena, ctx, body.Width)
		}
		ctx.RefIPD = body.Width
		ctx.Available = layout.Fixed(body.Height)
		ctx.PageNumber = number

		more, err := br.More()
		if err != nil {
			return fmt.Errorf("第 %d 页: %w", index, err)
		}
		var part layout.Part
		if more {
			if part, err = br.Next(body.Height); err != nil {
				return fmt.Errorf("第 %d 页: %w", index, err)
			}
			// 向前看一步以判断这是否是最后一页
			if more, err = br.More(); err != nil {
				return fmt.Errorf("第 %d 页: %w", index, err)
			}
		}
		last := !more
		if last && (sq.HasPagePositionLast() || (index == 0 && sq.HasPagePositionOnly())) {
			sq.Previous()
			flags.Last = true
			flags.Only = index == 0
			if tpl, err = sq.Next(flags); err != nil {
				return err
			}
			body = tpl.Body()
		}

		page := newPage(seq.Name, tpl, index, number, false)
		if len(part.Elements) > 0 {
			target := page.Region(pagination.RegionBody)
			if err := asm.Assemble(part, target, number); err != nil {
				return err
			}
			if excess := part.Natural.Min - body.Height; excess > 0 {
				if err := r.overflow(target, tpl.Name, body.Overflow, index, excess); err != nil {
					return err
				}
			}
		}
		if err := r.layoutStatic(page, tpl, index, number); err != nil {
			return err
		}
		r.pages = append(r.pages, page)
		if last {
			break
		}
	}
	return r.forcePageCount()
}

// rewidth 在 body 宽度变化时丢弃断页器中按旧宽度生成、尚未输出的元素，
// 让流从第一个未输出的位置按新宽度重新生成。无法恢复时保留旧元素。
func (r *run) rewidth(br *layout.PageBreaker, arena *layout.PositionArena, ctx *layout.Context, width int) {
	pos, ok := br.Pending()
	if !ok || pos == layout.NoPosition {
		return
	}
	if !r.seq.Flow.ResumeAt(pos, arena) {
		tracer().Debugf("序列 %s: 宽度 %d -> %d，无法从位置 %d 恢复，沿用旧元素", r.seq.Name, ctx.RefIPD, width, pos)
		return
	}
	tracer().Debugf("序列 %s: 宽度 %d -> %d，从位置 %d 重新生成", r.seq.Name, ctx.RefIPD, width, pos)
	br.Restart(layout.DelegateSource(r.seq.Flow, ctx))
}

// forcePageCount 按序列设置在末尾补一张空白页。
func (r *run) forcePageCount() error {
	count := len(r.pages)
	lastNumber := r.first + count - 1
	need := false
	switch r.seq.ForcePageCount {
	case ForceEven:
		need = count%2 == 1
	case ForceOdd:
		need = count%2 == 0
	case ForceEndOnEven:
		need = lastNumber%2 == 1
	case ForceEndOnOdd:
		need = lastNumber%2 == 0
	}
	if !need {
		return nil
	}
	number := lastNumber + 1
	tpl, err := r.sequencer.Next(pagination.Flags{Odd: number%2 == 1, Blank: true})
	if err != nil {
		return err
	}
	page := newPage(r.seq.Name, tpl, count, number, true)
	if err := r.layoutStatic(page, tpl, count, number); err != nil {
		return err
	}
	r.pages = append(r.pages, page)
	return nil
}

// layoutStatic 为页面的每个静态区域重新排版对应的流。
// 静态内容不跨页：断成多于一个 part 或唯一的 part 溢出都视为溢出。
func (r *run) layoutStatic(page *area.Page, tpl *pagination.Template, index, number int) error {
	for _, reg := range tpl.Regions {
		flow := r.seq.Static[reg.Name]
		if reg.Name == pagination.RegionBody || flow == nil {
			continue
		}
		flow.ResetBreakState()
		arena := layout.NewPositionArena()
		ctx := &layout.Context{
			Available:  layout.Fixed(reg.Height),
			RefIPD:     reg.Width,
			Positions:  arena,
			Measurer:   r.opts.Measurer,
			PageNumber: number,
			Params:     r.opts.Params,
		}
		var elems []layout.Element
		for {
			got, done, err := flow.PullElements(ctx)
			if err != nil {
				return fmt.Errorf("静态区域 %s: %w", reg.Name, err)
			}
			elems = append(elems, got...)
			if done {
				break
			}
		}
		if len(elems) == 0 {
			continue
		}
		elems = r.dropForcedBreaks(elems, reg.Name, index)
		target := page.Region(reg.Name)
		ac := &layout.AreaContext{Positions: arena, Target: target, PageNumber: number}
		parts := layout.BreakBestFit(elems, reg.Height, r.opts.Params)
		if len(parts) == 1 && !parts[0].Overflow {
			ac.Ratio = parts[0].Ratio
			if err := flow.AttachAreas(parts[0].Positions(), ac); err != nil {
				return fmt.Errorf("静态区域 %s: %w", reg.Name, err)
			}
			continue
		}

		total := 0
		for _, p := range parts {
			total += p.Natural.Min
		}
		excess := total - reg.Height
		if excess <= 0 {
			excess = parts[0].Excess
		}
		if err := r.overflow(target, tpl.Name, reg.Overflow, index, excess); err != nil {
			return err
		}
		shown := parts[0]
		if reg.Overflow == pagination.PolicyAllow {
			shown = layout.Part{Elements: elems}
		}
		ac.Ratio = shown.Ratio
		if err := flow.AttachAreas(shown.Positions(), ac); err != nil {
			return fmt.Errorf("静态区域 %s: %w", reg.Name, err)
		}
	}
	return nil
}

// dropForcedBreaks 把静态内容中的强制断开改为普通断点：静态区域不分页，
// 其中的强制断开被忽略并记录为错误。
func (r *run) dropForcedBreaks(elems []layout.Element, region string, index int) []layout.Element {
	for i, e := range elems {
		if !e.IsForcedBreak() {
			continue
		}
		tracer().Errorf("序列 %s 第 %d 页: 静态区域 %s 中的强制断开被忽略", r.seq.Name, index, region)
		elems[i] = e.WithCost(0)
	}
	return elems
}

// overflow 报告溢出并按区域策略处理：error 终止序列，warn-and-clip 标记裁剪。
func (r *run) overflow(target *area.Region, template string, policy pagination.OverflowPolicy, index, excess int) error {
	r.opts.Sink.Report(diag.Event{
		Kind:        diag.Overflow,
		Sequence:    r.seq.Name,
		Template:    template,
		Region:      target.Name,
		PageIndex:   index,
		Excess:      excess,
		Recoverable: policy != pagination.PolicyError,
	})
	target.Overflow = true
	switch policy {
	case pagination.PolicyError:
		return &layout.OverflowError{Sequence: r.seq.Name, Region: target.Name, PageIndex: index, Excess: excess}
	case pagination.PolicyWarnAndClip:
		target.Clip = true
	}
	return nil
}

func newPage(sequence string, tpl *pagination.Template, index, number int, blank bool) *area.Page {
	page := &area.Page{
		Sequence: sequence,
		Index:    index,
		Number:   number,
		Template: tpl.Name,
		Blank:    blank,
		Width:    tpl.Width,
		Height:   tpl.Height,
	}
	for _, reg := range tpl.Regions {
		page.Regions = append(page.Regions, &area.Region{
			Name:   reg.Name,
			X:      reg.X,
			Y:      reg.Y,
			Width:  reg.Width,
			Height: reg.Height,
		})
	}
	return page
}

// tracer traces page assembly to 'quire.engine'.
func tracer() tracing.Trace {
	return tracing.Select("quire.engine")
}
