package layout

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var wordGlue = Spacing{Min: 40, Opt: 50, Max: 80}

type span struct{ Start, End int }

// varying 以逐 part 可变的模式断开，出错时终止测试。
func varying(t *testing.T, elems []Element, available func(int) int) []Part {
	t.Helper()
	parts, err := BreakVarying(elems, available, DefaultParams())
	if err != nil {
		t.Fatalf("BreakVarying: %v", err)
	}
	return parts
}

func spans(parts []Part) []span {
	out := make([]span, len(parts))
	for i, p := range parts {
		out[i] = span{p.Start, p.End}
	}
	return out
}

func TestBreakEmptyStream(t *testing.T) {
	if parts := BreakBestFit(nil, 100, DefaultParams()); len(parts) != 0 {
		t.Fatalf("空流应没有 part: %v", parts)
	}
	br := NewPageBreaker(SliceSource(nil), DefaultParams())
	if br.State() != StatePending {
		t.Fatalf("初始状态应为 pending: %s", br.State())
	}
	if _, err := br.Next(100); !errors.Is(err, ErrExhausted) {
		t.Fatalf("空流 Next 应返回 ErrExhausted: %v", err)
	}
	if br.State() != StateExhausted {
		t.Fatalf("空流应直接 exhausted: %s", br.State())
	}
}

func TestBreakWithoutLegalBreaks(t *testing.T) {
	elems := []Element{
		Box(300, NoPosition),
		Glue(wordGlue, false, NoPosition),
		Box(300, NoPosition),
		Glue(wordGlue, false, NoPosition),
		Box(300, NoPosition),
	}
	for _, avail := range []int{200, 1000, 5000} {
		parts := BreakBestFit(elems, avail, DefaultParams())
		if diff := cmp.Diff([]span{{0, len(elems)}}, spans(parts)); diff != "" {
			t.Fatalf("avail=%d 应整体作为一个 part:\n%s", avail, diff)
		}
		perPart := varying(t, elems, func(int) int { return avail })
		if diff := cmp.Diff(spans(parts), spans(perPart)); diff != "" {
			t.Fatalf("avail=%d 两种模式结果不同:\n%s", avail, diff)
		}
	}
	if p := BreakBestFit(elems, 200, DefaultParams())[0]; !p.Overflow || p.Excess != 980-200 {
		t.Fatalf("应报告溢出: %+v", p)
	}
}

func TestBreakThreeBoxesExactFit(t *testing.T) {
	elems := words(3, 100, Spacing{Min: 90, Opt: 100, Max: 150})
	parts := BreakBestFit(elems, 500, DefaultParams())
	if len(parts) != 1 {
		t.Fatalf("应为一个 part: %v", spans(parts))
	}
	p := parts[0]
	if p.Ratio != 0 || p.Underfull || p.Overflow || p.Width() != 500 {
		t.Fatalf("ratio 应为 0: %+v", p)
	}
}

func TestBestFitParagraph(t *testing.T) {
	elems := words(10, 100, wordGlue)
	parts := BreakBestFit(elems, 600, DefaultParams())
	if diff := cmp.Diff([]span{{0, 7}, {8, 15}, {16, 19}}, spans(parts)); diff != "" {
		t.Fatalf("断行位置错误:\n%s", diff)
	}
	if r := parts[0].Ratio; math.Abs(r-50.0/90) > 1e-9 {
		t.Fatalf("首行 ratio = %g", r)
	}
	last := parts[len(parts)-1]
	if last.Ratio != 0 || !last.Underfull {
		t.Fatalf("最后一行不应拉伸: %+v", last)
	}
}

func TestForcedBreakIsHonoured(t *testing.T) {
	elems := words(12, 100, wordGlue)
	// 在第 5 个词之后插入强制断开（下标 9）
	elems = append(elems[:9], append([]Element{ForcedBreak(NoPosition)}, elems[9:]...)...)
	check := func(mode string, parts []Part) {
		t.Helper()
		if len(parts) < 2 || parts[0].End != 10 || !parts[0].Forced {
			t.Fatalf("%s: 强制断开应位于下标 9: %v", mode, spans(parts))
		}
		if parts[0].Ratio != 0 || !parts[0].Underfull {
			t.Fatalf("%s: 强制断开的 part 不应拉伸: %+v", mode, parts[0])
		}
		if parts[1].Start != 11 {
			t.Fatalf("%s: 断点后的 glue 应被丢弃: %v", mode, spans(parts))
		}
	}
	check("best-fit", BreakBestFit(elems, 100000, DefaultParams()))
	check("varying", varying(t, elems, func(int) int { return 100000 }))
}

func TestRatioFillsAvailableSpace(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		var elems []Element
		n := 10 + rng.Intn(60)
		for i := 0; i < n; i++ {
			if i > 0 {
				if rng.Intn(5) == 0 {
					elems = append(elems, Penalty(0, rng.Intn(200)-100, rng.Intn(2) == 0, NoPosition))
				}
				elems = append(elems, Glue(Spacing{Min: 20, Opt: 30, Max: 60}, true, NoPosition))
			}
			elems = append(elems, Box(50+rng.Intn(100), NoPosition))
		}
		avail := 600 + rng.Intn(800)
		for _, mode := range []struct {
			name  string
			parts []Part
		}{
			{"best-fit", BreakBestFit(elems, avail, DefaultParams())},
			{"varying", varying(t, elems, func(int) int { return avail })},
		} {
			prevEnd := 0
			for i, p := range mode.parts {
				for j := prevEnd; j < p.Start; j++ {
					if elems[j].IsBox() {
						t.Fatalf("%s round %d: box %d 被丢弃", mode.name, round, j)
					}
				}
				prevEnd = p.End
				if p.Overflow || p.Underfull {
					continue
				}
				var got float64
				if p.Ratio >= 0 {
					got = float64(p.Natural.Opt) + p.Ratio*float64(p.Natural.Stretch())
				} else {
					got = float64(p.Natural.Opt) + p.Ratio*float64(p.Natural.Shrink())
				}
				if math.Abs(got-float64(avail)) > 1e-6 {
					t.Fatalf("%s round %d part %d: %g != %d (%+v)", mode.name, round, i, got, avail, p)
				}
			}
			if prevEnd != len(elems) {
				t.Fatalf("%s round %d: 未覆盖全部元素 %d/%d", mode.name, round, prevEnd, len(elems))
			}
		}
	}
}

func TestUnderfullBeforeOverflow(t *testing.T) {
	elems := []Element{
		Box(100, NoPosition),
		Glue(Fixed(10), true, NoPosition),
		Box(100, NoPosition),
		Glue(Fixed(10), true, NoPosition),
		Box(1000, NoPosition),
	}
	want := []span{{0, 3}, {4, 5}}
	for _, mode := range []struct {
		name  string
		parts []Part
	}{
		{"best-fit", BreakBestFit(elems, 400, DefaultParams())},
		{"varying", varying(t, elems, func(int) int { return 400 })},
	} {
		if diff := cmp.Diff(want, spans(mode.parts)); diff != "" {
			t.Fatalf("%s:\n%s", mode.name, diff)
		}
		if !mode.parts[0].Underfull || mode.parts[0].Overflow {
			t.Fatalf("%s: 第一个 part 应欠满: %+v", mode.name, mode.parts[0])
		}
		if p := mode.parts[1]; !p.Overflow || p.Excess != 600 {
			t.Fatalf("%s: 第二个 part 应溢出 600: %+v", mode.name, p)
		}
	}
}

func TestFlaggedDemeritsAdded(t *testing.T) {
	params := DefaultParams()
	params.FlaggedDemerits = 1e6
	hyphen := func() Element { return Penalty(0, 0, true, NoPosition) }
	elems := []Element{
		Box(100, NoPosition), hyphen(), Box(100, NoPosition), hyphen(),
		Glue(Spacing{Min: 0, Opt: 0, Max: 100}, true, NoPosition),
		Box(100, NoPosition),
	}
	parts := BreakBestFit(elems, 100, params)
	if diff := cmp.Diff([]span{{0, 2}, {2, 4}, {5, 6}}, spans(parts)); diff != "" {
		t.Fatalf("断点错误:\n%s", diff)
	}
	got := []float64{parts[0].Demerits, parts[1].Demerits, parts[2].Demerits}
	if diff := cmp.Diff([]float64{0, 1e6, 0}, got); diff != "" {
		t.Fatalf("连续 flagged 断点应追加代价:\n%s", diff)
	}
}

func TestPageBreakerStates(t *testing.T) {
	elems := words(10, 100, wordGlue)
	br := NewPageBreaker(SliceSource(elems), DefaultParams())
	first, err := br.Next(600)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Start != 0 || first.End != 7 {
		t.Fatalf("第一页应为 [0,7): %+v", span{first.Start, first.End})
	}
	if br.State() != StateEmittingPart {
		t.Fatalf("输出 part 后状态应为 emitting-part: %s", br.State())
	}
	br.Release()
	second, err := br.Next(2000)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second.Start != 8 || second.End != 19 || !second.Underfull {
		t.Fatalf("第二页应为剩余全部内容: %+v", second)
	}
	if br.State() != StateExhausted {
		t.Fatalf("最后一页之后应 exhausted: %s", br.State())
	}
	if more, _ := br.More(); more {
		t.Fatalf("不应还有内容")
	}
	if _, err := br.Next(600); !errors.Is(err, ErrExhausted) {
		t.Fatalf("exhausted 后 Next 应返回 ErrExhausted: %v", err)
	}
	if br.Emitted() != 2 {
		t.Fatalf("Emitted = %d", br.Emitted())
	}
}

func TestPageBreakerPullsLazily(t *testing.T) {
	chunks := [][]Element{words(3, 100, wordGlue), {ForcedBreak(NoPosition)}, words(3, 100, wordGlue)}
	calls := 0
	src := func() ([]Element, bool, error) {
		c := chunks[calls]
		calls++
		return c, calls == len(chunks), nil
	}
	br := NewPageBreaker(src, DefaultParams())
	p, err := br.Next(10000)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Forced || p.End != 6 {
		t.Fatalf("第一页应在强制断开处结束: %+v", p)
	}
	if calls != 2 {
		t.Fatalf("遇到强制断开后不应继续拉取: calls=%d", calls)
	}
	if _, err := br.Next(10000); err != nil || calls != 3 {
		t.Fatalf("第二页: err=%v calls=%d", err, calls)
	}
}

func TestPageBreakerSourceError(t *testing.T) {
	boom := errors.New("boom")
	br := NewPageBreaker(func() ([]Element, bool, error) { return nil, false, boom }, DefaultParams())
	if _, err := br.Next(100); !errors.Is(err, boom) {
		t.Fatalf("应返回来源错误: %v", err)
	}
}

func TestVaryingAvailablePerPart(t *testing.T) {
	elems := words(10, 10, Spacing{Min: 5, Opt: 5, Max: 10})
	avail := []int{25, 55, 1000}
	var asked []int
	parts := varying(t, elems, func(i int) int {
		if i != len(asked) {
			t.Fatalf("可用空间应按顺序逐 part 查询: i=%d asked=%v", i, asked)
		}
		asked = append(asked, i)
		return avail[i]
	})
	if diff := cmp.Diff([]span{{0, 3}, {4, 11}, {12, 19}}, spans(parts)); diff != "" {
		t.Fatalf("断点错误:\n%s", diff)
	}
	for i, p := range parts {
		boxes := 0
		for _, e := range p.Elements {
			if e.IsBox() {
				boxes++
			}
		}
		if want := []int{2, 4, 4}[i]; boxes != want {
			t.Fatalf("part %d 应有 %d 个 box: %d", i, want, boxes)
		}
		if p.Available != avail[i] {
			t.Fatalf("part %d Available = %d, want %d", i, p.Available, avail[i])
		}
	}
	if parts[0].Ratio != 0 || parts[1].Ratio != 0 {
		t.Fatalf("前两个 part 应恰好填满: %g %g", parts[0].Ratio, parts[1].Ratio)
	}
	if !parts[2].Underfull {
		t.Fatalf("最后一个 part 应欠满: %+v", parts[2])
	}
}

func TestFlaggedDemeritsAcrossRelease(t *testing.T) {
	params := DefaultParams()
	params.FlaggedDemerits = 1e6
	hyphen := func() Element { return Penalty(0, 0, true, NoPosition) }
	elems := []Element{
		Box(100, NoPosition), hyphen(), Box(100, NoPosition), hyphen(), Box(100, NoPosition),
	}
	br := NewPageBreaker(SliceSource(elems), params)
	var parts []Part
	for {
		more, err := br.More()
		if err != nil {
			t.Fatal(err)
		}
		if !more {
			break
		}
		p, err := br.Next(100)
		if err != nil {
			t.Fatal(err)
		}
		parts = append(parts, p)
		br.Release()
	}
	if diff := cmp.Diff([]span{{0, 2}, {2, 4}, {4, 5}}, spans(parts)); diff != "" {
		t.Fatalf("断点错误:\n%s", diff)
	}
	got := []float64{parts[0].Demerits, parts[1].Demerits, parts[2].Demerits}
	if diff := cmp.Diff([]float64{0, 1e6, 0}, got); diff != "" {
		t.Fatalf("Release 之后连续 flagged 断点仍应追加代价:\n%s", diff)
	}
}

func TestPageBreakerRestart(t *testing.T) {
	br := NewPageBreaker(SliceSource(words(4, 100, wordGlue)), DefaultParams())
	first, err := br.Next(250)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(span{0, 3}, span{first.Start, first.End}); diff != "" {
		t.Fatalf("第一页:\n%s", diff)
	}
	if _, ok := br.Pending(); !ok {
		t.Fatalf("缓存中应还有未输出的元素")
	}
	br.Restart(SliceSource([]Element{Box(77, NoPosition)}))
	second, err := br.Next(1000)
	if err != nil {
		t.Fatal(err)
	}
	if second.Start != 7 || len(second.Elements) != 1 || second.Natural.Opt != 77 {
		t.Fatalf("重新拉取后应只包含新来源的元素且下标连续: %+v", second)
	}
	if br.State() != StateExhausted {
		t.Fatalf("新来源耗尽后应 exhausted: %s", br.State())
	}
	if _, ok := br.Pending(); ok {
		t.Fatalf("耗尽后不应还有未输出的元素")
	}
}
