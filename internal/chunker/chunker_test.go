package chunker

import (
	"math/rand"
	"strings"
	"testing"
)

func words(n int, word string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = word
	}
	return strings.Join(parts, " ")
}

func TestApproxTokens(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 1},
		{"one", 1},
		{"a b c", 4},
		{words(10, "w"), 13},
		{"  spaced\n\nout\twords  ", 4},
	}
	for _, tt := range tests {
		if got := ApproxTokens(tt.input); got != tt.want {
			t.Errorf("ApproxTokens(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestInferSection(t *testing.T) {
	got := InferSection("abc\n   Chapter One  \nbody")
	if got == nil || *got != "Chapter One" {
		t.Errorf("InferSection() = %v, want Chapter One", got)
	}
	if got := InferSection("ab\ncd\n"); got != nil {
		t.Errorf("InferSection() = %q, want nil", *got)
	}
	long := strings.Repeat("é", 100)
	got = InferSection(long)
	if got == nil || len([]rune(*got)) != 80 {
		t.Errorf("InferSection() should cut to 80 runes")
	}
}

func TestBuildSingleChunkWhenUnderBudget(t *testing.T) {
	pages := map[int]string{
		1: "Chapter One\nText about beginnings.",
		2: "More text follows here.",
		3: "Chapter Two\nAnd then it ended.",
	}
	chunks := Build(pages, 1000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.PageStart != 1 || c.PageEnd != 3 {
		t.Errorf("span = %d-%d, want 1-3", c.PageStart, c.PageEnd)
	}
	if !strings.HasPrefix(c.Text, "Chapter One\nText about beginnings.\n\nMore text") {
		t.Errorf("unexpected text %q", c.Text)
	}
	if c.Section == nil || *c.Section != "Chapter One" {
		t.Errorf("section = %v, want Chapter One", c.Section)
	}
	if c.TokenCount != ApproxTokens(c.Text) {
		t.Errorf("token count = %d, want %d", c.TokenCount, ApproxTokens(c.Text))
	}
}

func TestBuildSplitsWhereBudgetIsExceeded(t *testing.T) {
	pages := map[int]string{
		1: words(500, "alpha"),
		2: words(300, "beta"),
		3: words(100, "gamma"),
	}
	chunks := Build(pages, 1000)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].PageStart != 1 || chunks[0].PageEnd != 1 {
		t.Errorf("first span = %d-%d, want 1-1", chunks[0].PageStart, chunks[0].PageEnd)
	}
	if chunks[1].PageStart != 2 || chunks[1].PageEnd != 3 {
		t.Errorf("second span = %d-%d, want 2-3", chunks[1].PageStart, chunks[1].PageEnd)
	}
}

func TestBuildSkipsBlankPages(t *testing.T) {
	pages := map[int]string{1: "   \n ", 2: "Some real text", 3: ""}
	chunks := Build(pages, 1000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].PageStart != 2 || chunks[0].PageEnd != 2 {
		t.Errorf("span = %d-%d, want 2-2", chunks[0].PageStart, chunks[0].PageEnd)
	}

	if got := Build(map[int]string{1: " ", 2: "\n"}, 1000); len(got) != 0 {
		t.Errorf("blank document produced %d chunks", len(got))
	}
}

func TestBuildResplitsOversizedChunks(t *testing.T) {
	paras := make([]string, 20)
	for i := range paras {
		paras[i] = words(100, "para")
	}
	pages := map[int]string{4: strings.Join(paras, "\n\n")}

	chunks := Build(pages, 1000)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.TokenCount > DefaultResplitTokens {
			t.Errorf("chunk %d has %d tokens, want <= %d", i, c.TokenCount, DefaultResplitTokens)
		}
		if c.PageStart != 4 || c.PageEnd != 4 {
			t.Errorf("chunk %d span = %d-%d, want parent span 4-4", i, c.PageStart, c.PageEnd)
		}
	}
}

func TestBuildKeepsSingleHugeParagraph(t *testing.T) {
	pages := map[int]string{1: words(1500, "huge")}
	chunks := Build(pages, 1000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].TokenCount != 1950 {
		t.Errorf("token count = %d, want 1950", chunks[0].TokenCount)
	}
}

func TestBuildSpanInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		pages := make(map[int]string)
		for p := 1; p <= 40; p++ {
			switch n := rng.Intn(900); {
			case n < 60:
				pages[p] = ""
			default:
				paras := make([]string, 1+rng.Intn(4))
				for i := range paras {
					paras[i] = words(1+n/len(paras), "w")
				}
				pages[p] = strings.Join(paras, "\n\n")
			}
		}

		chunks := BuildWithOptions(pages, Options{TargetTokens: 200 + rng.Intn(1500)})
		for i, c := range chunks {
			if c.PageStart > c.PageEnd {
				t.Fatalf("run %d chunk %d: start %d > end %d", run, i, c.PageStart, c.PageEnd)
			}
			if i == 0 {
				continue
			}
			prev := chunks[i-1]
			sameParent := prev.PageStart == c.PageStart && prev.PageEnd == c.PageEnd
			if !sameParent && c.PageStart <= prev.PageEnd {
				t.Fatalf("run %d chunk %d: span %d-%d overlaps previous %d-%d",
					run, i, c.PageStart, c.PageEnd, prev.PageStart, prev.PageEnd)
			}
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.TargetTokens != 1000 || o.OversizeTokens != 1600 || o.ResplitTokens != 1000 {
		t.Errorf("defaults = %+v", o)
	}
}
