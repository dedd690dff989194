package pagelabels

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Epistemic-Technology/research-library/models"
)

func TestRomanRoundTrip(t *testing.T) {
	for n := 1; n <= 3999; n++ {
		r := IntToRoman(n, false)
		if got := RomanToInt(r); got != n {
			t.Fatalf("RomanToInt(IntToRoman(%d)=%q) = %d", n, r, got)
		}
		if got := RomanToInt(strings.ToLower(r)); got != n {
			t.Fatalf("lowercase %q parsed as %d, want %d", r, got, n)
		}
	}
}

func TestRomanKnownValues(t *testing.T) {
	tests := []struct {
		n     int
		lower bool
		want  string
	}{
		{1, true, "i"},
		{4, false, "IV"},
		{9, true, "ix"},
		{14, false, "XIV"},
		{40, false, "XL"},
		{1994, false, "MCMXCIV"},
		{3999, false, "MMMCMXCIX"},
		{0, false, ""},
	}
	for _, tt := range tests {
		if got := IntToRoman(tt.n, tt.lower); got != tt.want {
			t.Errorf("IntToRoman(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
	if got := RomanToInt("IIII"); got != 4 {
		t.Errorf("RomanToInt(IIII) = %d, want 4 (additive)", got)
	}
}

func TestIsRoman(t *testing.T) {
	for _, s := range []string{"xii", "XIV", "m"} {
		if !IsRoman(s) {
			t.Errorf("IsRoman(%q) = false", s)
		}
	}
	for _, s := range []string{"", "12", "x1", "abc"} {
		if IsRoman(s) {
			t.Errorf("IsRoman(%q) = true", s)
		}
	}
}

func TestSeedWithOffset(t *testing.T) {
	entries := Seed(7, 10, 2)
	if len(entries) != 10 {
		t.Fatalf("len = %d, want 10", len(entries))
	}
	e := entries[4]
	if e.PDFPage != 5 {
		t.Fatalf("PDFPage = %d, want 5", e.PDFPage)
	}
	if e.DisplayNumber == nil || *e.DisplayNumber != 7 {
		t.Errorf("DisplayNumber = %v, want 7", e.DisplayNumber)
	}
	if e.DisplayLabel != "7" {
		t.Errorf("DisplayLabel = %q, want 7", e.DisplayLabel)
	}
	if e.Method != models.MethodOffset || e.Confidence != 0.40 {
		t.Errorf("method/confidence = %s/%v", e.Method, e.Confidence)
	}
	if e.ItemID != 7 {
		t.Errorf("ItemID = %d", e.ItemID)
	}
}

func TestBulkRuleScenario(t *testing.T) {
	entries := BulkRule(1, RuleParams{
		RomanUntilPDF:     10,
		RomanStartAt:      1,
		ArabicStartPDF:    11,
		ArabicStartNumber: 1,
	}, 20)

	if len(entries) != 20 {
		t.Fatalf("len = %d, want 20", len(entries))
	}
	for i, e := range entries {
		page := i + 1
		if e.PDFPage != page {
			t.Fatalf("entry %d has page %d", i, e.PDFPage)
		}
		if e.Method != models.MethodRule || e.Confidence != 0.95 {
			t.Errorf("page %d method/confidence = %s/%v", page, e.Method, e.Confidence)
		}
		if page <= 10 {
			if want := IntToRoman(page, true); e.DisplayLabel != want {
				t.Errorf("page %d label = %q, want %q", page, e.DisplayLabel, want)
			}
			if e.DisplayNumber != nil {
				t.Errorf("page %d roman number should be nil", page)
			}
		} else {
			if want := fmt.Sprint(page - 10); e.DisplayLabel != want {
				t.Errorf("page %d label = %q, want %q", page, e.DisplayLabel, want)
			}
			if e.DisplayNumber == nil || *e.DisplayNumber != page-10 {
				t.Errorf("page %d number = %v", page, e.DisplayNumber)
			}
		}
	}
	if entries[0].DisplayLabel != "i" || entries[9].DisplayLabel != "x" {
		t.Errorf("roman range = %q..%q", entries[0].DisplayLabel, entries[9].DisplayLabel)
	}
}

func TestBulkRuleDefaultsAndPrefixes(t *testing.T) {
	entries := BulkRule(1, RuleParams{
		RomanUntilPDF: 3,
		RomanUpper:    true,
		RomanPrefix:   " FM-",
		ArabicPrefix:  "A",
	}, 5)

	want := []string{"FM-I", "FM-II", "FM-III", "A1", "A2"}
	if len(entries) != len(want) {
		t.Fatalf("len = %d, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].DisplayLabel != w {
			t.Errorf("page %d label = %q, want %q", i+1, entries[i].DisplayLabel, w)
		}
	}
}

func TestBulkRuleOverlapPrefersArabic(t *testing.T) {
	entries := BulkRule(1, RuleParams{RomanUntilPDF: 4, ArabicStartPDF: 3, ArabicStartNumber: 1}, 4)
	if len(entries) != 4 {
		t.Fatalf("len = %d, want 4", len(entries))
	}
	if entries[2].DisplayLabel != "1" || entries[3].DisplayLabel != "2" {
		t.Errorf("overlap labels = %q, %q", entries[2].DisplayLabel, entries[3].DisplayLabel)
	}
}

func TestAutodetectEntries(t *testing.T) {
	entries := AutodetectEntries(1, 3, 6)
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.DisplayLabel
		if e.Method != models.MethodAutodetect || e.Confidence != 0.90 {
			t.Errorf("entry %d method/confidence = %s/%v", i, e.Method, e.Confidence)
		}
	}
	if got := strings.Join(labels, ","); got != "i,ii,iii,1,2,3" {
		t.Errorf("labels = %s", got)
	}
}

func TestManualFillsNumericLabel(t *testing.T) {
	e := Manual(1, 4, " 12 ", nil)
	if e.DisplayLabel != "12" || e.DisplayNumber == nil || *e.DisplayNumber != 12 {
		t.Errorf("manual entry = %+v", e)
	}
	if e.Method != models.MethodManual || e.Confidence != 1.0 {
		t.Errorf("method/confidence = %s/%v", e.Method, e.Confidence)
	}
	e = Manual(1, 4, "xii", nil)
	if e.DisplayNumber != nil {
		t.Errorf("roman manual label should leave number for recompute, got %v", *e.DisplayNumber)
	}
}

func TestDisplayRangeAcrossBoundary(t *testing.T) {
	entries := []models.PageMapEntry{
		{PDFPage: 9, DisplayLabel: "ix", Method: models.MethodRule},
		{PDFPage: 10, DisplayLabel: "1", DisplayNumber: intPtr(1), Method: models.MethodRule},
	}
	d := DisplayRange(9, 10, MapLookup(entries), 0)
	if d.StartLabel != "ix" || d.Start == nil || *d.Start != 9 {
		t.Errorf("start = %q/%v", d.StartLabel, d.Start)
	}
	if d.EndLabel != "1" || d.End == nil || *d.End != 1 {
		t.Errorf("end = %q/%v", d.EndLabel, d.End)
	}
}

func TestDisplayRangeFallsBackToOffset(t *testing.T) {
	d := DisplayRange(3, 4, MapLookup(nil), 5)
	if d.StartLabel != "8" || *d.Start != 8 || d.EndLabel != "9" || *d.End != 9 {
		t.Errorf("display = %+v", d)
	}

	entries := []models.PageMapEntry{{PDFPage: 3, DisplayLabel: "A-3"}}
	d = DisplayRange(3, 3, MapLookup(entries), 0)
	if d.StartLabel != "A-3" || d.Start != nil {
		t.Errorf("unparsable label should keep nil number, got %+v", d)
	}
}

func TestFromNativeLabels(t *testing.T) {
	entries := FromNativeLabels(2, []string{"i", "ii", "", "1", "A-1"})
	if len(entries) != 4 {
		t.Fatalf("len = %d, want 4", len(entries))
	}
	if entries[0].DisplayNumber == nil || *entries[0].DisplayNumber != 1 {
		t.Errorf("roman native label number = %v", entries[0].DisplayNumber)
	}
	if entries[2].PDFPage != 4 || *entries[2].DisplayNumber != 1 {
		t.Errorf("arabic entry = %+v", entries[2])
	}
	if entries[3].DisplayNumber != nil {
		t.Error("prefixed label should have no number")
	}
	if entries[0].Method != models.MethodPDFLabel || entries[0].Confidence != 1.0 {
		t.Errorf("method/confidence = %s/%v", entries[0].Method, entries[0].Confidence)
	}
}

func TestDetectHeaders(t *testing.T) {
	pages := map[int]string{}
	pages[1] = "Title Page\nA Book"
	pages[2] = "ii\nPreface text here"
	for p := 3; p <= 12; p++ {
		pages[p] = fmt.Sprintf("Running Head\nbody text on page %d\n\n%d", p, p-2)
	}
	// Page 7 is a chapter opener without a number; it should be interpolated
	pages[7] = "CHAPTER TWO\nbody text"

	entries := DetectHeaders(1, pages, 12)
	if len(entries) == 0 {
		t.Fatal("expected header detections")
	}
	lookup := MapLookup(entries)
	if e, ok := lookup(2); !ok || e.DisplayLabel != "ii" || *e.DisplayNumber != 2 {
		t.Errorf("page 2 = %+v, %v", e, ok)
	}
	if e, ok := lookup(7); !ok || e.DisplayLabel != "5" {
		t.Errorf("interpolated page 7 = %+v, %v", e, ok)
	}
	if e, ok := lookup(12); !ok || e.DisplayLabel != "10" {
		t.Errorf("page 12 = %+v, %v", e, ok)
	}
	if _, ok := lookup(1); ok {
		t.Error("page 1 has no number and should not be labelled")
	}
	for _, e := range entries {
		if e.Method != models.MethodHeader || e.Confidence != 0.6 {
			t.Fatalf("entry %+v has wrong method/confidence", e)
		}
	}
}

func TestDetectHeadersRejectsNoise(t *testing.T) {
	pages := map[int]string{
		1: "Intro\n42",
		2: "More\n7",
		3: "Another\n300",
		4: "Text\n12",
		5: "Last\n2",
	}
	if entries := DetectHeaders(1, pages, 5); entries != nil {
		t.Errorf("non-monotonic numbers accepted: %+v", entries)
	}

	sparse := map[int]string{1: "a\n1", 2: "b", 3: "c", 4: "d", 5: "e"}
	if entries := DetectHeaders(1, sparse, 5); entries != nil {
		t.Errorf("low coverage accepted: %+v", entries)
	}
}

func TestResolveOrder(t *testing.T) {
	_, method := Resolve(1, []string{"i", "1"}, nil, 2)
	if method != models.MethodPDFLabel {
		t.Errorf("method = %s, want pdf_label", method)
	}
	entries, method := Resolve(1, nil, map[int]string{1: "nothing"}, 1)
	if method != models.MethodOffset || entries != nil {
		t.Errorf("fallback = %s, %v", method, entries)
	}
}

func TestAutodetectSplit(t *testing.T) {
	pages := map[int]string{
		1: "A History of Things",
		2: "Copyright 1999 Some Press",
		3: "Contents\n1 Beginnings ....... 1",
		4: "Preface\nSome words",
		5: "Introduction\nThe story starts",
	}
	d := AutodetectSplit(func(p int) string { return pages[p] }, 30)
	if !d.Found || d.SplitPage != 3 || d.RomanUntil != 2 {
		// page 3 carries a numbered heading line "1 Beginnings ..."
		t.Fatalf("detection = %+v", d)
	}

	pages[3] = "Contents\nBeginnings"
	d = AutodetectSplit(func(p int) string { return pages[p] }, 30)
	if !d.Found || d.SplitPage != 5 || d.RomanUntil != 4 {
		t.Fatalf("detection = %+v", d)
	}
	if d.Message != "Detected split at PDF page 5 (roman until 4)." {
		t.Errorf("message = %q", d.Message)
	}
}

func TestAutodetectSplitNotFound(t *testing.T) {
	d := AutodetectSplit(func(int) string { return "plain prose without headings" }, 12)
	if d.Found {
		t.Fatalf("unexpected split %+v", d)
	}
	if d.Message != "Couldn’t find a clear split in first 12 pages." {
		t.Errorf("message = %q", d.Message)
	}

	d = AutodetectSplit(func(int) string { return "" }, 0)
	if d.Found || d.Message != "No pages found." {
		t.Errorf("empty detection = %+v", d)
	}
}

func TestAutodetectMainSignalNeedsFrontMatter(t *testing.T) {
	pages := map[int]string{1: "Chapter 1\nstory", 2: "Preface", 3: "Chapter 2\nmore"}
	d := AutodetectSplit(func(p int) string { return pages[p] }, 3)
	if !d.Found || d.SplitPage != 3 {
		t.Errorf("detection = %+v", d)
	}
}
