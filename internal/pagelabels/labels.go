// Package pagelabels maps physical PDF pages to the page labels printed in the
// source (roman front matter, arabic body) and derives chunk citation ranges.
package pagelabels

import (
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/research-library/models"
)

// Seed returns one offset entry per physical page: label = page + offset
func Seed(itemID int64, pageCount, offset int) []models.PageMapEntry {
	entries := make([]models.PageMapEntry, 0, max(pageCount, 0))
	for p := 1; p <= pageCount; p++ {
		n := p + offset
		entries = append(entries, models.PageMapEntry{
			ItemID:        itemID,
			PDFPage:       p,
			DisplayLabel:  strconv.Itoa(n),
			DisplayNumber: intPtr(n),
			Method:        models.MethodOffset,
			Confidence:    models.MethodOffset.DefaultConfidence(),
		})
	}
	return entries
}

// FromNativeLabels converts labels read from the PDF catalog (index 0 = page 1)
func FromNativeLabels(itemID int64, labels []string) []models.PageMapEntry {
	var entries []models.PageMapEntry
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		entries = append(entries, models.PageMapEntry{
			ItemID:        itemID,
			PDFPage:       i + 1,
			DisplayLabel:  label,
			DisplayNumber: ParseNumber(label),
			Method:        models.MethodPDFLabel,
			Confidence:    models.MethodPDFLabel.DefaultConfidence(),
		})
	}
	return entries
}

// Manual builds an admin correction for a single page. A purely numeric label
// with no explicit number gets its number filled in.
func Manual(itemID int64, page int, label string, number *int) models.PageMapEntry {
	label = strings.TrimSpace(label)
	if number == nil {
		if n, err := strconv.Atoi(label); err == nil {
			number = &n
		}
	}
	return models.PageMapEntry{
		ItemID:        itemID,
		PDFPage:       page,
		DisplayLabel:  label,
		DisplayNumber: number,
		Method:        models.MethodManual,
		Confidence:    models.MethodManual.DefaultConfidence(),
	}
}

// RuleParams describes a roman front matter / arabic body numbering rule
type RuleParams struct {
	// RomanUntilPDF is the last physical page numbered in roman (0 = none)
	RomanUntilPDF int `json:"roman_until_pdf"`
	RomanStartAt  int `json:"roman_start_at"`
	// RomanUpper renders I, II, ... instead of the default i, ii, ...
	RomanUpper  bool   `json:"roman_upper,omitempty"`
	RomanPrefix string `json:"roman_prefix,omitempty"`
	// ArabicStartPDF is the first physical page numbered in arabic (0 = RomanUntilPDF+1)
	ArabicStartPDF    int    `json:"arabic_start_pdf,omitempty"`
	ArabicStartNumber int    `json:"arabic_start_number"`
	ArabicPrefix      string `json:"arabic_prefix,omitempty"`
}

// Normalize clamps the parameters the same way the admin form does
func (p RuleParams) Normalize() RuleParams {
	p.RomanUntilPDF = max(0, p.RomanUntilPDF)
	p.RomanStartAt = max(1, p.RomanStartAt)
	p.RomanPrefix = strings.TrimSpace(p.RomanPrefix)
	if p.ArabicStartPDF <= 0 {
		p.ArabicStartPDF = p.RomanUntilPDF + 1
	}
	p.ArabicStartNumber = max(1, p.ArabicStartNumber)
	p.ArabicPrefix = strings.TrimSpace(p.ArabicPrefix)
	return p
}

// BulkRule produces rule entries for pages 1..maxPage. Arabic numbering wins
// where the two ranges overlap.
func BulkRule(itemID int64, params RuleParams, maxPage int) []models.PageMapEntry {
	params = params.Normalize()
	byPage := make(map[int]models.PageMapEntry)
	var order []int
	put := func(e models.PageMapEntry) {
		if _, ok := byPage[e.PDFPage]; !ok {
			order = append(order, e.PDFPage)
		}
		byPage[e.PDFPage] = e
	}

	for p := 1; p <= min(params.RomanUntilPDF, maxPage); p++ {
		n := params.RomanStartAt + (p - 1)
		put(models.PageMapEntry{
			ItemID:       itemID,
			PDFPage:      p,
			DisplayLabel: params.RomanPrefix + IntToRoman(n, !params.RomanUpper),
			Method:       models.MethodRule,
			Confidence:   models.MethodRule.DefaultConfidence(),
		})
	}

	n := params.ArabicStartNumber
	for p := max(1, params.ArabicStartPDF); p <= maxPage; p++ {
		put(models.PageMapEntry{
			ItemID:        itemID,
			PDFPage:       p,
			DisplayLabel:  params.ArabicPrefix + strconv.Itoa(n),
			DisplayNumber: intPtr(n),
			Method:        models.MethodRule,
			Confidence:    models.MethodRule.DefaultConfidence(),
		})
		n++
	}

	entries := make([]models.PageMapEntry, 0, len(order))
	for _, p := range order {
		entries = append(entries, byPage[p])
	}
	return entries
}

// AutodetectEntries labels pages 1..romanUntil as i, ii, ... and the rest 1, 2, ...
func AutodetectEntries(itemID int64, romanUntil, maxPage int) []models.PageMapEntry {
	var entries []models.PageMapEntry
	for p := 1; p <= min(romanUntil, maxPage); p++ {
		entries = append(entries, models.PageMapEntry{
			ItemID:       itemID,
			PDFPage:      p,
			DisplayLabel: IntToRoman(p, true),
			Method:       models.MethodAutodetect,
			Confidence:   models.MethodAutodetect.DefaultConfidence(),
		})
	}
	n := 1
	for p := max(1, romanUntil+1); p <= maxPage; p++ {
		entries = append(entries, models.PageMapEntry{
			ItemID:        itemID,
			PDFPage:       p,
			DisplayLabel:  strconv.Itoa(n),
			DisplayNumber: intPtr(n),
			Method:        models.MethodAutodetect,
			Confidence:    models.MethodAutodetect.DefaultConfidence(),
		})
		n++
	}
	return entries
}

// ParseNumber returns the integer value of an arabic or roman label, or nil
func ParseNumber(label string) *int {
	label = strings.TrimSpace(label)
	if n, err := strconv.Atoi(label); err == nil {
		return &n
	}
	if IsRoman(label) {
		return intPtr(RomanToInt(label))
	}
	return nil
}

// Display is the resolved citation range of one chunk
type Display struct {
	Start      *int
	End        *int
	StartLabel string
	EndLabel   string
}

// Lookup returns the page map entry for a physical page, if one exists
type Lookup func(page int) (models.PageMapEntry, bool)

// DisplayRange resolves start and end pages independently, since a chunk may
// straddle the roman/arabic boundary. Missing labels fall back to page+offset;
// roman labels without a stored number are converted.
func DisplayRange(pageStart, pageEnd int, lookup Lookup, offset int) Display {
	startLabel, start := resolvePage(pageStart, lookup, offset)
	endLabel, end := resolvePage(pageEnd, lookup, offset)
	return Display{
		Start:      start,
		End:        end,
		StartLabel: startLabel,
		EndLabel:   endLabel,
	}
}

func resolvePage(page int, lookup Lookup, offset int) (string, *int) {
	var entry models.PageMapEntry
	ok := false
	if lookup != nil {
		entry, ok = lookup(page)
	}
	if !ok || entry.DisplayLabel == "" {
		n := page + offset
		return strconv.Itoa(n), &n
	}
	number := entry.DisplayNumber
	if number == nil && IsRoman(entry.DisplayLabel) {
		number = intPtr(RomanToInt(entry.DisplayLabel))
	}
	return entry.DisplayLabel, number
}

// MapLookup adapts a slice of entries to a Lookup
func MapLookup(entries []models.PageMapEntry) Lookup {
	byPage := make(map[int]models.PageMapEntry, len(entries))
	for _, e := range entries {
		byPage[e.PDFPage] = e
	}
	return func(page int) (models.PageMapEntry, bool) {
		e, ok := byPage[page]
		return e, ok
	}
}

func intPtr(n int) *int {
	return &n
}
