package pagelabels

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Epistemic-Technology/research-library/models"
)

const (
	// minCoverageRatio is the share of non-blank pages that must carry a detected number
	minCoverageRatio = 0.6
	// maxUnnumberedGap is the number of unnumbered pages tolerated between two detections
	maxUnnumberedGap = 3
	// maxViolationRatio allows for chapter openers and misreads
	maxViolationRatio = 0.2
)

var headerToken = regexp.MustCompile(`(?i)^(?:page\s+)?(\d{1,4}|[ivxlcdm]{1,8})$`)

// pageInfo holds one detected page number
type pageInfo struct {
	page   int
	token  string
	number int
	roman  bool
}

// DetectHeaders looks for a bare page number in the first or last two lines of
// every page. The arabic detections must form a plausible increasing sequence,
// otherwise nothing is returned and the caller falls back to offset seeding.
// Pages between two consistent detections are interpolated.
func DetectHeaders(itemID int64, pages map[int]string, pageCount int) []models.PageMapEntry {
	var detected []pageInfo
	nonBlank := 0
	for p := 1; p <= pageCount; p++ {
		text := strings.TrimSpace(pages[p])
		if text == "" {
			continue
		}
		nonBlank++
		if info, ok := detectPage(p, text); ok {
			detected = append(detected, info)
		}
	}
	if nonBlank == 0 {
		return nil
	}

	// Roman numerals are only believable before the arabic sequence begins
	firstArabic := 0
	arabic := make(map[int]int)
	for _, d := range detected {
		if !d.roman {
			arabic[d.page] = d.number
			if firstArabic == 0 {
				firstArabic = d.page
			}
		}
	}
	var accepted []pageInfo
	for _, d := range detected {
		if d.roman && firstArabic != 0 && d.page > firstArabic {
			continue
		}
		accepted = append(accepted, d)
	}

	if float64(len(accepted))/float64(nonBlank) < minCoverageRatio {
		return nil
	}
	if !isMonotonic(arabic) {
		return nil
	}

	numbers := interpolate(arabic)
	entries := make([]models.PageMapEntry, 0, len(numbers)+len(accepted))
	for _, d := range accepted {
		if d.roman {
			entries = append(entries, headerEntry(itemID, d.page, strings.ToLower(d.token), intPtr(d.number)))
		}
	}
	pagesSorted := make([]int, 0, len(numbers))
	for p := range numbers {
		pagesSorted = append(pagesSorted, p)
	}
	sort.Ints(pagesSorted)
	for _, p := range pagesSorted {
		n := numbers[p]
		entries = append(entries, headerEntry(itemID, p, strconv.Itoa(n), intPtr(n)))
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].PDFPage < entries[j].PDFPage })
	return entries
}

func headerEntry(itemID int64, page int, label string, number *int) models.PageMapEntry {
	return models.PageMapEntry{
		ItemID:        itemID,
		PDFPage:       page,
		DisplayLabel:  label,
		DisplayNumber: number,
		Method:        models.MethodHeader,
		Confidence:    models.MethodHeader.DefaultConfidence(),
	}
}

// detectPage checks the first two and last two non-empty lines of a page
func detectPage(page int, text string) (pageInfo, bool) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	var candidates []string
	for i := 0; i < len(lines) && i < 2; i++ {
		candidates = append(candidates, lines[i])
	}
	for i := max(2, len(lines)-2); i < len(lines); i++ {
		candidates = append(candidates, lines[i])
	}

	for _, line := range candidates {
		m := headerToken.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		token := m[1]
		if n, err := strconv.Atoi(token); err == nil {
			if n <= 0 {
				continue
			}
			return pageInfo{page: page, token: token, number: n}, true
		}
		n := RomanToInt(token)
		// Reject non-canonical letter runs such as "mix" or "dim"
		if n <= 0 || !strings.EqualFold(IntToRoman(n, false), token) {
			continue
		}
		return pageInfo{page: page, token: token, number: n, roman: true}, true
	}
	return pageInfo{}, false
}

// isMonotonic checks that page numbers increase with document order, allowing a
// few unnumbered pages between detections and a share of outright violations
func isMonotonic(numbers map[int]int) bool {
	if len(numbers) < 2 {
		return false
	}

	pages := make([]int, 0, len(numbers))
	for p := range numbers {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	violations := 0
	for i := 1; i < len(pages); i++ {
		pageDelta := pages[i] - pages[i-1]
		numDelta := numbers[pages[i]] - numbers[pages[i-1]]
		if numDelta < 1 || numDelta > pageDelta+maxUnnumberedGap {
			violations++
		}
	}

	violationRatio := float64(violations) / float64(len(pages)-1)
	return violationRatio <= maxViolationRatio
}

// interpolate fills pages lying between two detections whose page gap equals
// their number gap
func interpolate(numbers map[int]int) map[int]int {
	result := make(map[int]int, len(numbers))
	pages := make([]int, 0, len(numbers))
	for p, n := range numbers {
		result[p] = n
		pages = append(pages, p)
	}
	sort.Ints(pages)

	for i := 1; i < len(pages); i++ {
		prev, next := pages[i-1], pages[i]
		if next-prev < 2 {
			continue
		}
		if numbers[next]-numbers[prev] != next-prev {
			continue
		}
		for p := prev + 1; p < next; p++ {
			result[p] = numbers[prev] + (p - prev)
		}
	}
	return result
}

// Resolve picks the best available labelling for a freshly extracted document:
// native PDF labels, then detected headers. It returns nil entries with
// MethodOffset when neither is usable, leaving the caller to seed.
func Resolve(itemID int64, native []string, pages map[int]string, pageCount int) ([]models.PageMapEntry, models.PageLabelMethod) {
	if entries := FromNativeLabels(itemID, native); len(entries) > 0 {
		return entries, models.MethodPDFLabel
	}
	if entries := DetectHeaders(itemID, pages, pageCount); len(entries) > 0 {
		return entries, models.MethodHeader
	}
	return nil, models.MethodOffset
}
