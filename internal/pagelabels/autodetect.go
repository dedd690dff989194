package pagelabels

import (
	"fmt"
	"regexp"

	"github.com/Epistemic-Technology/research-library/models"
)

// AutodetectScanPages is how many leading physical pages are examined
const AutodetectScanPages = 40

var frontMatterSignals = []*regexp.Regexp{
	regexp.MustCompile(`(?mi)^\s*contents\s*$`),
	regexp.MustCompile(`(?mi)^\s*table of contents\s*$`),
	regexp.MustCompile(`(?mi)^\s*acknowledg(e)?ments\s*$`),
	regexp.MustCompile(`(?mi)^\s*preface\s*$`),
	regexp.MustCompile(`(?mi)^\s*list of (figures|tables)\s*$`),
	regexp.MustCompile(`(?i)copyright`),
}

var mainBodySignals = []*regexp.Regexp{
	regexp.MustCompile(`(?mi)^\s*chapter\s+\d+\b`),
	regexp.MustCompile(`(?mi)^\s*introduction\s*$`),
	regexp.MustCompile(`(?mi)^\s*part\s+[ivxlcdm]+\b`),
	regexp.MustCompile(`(?mi)^\s*book\s+[ivxlcdm]+\b`),
	regexp.MustCompile(`(?mi)^\s*section\s+\d+(\.\d+)*\b`),
}

// numberedHeading matches a numbered, capitalised heading line such as "1 The Early Years"
var numberedHeading = regexp.MustCompile(`(?m)^\s*\d+\s+[A-Z][^\n]{5,80}$`)

// AutodetectSplit finds the first main-body page after some front matter, or
// failing that the first page with a numbered heading. It never guesses: when
// neither signal appears in the scanned range the detection reports not found.
func AutodetectSplit(pageText func(page int) string, maxPage int) models.SplitDetection {
	if maxPage <= 0 {
		return models.SplitDetection{Message: "No pages found."}
	}
	end := min(AutodetectScanPages, maxPage)

	frontSeen := 0
	splitAt := 0
	for p := 1; p <= end; p++ {
		text := pageText(p)
		if text == "" {
			continue
		}

		if matchesAny(frontMatterSignals, text) {
			frontSeen++
		}
		if matchesAny(mainBodySignals, text) && frontSeen >= 1 {
			splitAt = p
			break
		}
		if numberedHeading.MatchString(text) {
			splitAt = p
			break
		}
	}

	if splitAt == 0 {
		return models.SplitDetection{
			Message: fmt.Sprintf("Couldn’t find a clear split in first %d pages.", end),
		}
	}

	romanUntil := max(0, splitAt-1)
	return models.SplitDetection{
		Found:      true,
		SplitPage:  splitAt,
		RomanUntil: romanUntil,
		Message:    fmt.Sprintf("Detected split at PDF page %d (roman until %d).", splitAt, romanUntil),
	}
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, rx := range patterns {
		if rx.MatchString(text) {
			return true
		}
	}
	return false
}
