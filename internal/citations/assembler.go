package citations

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Epistemic-Technology/research-library/models"
)

const (
	NoSuitableSource    = "No suitable source found in selected books."
	NoMatchingSource    = "No matching source returned."
	NoSourcesReferenced = "(No sources referenced.)"
)

// ParseFailure is the placeholder footnote for an unparseable reply. It
// carries the first 200 bytes of the reply.
func ParseFailure(raw string) string {
	cut := raw
	if len(cut) > 200 {
		cut = cut[:200]
		for len(cut) > 0 && !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
	}
	return "Could not parse citation JSON. Raw: " + cut + "…"
}

type paragraph struct {
	text  string
	notes []models.Footnote
}

// Assembler collects cited paragraphs for a whole draft. Footnotes are
// numbered from 1 across all paragraphs.
type Assembler struct {
	next       int
	paragraphs []paragraph
	footnotes  []models.Footnote
	biblio     map[string]string
}

func NewAssembler() *Assembler {
	return &Assembler{next: 1, biblio: make(map[string]string)}
}

func (a *Assembler) addNote(p *paragraph, n Note) {
	fn := models.Footnote{Number: a.next, SourceID: n.SourceID, Text: n.Text}
	a.next++
	p.notes = append(p.notes, fn)
	a.footnotes = append(a.footnotes, fn)
}

// AddPlaceholder attaches a single placeholder footnote to para
func (a *Assembler) AddPlaceholder(para, text string) {
	p := paragraph{text: para}
	a.addNote(&p, Note{Text: text})
	a.paragraphs = append(a.paragraphs, p)
}

// AddCited attaches the footnotes of resp to para and records its
// bibliography entries. A reply with no footnotes gets a placeholder.
func (a *Assembler) AddCited(para string, resp *CitationResponse) {
	if resp == nil || len(resp.Footnotes) == 0 {
		a.AddPlaceholder(para, NoMatchingSource)
	} else {
		p := paragraph{text: para}
		for _, n := range resp.Footnotes {
			a.addNote(&p, n)
		}
		a.paragraphs = append(a.paragraphs, p)
	}
	if resp != nil {
		for _, b := range resp.Bibliography {
			a.AddBibliography(b)
		}
	}
}

// AddBibliography records an entry keyed by source id, or by text hash when
// the id is missing. A later entry for the same key replaces the earlier one.
func (a *Assembler) AddBibliography(n Note) {
	text := strings.TrimSpace(n.Text)
	if text == "" {
		return
	}
	a.biblio[bibKey(n.SourceID, text)] = text
}

func bibKey(sid *int64, text string) string {
	if sid != nil {
		return fmt.Sprintf("sid:%d", *sid)
	}
	sum := md5.Sum([]byte(text))
	return "txt:" + hex.EncodeToString(sum[:])
}

// Footnotes returns every footnote in number order
func (a *Assembler) Footnotes() []models.Footnote {
	return a.footnotes
}

// Bibliography returns the distinct entries in natural, case-insensitive order
func (a *Assembler) Bibliography() []string {
	seen := make(map[string]bool, len(a.biblio))
	entries := make([]string, 0, len(a.biblio))
	for _, text := range a.biblio {
		if !seen[text] {
			seen[text] = true
			entries = append(entries, text)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return naturalLess(entries[i], entries[j]) })
	return entries
}

// Render emits each paragraph with its markers and notes, then the bibliography
func (a *Assembler) Render() string {
	var b strings.Builder
	for _, p := range a.paragraphs {
		b.WriteString(p.text)
		b.WriteString(" ")
		for _, n := range p.notes {
			fmt.Fprintf(&b, "[^%d]", n.Number)
		}
		b.WriteString("\n\n")
		for _, n := range p.notes {
			fmt.Fprintf(&b, "[^%d]: %s\n", n.Number, n.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Bibliography\n")
	bib := a.Bibliography()
	if len(bib) == 0 {
		b.WriteString(NoSourcesReferenced + "\n")
	}
	for _, entry := range bib {
		b.WriteString("- " + entry + "\n")
	}
	return b.String()
}

// Result packages the rendered draft
func (a *Assembler) Result() *models.CitationResult {
	return &models.CitationResult{
		Markdown:     a.Render(),
		Footnotes:    a.Footnotes(),
		Bibliography: a.Bibliography(),
	}
}

// naturalLess compares case-insensitively, treating digit runs as numbers
func naturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}
	return a < b
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
