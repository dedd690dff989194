package citations

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var paragraphBreak = regexp.MustCompile(`(?:\r\n|\r|\n){2,}`)

// SplitParagraphs splits a draft on blank lines, dropping empty paragraphs
func SplitParagraphs(draft string) []string {
	var paras []string
	for _, p := range paragraphBreak.Split(strings.TrimSpace(draft), -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// Note is one footnote or bibliography entry returned by the generator
type Note struct {
	SourceID *int64
	Text     string
}

// CitationResponse is the structured reply for one paragraph
type CitationResponse struct {
	Footnotes    []Note
	Bibliography []Note
}

// ErrNoCitationJSON is returned when a reply holds no object with footnotes
var ErrNoCitationJSON = errors.New("no citation JSON object in response")

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseCitationJSON extracts the citation object from a generator reply.
// Code fences and prose around the object are ignored. Entries with empty
// text are dropped.
func ParseCitationJSON(raw string) (*CitationResponse, error) {
	body := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}
	if !gjson.Valid(body) {
		start := strings.IndexByte(body, '{')
		end := strings.LastIndexByte(body, '}')
		if start < 0 || end <= start {
			return nil, ErrNoCitationJSON
		}
		body = body[start : end+1]
		if !gjson.Valid(body) {
			return nil, ErrNoCitationJSON
		}
	}

	doc := gjson.Parse(body)
	footnotes := doc.Get("footnotes")
	if !doc.IsObject() || !footnotes.Exists() {
		return nil, ErrNoCitationJSON
	}

	return &CitationResponse{
		Footnotes:    parseNotes(footnotes),
		Bibliography: parseNotes(doc.Get("bibliography")),
	}, nil
}

func parseNotes(arr gjson.Result) []Note {
	if !arr.IsArray() {
		return nil
	}
	var notes []Note
	arr.ForEach(func(_, value gjson.Result) bool {
		text := value.Get("text")
		if text.Type != gjson.String {
			return true
		}
		t := strings.TrimSpace(text.String())
		if t == "" {
			return true
		}
		notes = append(notes, Note{SourceID: sourceID(value.Get("source_id")), Text: t})
		return true
	})
	return notes
}

// sourceID accepts numeric and numeric-string ids
func sourceID(v gjson.Result) *int64 {
	var id int64
	switch v.Type {
	case gjson.Number:
		id = v.Int()
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return nil
		}
		id = n
	default:
		return nil
	}
	return &id
}
