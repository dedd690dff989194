package documents

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Epistemic-Technology/research-library/internal/pagelabels"
)

// labelRange is one /PageLabels number tree entry
type labelRange struct {
	start  int // 0-based page index
	style  string
	prefix string
	first  int
}

// NativeLabels reads the /PageLabels number tree from the PDF catalog and
// returns one label per physical page. It returns nil when the document
// defines no labels.
func NativeLabels(path string) ([]string, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	catalog, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF catalog: %w", err)
	}
	root, found := catalog.Find("PageLabels")
	if !found {
		return nil, nil
	}

	var ranges []labelRange
	if err := collectLabelRanges(ctx, root, &ranges, 0); err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, nil
	}
	return formatLabelRanges(ranges, ctx.PageCount), nil
}

func collectLabelRanges(ctx *model.Context, obj types.Object, out *[]labelRange, depth int) error {
	if depth > 32 {
		return fmt.Errorf("page label tree too deep")
	}
	node, err := ctx.DereferenceDict(obj)
	if err != nil {
		return fmt.Errorf("failed to read page label node: %w", err)
	}
	if node == nil {
		return nil
	}

	if kidsObj, ok := node.Find("Kids"); ok {
		kids, err := ctx.DereferenceArray(kidsObj)
		if err != nil {
			return fmt.Errorf("failed to read page label kids: %w", err)
		}
		for _, kid := range kids {
			if err := collectLabelRanges(ctx, kid, out, depth+1); err != nil {
				return err
			}
		}
	}

	numsObj, ok := node.Find("Nums")
	if !ok {
		return nil
	}
	nums, err := ctx.DereferenceArray(numsObj)
	if err != nil {
		return fmt.Errorf("failed to read page label nums: %w", err)
	}
	for i := 0; i+1 < len(nums); i += 2 {
		keyObj, err := ctx.Dereference(nums[i])
		if err != nil {
			return err
		}
		key, ok := keyObj.(types.Integer)
		if !ok {
			continue
		}
		dict, err := ctx.DereferenceDict(nums[i+1])
		if err != nil || dict == nil {
			continue
		}
		r := labelRange{start: int(key), first: 1}
		if s, ok := dict.Find("S"); ok {
			if name, ok := s.(types.Name); ok {
				r.style = string(name)
			}
		}
		if p, ok := dict.Find("P"); ok {
			r.prefix = pdfString(ctx, p)
		}
		if st, ok := dict.Find("St"); ok {
			if v, err := ctx.Dereference(st); err == nil {
				if n, ok := v.(types.Integer); ok && int(n) >= 1 {
					r.first = int(n)
				}
			}
		}
		*out = append(*out, r)
	}
	return nil
}

func pdfString(ctx *model.Context, obj types.Object) string {
	v, err := ctx.Dereference(obj)
	if err != nil {
		return ""
	}
	switch s := v.(type) {
	case types.StringLiteral:
		if str, err := types.StringLiteralToString(s); err == nil {
			return str
		}
		return string(s)
	case types.HexLiteral:
		if str, err := types.HexLiteralToString(s); err == nil {
			return str
		}
	}
	return ""
}

// formatLabelRanges expands number tree ranges into per-page labels
func formatLabelRanges(ranges []labelRange, pageCount int) []string {
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	labels := make([]string, pageCount)
	for i, r := range ranges {
		end := pageCount
		if i+1 < len(ranges) && ranges[i+1].start < end {
			end = ranges[i+1].start
		}
		for idx := max(r.start, 0); idx < end; idx++ {
			labels[idx] = r.prefix + formatLabelNumber(r.style, r.first+idx-r.start)
		}
	}
	return labels
}

func formatLabelNumber(style string, n int) string {
	switch style {
	case "D":
		return strconv.Itoa(n)
	case "R":
		return pagelabels.IntToRoman(n, false)
	case "r":
		return pagelabels.IntToRoman(n, true)
	case "A":
		return alphaLabel(n, false)
	case "a":
		return alphaLabel(n, true)
	default:
		return ""
	}
}

// alphaLabel gives A..Z, then AA..ZZ, and so on
func alphaLabel(n int, lower bool) string {
	if n < 1 {
		return ""
	}
	base := byte('A')
	if lower {
		base = 'a'
	}
	letter := string(rune(base + byte((n-1)%26)))
	return strings.Repeat(letter, (n-1)/26+1)
}
