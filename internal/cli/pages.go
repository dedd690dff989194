package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/internal/pagelabels"
	"github.com/Epistemic-Technology/research-library/models"
)

var (
	pagesPage   int
	pagesNumber int
	pagesRule   pagelabels.RuleParams
	pagesApply  bool
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "View and correct printed page labels",
	Long: `Commands for the page map: the printed label of every physical PDF page,
which every citation's page range is derived from.`,
}

var pagesGetCmd = &cobra.Command{
	Use:   "get [item]",
	Short: "Show page labels of an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runPagesGet,
}

var pagesSetCmd = &cobra.Command{
	Use:   "set [item] [pdf-page] [label]",
	Short: "Set the printed label of one page",
	Args:  cobra.ExactArgs(3),
	RunE:  runPagesSet,
}

var pagesRuleCmd = &cobra.Command{
	Use:   "rule [item]",
	Short: "Apply a roman front matter / arabic body numbering rule",
	Long: `Labels PDF pages 1..--roman-until in roman numerals and pages from
--arabic-start onwards in arabic numerals. Pages outside both ranges keep
their labels.

Example:
  research pages rule 3 --roman-until 12 --arabic-start 13`,
	Args: cobra.ExactArgs(1),
	RunE: runPagesRule,
}

var pagesAutodetectCmd = &cobra.Command{
	Use:   "autodetect [item]",
	Short: "Detect the roman/arabic boundary from the page text",
	Long:  `Scans the opening pages for the boundary. Nothing is written without --apply.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPagesAutodetect,
}

var pagesOffsetCmd = &cobra.Command{
	Use:   "offset [item] [offset]",
	Short: "Set the fallback display offset of an item",
	Args:  cobra.ExactArgs(2),
	RunE:  runPagesOffset,
}

var pagesSeedCmd = &cobra.Command{
	Use:   "seed [item]",
	Short: "Seed an empty page map from the display offset",
	Args:  cobra.ExactArgs(1),
	RunE:  runPagesSeed,
}

func init() {
	pagesGetCmd.Flags().IntVarP(&pagesPage, "page", "p", 1, "page of the listing")

	pagesSetCmd.Flags().IntVar(&pagesNumber, "number", 0, "numeric value of the label (default parsed from an arabic label)")

	pagesRuleCmd.Flags().IntVar(&pagesRule.RomanUntilPDF, "roman-until", 0, "last PDF page numbered in roman (0 = none)")
	pagesRuleCmd.Flags().IntVar(&pagesRule.RomanStartAt, "roman-start", 1, "roman value of PDF page 1")
	pagesRuleCmd.Flags().BoolVar(&pagesRule.RomanUpper, "roman-upper", false, "upper case roman numerals")
	pagesRuleCmd.Flags().StringVar(&pagesRule.RomanPrefix, "roman-prefix", "", "prefix for roman labels")
	pagesRuleCmd.Flags().IntVar(&pagesRule.ArabicStartPDF, "arabic-start", 0, "first PDF page numbered in arabic")
	pagesRuleCmd.Flags().IntVar(&pagesRule.ArabicStartNumber, "arabic-number", 1, "arabic value of the first arabic page")
	pagesRuleCmd.Flags().StringVar(&pagesRule.ArabicPrefix, "arabic-prefix", "", "prefix for arabic labels")

	pagesAutodetectCmd.Flags().BoolVar(&pagesApply, "apply", false, "write the detected labels")

	pagesCmd.AddCommand(pagesGetCmd, pagesSetCmd, pagesRuleCmd, pagesAutodetectCmd, pagesOffsetCmd, pagesSeedCmd)
	rootCmd.AddCommand(pagesCmd)
}

func runPagesGet(cmd *cobra.Command, args []string) error {
	itemID, err := parseItemArg(args[0])
	if err != nil {
		return err
	}
	return withLibrary(cmd, func(lib *operations.Library) error {
		view, err := lib.PageLabels(cmd.Context(), itemID, pagesPage)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, view)
		}

		cmd.Printf("%s: page %d of %d (%d labelled pages)\n", view.Item.Title, view.Page, max(view.Pages, 1), view.Total)
		if view.Seeded > 0 {
			cmd.Printf("Seeded %d pages from display offset %d.\n", view.Seeded, view.Item.DisplayOffset)
		}
		for _, r := range view.Rows {
			cmd.Printf("  %4d  %-8s %-12s %.2f  %s\n", r.PDFPage, r.DisplayLabel, r.Method, r.Confidence, r.Snippet)
		}
		return nil
	})
}

func runPagesSet(cmd *cobra.Command, args []string) error {
	itemID, err := parseItemArg(args[0])
	if err != nil {
		return err
	}
	var pdfPage int
	if _, err := fmt.Sscan(args[1], &pdfPage); err != nil {
		return fmt.Errorf("invalid PDF page %q", args[1])
	}

	var number *int
	if cmd.Flags().Changed("number") {
		number = &pagesNumber
	}
	return withLibrary(cmd, func(lib *operations.Library) error {
		result, err := lib.UpdateOne(cmd.Context(), itemID, pdfPage, args[2], number)
		if err != nil {
			return err
		}
		return printAdmin(cmd, result)
	})
}

func runPagesRule(cmd *cobra.Command, args []string) error {
	itemID, err := parseItemArg(args[0])
	if err != nil {
		return err
	}
	return withLibrary(cmd, func(lib *operations.Library) error {
		result, err := lib.BulkRule(cmd.Context(), itemID, pagesRule)
		if err != nil {
			return err
		}
		return printAdmin(cmd, result)
	})
}

func runPagesAutodetect(cmd *cobra.Command, args []string) error {
	itemID, err := parseItemArg(args[0])
	if err != nil {
		return err
	}
	return withLibrary(cmd, func(lib *operations.Library) error {
		result, err := lib.Autodetect(cmd.Context(), itemID, pagesApply)
		if err != nil {
			return err
		}
		return printAdmin(cmd, result)
	})
}

func runPagesOffset(cmd *cobra.Command, args []string) error {
	itemID, err := parseItemArg(args[0])
	if err != nil {
		return err
	}
	var offset int
	if _, err := fmt.Sscan(args[1], &offset); err != nil {
		return fmt.Errorf("invalid offset %q", args[1])
	}
	return withLibrary(cmd, func(lib *operations.Library) error {
		result, err := lib.SetOffset(cmd.Context(), itemID, offset)
		if err != nil {
			return err
		}
		return printAdmin(cmd, result)
	})
}

func runPagesSeed(cmd *cobra.Command, args []string) error {
	itemID, err := parseItemArg(args[0])
	if err != nil {
		return err
	}
	return withLibrary(cmd, func(lib *operations.Library) error {
		result, err := lib.SeedIfEmpty(cmd.Context(), itemID)
		if err != nil {
			return err
		}
		return printAdmin(cmd, result)
	})
}

func printAdmin(cmd *cobra.Command, result *models.AdminResult) error {
	if jsonOutput {
		return printJSON(cmd, result)
	}
	cmd.Println(result.Message)
	if result.Applied > 0 {
		cmd.Printf("Applied %d page labels.\n", result.Applied)
	}
	return nil
}
