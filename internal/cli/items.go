package cli

import (
	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/research-library/internal/operations"
)

var (
	searchItems []int64
	searchLimit int
	verifyN     int
	verifyPDF   string
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List library items",
	Args:  cobra.NoArgs,
	RunE:  runItems,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [item]",
	Short: "Delete an item with its chunks and page map",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search of chunk text",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [item]",
	Short: "Sample chunks and compare them with the PDF pages they cite",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	searchCmd.Flags().Int64SliceVar(&searchItems, "item", nil, "restrict the search to these item IDs")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of results")

	verifyCmd.Flags().IntVarP(&verifyN, "samples", "n", 5, "number of chunks to sample")
	verifyCmd.Flags().StringVar(&verifyPDF, "pdf", "", "copy of the source PDF (default the stored source path)")

	rootCmd.AddCommand(itemsCmd, deleteCmd, searchCmd, verifyCmd)
}

func runItems(cmd *cobra.Command, _ []string) error {
	return withLibrary(cmd, func(lib *operations.Library) error {
		items, err := lib.ListItems(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, items)
		}
		if len(items) == 0 {
			cmd.Println("No items.")
			return nil
		}
		for _, s := range items {
			cmd.Printf("  [%d] %s", s.Item.ID, s.Item.Title)
			if s.Item.Author != "" {
				cmd.Printf(" - %s", s.Item.Author)
			}
			if s.Item.Year > 0 {
				cmd.Printf(" (%d)", s.Item.Year)
			}
			cmd.Printf("  chunks=%d labelled=%d pages=%d\n", s.ChunkCount, s.PageMapCount, s.MaxPage)
		}
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	itemID, err := parseItemArg(args[0])
	if err != nil {
		return err
	}
	return withLibrary(cmd, func(lib *operations.Library) error {
		if err := lib.DeleteItem(cmd.Context(), itemID); err != nil {
			return err
		}
		cmd.Printf("Deleted item %d.\n", itemID)
		return nil
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, func(lib *operations.Library) error {
		hits, err := lib.Search(cmd.Context(), args[0], searchItems, searchLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, hits)
		}
		if len(hits) == 0 {
			cmd.Println("No results found.")
			return nil
		}
		for _, h := range hits {
			cmd.Printf("  [%d] %s pp.%d–%d\n", h.ItemID, h.Title, h.PageStart, h.PageEnd)
			cmd.Printf("      %s\n", h.Snippet)
		}
		return nil
	})
}

func runVerify(cmd *cobra.Command, args []string) error {
	itemID, err := parseItemArg(args[0])
	if err != nil {
		return err
	}
	return withLibrary(cmd, func(lib *operations.Library) error {
		samples, err := lib.Verify(cmd.Context(), operations.VerifyParams{ItemID: itemID, N: verifyN, PDFPath: verifyPDF})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, samples)
		}
		for _, s := range samples {
			cmd.Printf("Chunk %d: PDF pp.%d–%d, printed %s–%s\n", s.ChunkID, s.PageStart, s.PageEnd, s.DisplayStart, s.DisplayEnd)
			cmd.Printf("  chunk: %s\n", s.ChunkSnippet)
			if s.PDFSnippet != "" {
				cmd.Printf("  pdf:   %s\n", s.PDFSnippet)
			}
		}
		return nil
	})
}
