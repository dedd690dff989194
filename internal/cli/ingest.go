package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/research-library/internal/operations"
	"github.com/Epistemic-Technology/research-library/models"
)

var (
	ingestZoteroID string
	ingestURL      string
	ingestTitle    string
	ingestAuthor   string
	ingestYear     int
	ingestOffset   int
	ingestForce    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest a PDF or EPUB into the library",
	Long: `Extracts page text, labels printed pages, chunks, embeds and stores a document.
The source is a local path, or --zotero-id / --url.

Examples:
  research ingest walden.pdf --author "Henry David Thoreau" --year 1854
  research ingest --zotero-id ABCD1234`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestZoteroID, "zotero-id", "", "Zotero attachment or item key")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "document URL")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "item title (default from metadata or filename)")
	ingestCmd.Flags().StringVar(&ingestAuthor, "author", "", "item author")
	ingestCmd.Flags().IntVar(&ingestYear, "year", 0, "publication year")
	ingestCmd.Flags().IntVar(&ingestOffset, "display-offset", 0, "printed page = PDF page + offset")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-ingest a document already in the library")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	source := models.SourceInfo{ZoteroID: ingestZoteroID, URL: ingestURL}
	if len(args) == 1 {
		source.Path = args[0]
	}
	if source.Path == "" && source.ZoteroID == "" && source.URL == "" {
		return fmt.Errorf("a path, --zotero-id or --url is required")
	}

	return withLibrary(cmd, func(lib *operations.Library) error {
		result, err := lib.Ingest(cmd.Context(), operations.IngestParams{
			Source:        source,
			Title:         ingestTitle,
			Author:        ingestAuthor,
			Year:          ingestYear,
			DisplayOffset: ingestOffset,
			Force:         ingestForce,
			Progress: func(line string) {
				if !jsonOutput {
					cmd.Println(line)
				}
			},
		})
		if err != nil {
			if result != nil && result.ItemID > 0 {
				return fmt.Errorf("ingest of item %d stopped after %d of %d chunks: %w", result.ItemID, result.Embedded, result.Chunks, err)
			}
			return err
		}
		if jsonOutput {
			return printJSON(cmd, result)
		}
		return nil
	})
}
