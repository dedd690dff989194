package cli

import (
	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/research-library/internal/operations"
)

var (
	zoteroTypes      []string
	zoteroCollection string
	zoteroLimit      int
)

var zoteroCmd = &cobra.Command{
	Use:   "zotero",
	Short: "Find ingestable sources in a Zotero library",
}

var zoteroSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search Zotero for items with PDF or EPUB attachments",
	Args:  cobra.ExactArgs(1),
	RunE:  runZoteroSearch,
}

var zoteroCollectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List Zotero collections",
	Args:  cobra.NoArgs,
	RunE:  runZoteroCollections,
}

func init() {
	zoteroSearchCmd.Flags().StringSliceVar(&zoteroTypes, "type", nil, "restrict to these Zotero item types")
	zoteroSearchCmd.Flags().StringVar(&zoteroCollection, "collection", "", "collection key")
	zoteroSearchCmd.Flags().IntVarP(&zoteroLimit, "limit", "n", 25, "maximum number of items")

	zoteroCmd.AddCommand(zoteroSearchCmd, zoteroCollectionsCmd)
	rootCmd.AddCommand(zoteroCmd)
}

func runZoteroSearch(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, func(lib *operations.Library) error {
		sources, err := lib.SearchZotero(cmd.Context(), operations.ZoteroSearchParams{
			Query:      args[0],
			ItemTypes:  zoteroTypes,
			Collection: zoteroCollection,
			Limit:      zoteroLimit,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, sources)
		}
		if len(sources) == 0 {
			cmd.Println("No results found.")
			return nil
		}
		for _, s := range sources {
			cmd.Printf("  %s  %s", s.Key, s.Title)
			if s.Author != "" {
				cmd.Printf(" - %s", s.Author)
			}
			cmd.Println()
			for _, a := range s.Attachments {
				cmd.Printf("      --zotero-id %s  %s (%s)\n", a.Key, a.Filename, a.ContentType)
			}
		}
		return nil
	})
}

func runZoteroCollections(cmd *cobra.Command, _ []string) error {
	return withLibrary(cmd, func(lib *operations.Library) error {
		collections, err := lib.ZoteroCollections(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, collections)
		}
		for _, c := range collections {
			cmd.Printf("  %s  %s\n", c.Key, c.Name)
		}
		return nil
	})
}
