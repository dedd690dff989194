package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/research-library/internal/operations"
)

var (
	askItems     []int64
	askMaxChunks int
	askCap       int
	askDistinct  int
	askProvider  string
	askModel     string

	citeItems    []int64
	citeMax      int
	citeProvider string
	citeModel    string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the library",
	Long: `Retrieves a diversity-constrained set of passages and answers from them only,
citing sources with page-accurate references. Prints the not-answerable
message when the library holds nothing close enough.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var citeCmd = &cobra.Command{
	Use:   "cite [draft.md]",
	Short: "Footnote a markdown draft from the library",
	Long: `Adds footnotes with page-accurate citations to every paragraph of a draft
and appends a bibliography. Reads the draft from stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCite,
}

func init() {
	askCmd.Flags().Int64SliceVar(&askItems, "item", nil, "restrict retrieval to these item IDs")
	askCmd.Flags().IntVarP(&askMaxChunks, "max-chunks", "n", 0, "maximum passages handed to the model")
	askCmd.Flags().IntVar(&askCap, "per-source-cap", 0, "maximum passages per item")
	askCmd.Flags().IntVar(&askDistinct, "min-distinct", 0, "minimum distinct items when available")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "generation provider (claude or openai)")
	askCmd.Flags().StringVar(&askModel, "model", "", "override the provider's model")
	rootCmd.AddCommand(askCmd)

	citeCmd.Flags().Int64SliceVar(&citeItems, "item", nil, "restrict retrieval to these item IDs")
	citeCmd.Flags().IntVarP(&citeMax, "max-chunks", "n", 0, "passages retrieved per paragraph")
	citeCmd.Flags().StringVar(&citeProvider, "provider", "", "generation provider (claude or openai)")
	citeCmd.Flags().StringVar(&citeModel, "model", "", "override the provider's model")
	rootCmd.AddCommand(citeCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withLibrary(cmd, func(lib *operations.Library) error {
		result, err := lib.Ask(cmd.Context(), operations.AskParams{
			Question:     strings.Join(args, " "),
			ItemIDs:      askItems,
			MaxChunks:    askMaxChunks,
			PerSourceCap: askCap,
			MinDistinct:  askDistinct,
			Provider:     askProvider,
			Model:        askModel,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, result)
		}

		cmd.Println(result.Answer)
		if len(result.Sources) > 0 {
			cmd.Println()
			cmd.Println("Sources:")
			for i, s := range result.Sources {
				cmd.Printf("  [CTX %d] %s (%.3f)\n", i, s.Citation, s.Similarity)
			}
		}
		return nil
	})
}

func runCite(cmd *cobra.Command, args []string) error {
	var (
		draft []byte
		err   error
	)
	if len(args) == 1 {
		draft, err = os.ReadFile(args[0])
	} else {
		draft, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read draft: %w", err)
	}

	return withLibrary(cmd, func(lib *operations.Library) error {
		result, err := lib.Cite(cmd.Context(), operations.CiteParams{
			Draft:     string(draft),
			ItemIDs:   citeItems,
			MaxChunks: citeMax,
			Provider:  citeProvider,
			Model:     citeModel,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, result)
		}
		cmd.Println(result.Markdown)
		return nil
	})
}
