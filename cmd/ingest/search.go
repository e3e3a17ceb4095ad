package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"policy-manual-ai/internal/rag"
)

var (
	searchLimit  int
	searchWeight float64
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [question]",
	Short: "Run a hybrid retrieval and show the ranked passages",
	Long: `Runs the same hybrid query the API issues for a question and prints the
candidates with their fused, semantic and lexical scores. No answer is
generated.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", rag.MaxCandidates, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchWeight, "semantic-weight", rag.DefaultSemanticWeight, "weight of the semantic score in [0,1]")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	index := rag.NewIndex(st.embedder, st.vectors, st.lexical, st.passages, cfg.QdrantCollection)

	q := rag.NewHybridQuery(args[0])
	q.Limit = searchLimit
	if searchWeight < 0 || searchWeight > 1 {
		return fmt.Errorf("semantic weight must be in [0,1], got %v", searchWeight)
	}
	q.SemanticWeight = searchWeight

	chunks, err := index.Query(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, chunks)
	}

	out := cmd.OutOrStdout()
	if len(chunks) == 0 {
		_, _ = fmt.Fprintln(out, "No results.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tSEM\tLEX\tRELEVANT\tSOURCE\tSECTION")
	for _, c := range chunks {
		relevant := ""
		if c.RelevanceScore.Float64() > rag.RelevanceThreshold {
			relevant = "yes"
		}
		section := c.SectionHeader
		if c.SubsectionHeader != nil && *c.SubsectionHeader != "" {
			section += " > " + *c.SubsectionHeader
		}
		_, _ = fmt.Fprintf(w, "%.3f\t%.3f\t%.3f\t%s\t%s\t%s\n",
			c.RelevanceScore.Float64(), c.SemanticScore, c.LexicalScore, relevant, c.Label(), section)
	}
	return w.Flush()
}
