package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"iacrag/internal/domain"
)

var queryK int

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Retrieve the context most relevant to a question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "k", "k", 0, "number of chunks to retrieve (default retrieval.k)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if _, err := a.index(cmd.Context()); err != nil {
		return err
	}

	k := queryK
	if k == 0 {
		k = a.cfg.Retrieval.K
	}
	fc, err := a.retriever.Retrieve(cmd.Context(), strings.Join(args, " "), k)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	printContext(cmd.OutOrStdout(), fc)
	return nil
}

func printContext(w io.Writer, fc domain.FormattedContext) {
	if fc.Empty {
		fmt.Fprintf(w, "%s (%v)\n", fc.Text, fc.Reason)
		return
	}
	fmt.Fprintln(w, fc.Text)
	fmt.Fprintln(w)

	heading := color.New(color.FgGreen, color.Bold).SprintFunc()
	source := color.New(color.FgCyan, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintln(w, heading("Sources:"))
	for i, c := range fc.Citations {
		fmt.Fprintf(w, "  [%d] %s#%d %s %s\n", i+1, source(c.Source), c.ChunkIndex, c.Kind, faint(fmt.Sprintf("%.3f", c.Score)))
	}
}
