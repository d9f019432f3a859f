package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"iacrag/internal/tui"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Index the corpus and open an interactive retrieval shell",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	handle, err := a.index(cmd.Context())
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("%d document(s), %d chunk(s), %s from %s",
		handle.Documents, handle.Chunks, handle.Embedder, a.cfg.Corpus.Dir)

	m := tui.New(a.retriever, a.cfg.Retrieval.K, summary)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
