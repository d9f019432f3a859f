package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	corpusDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "iacrag",
	Short: "Retrieve grounded context from infrastructure-as-code files",
	Long: `iacrag indexes Terraform/HCL files and notes from a directory and
retrieves the chunks most relevant to a question, grouped by source and
ready to be placed into a model prompt.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./iacrag.yaml or ~/.config/iacrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&corpusDir, "dir", "", "corpus directory (overrides corpus.dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
