package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"iacrag/internal/retriever"
)

var indexNoProgress bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Chunk and embed the corpus and report the resulting index",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexNoProgress, "no-progress", false, "do not draw a progress bar")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	var bar *progressbar.ProgressBar
	var opts []retriever.Option
	if !indexNoProgress {
		opts = append(opts, retriever.WithProgress(func(done, total int) {
			if bar == nil {
				bar = newProgressBar(cmd, total)
			}
			_ = bar.Set(done)
		}))
	}

	a, err := loadApp(cmd, opts...)
	if err != nil {
		return err
	}
	handle, err := a.index(cmd.Context())
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d document(s) into %d chunk(s)\n", handle.Documents, handle.Chunks)
	fmt.Fprintf(out, "Embedder:    %s (dimension %d)\n", handle.Embedder, handle.Dimension)
	fmt.Fprintf(out, "Fingerprint: %s\n", handle.Fingerprint)
	return nil
}

func newProgressBar(cmd *cobra.Command, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("embedding"),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
