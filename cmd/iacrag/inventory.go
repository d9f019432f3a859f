package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"iacrag/internal/corpus"
	"iacrag/internal/domain"
	"iacrag/internal/inventory"
)

var inventoryType string

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Summarise the Terraform objects declared in the corpus",
	Args:  cobra.NoArgs,
	RunE:  runInventory,
}

func init() {
	inventoryCmd.Flags().StringVar(&inventoryType, "type", "", "list resources of this type with their attributes")
	rootCmd.AddCommand(inventoryCmd)
}

func runInventory(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	var tf []domain.Document
	for _, d := range a.docs {
		if d.Metadata[domain.MetaFileType] == corpus.FileTypeTerraform {
			tf = append(tf, d)
		}
	}

	out := cmd.OutOrStdout()
	if inventoryType != "" {
		resources := inventory.Details(tf, inventoryType)
		if len(resources) == 0 {
			fmt.Fprintf(out, "No resources of type %s\n", inventoryType)
			return nil
		}
		for _, r := range resources {
			fmt.Fprintf(out, "%s (%s)\n", r.Key(), r.SourceFile)
			if len(r.Properties) > 0 {
				fmt.Fprintf(out, "  %s\n", strings.Join(r.Properties, ", "))
			}
		}
		return nil
	}

	s := inventory.Summarize(tf)
	fmt.Fprintf(out, "Terraform files: %d\n", s.TotalFiles)
	fmt.Fprintln(out, "Resources:")
	for _, t := range s.Types() {
		fmt.Fprintf(out, "  %s: %s\n", t, strings.Join(s.ResourceTypes[t], ", "))
	}
	fmt.Fprintf(out, "Variables: %s\n", strings.Join(s.Variables, ", "))
	fmt.Fprintf(out, "Outputs:   %s\n", strings.Join(s.Outputs, ", "))
	fmt.Fprintf(out, "Providers: %s\n", strings.Join(s.Providers, ", "))
	return nil
}
