package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/adcommander/adcmdr-tools/client"
)

func newImportCmd() *cobra.Command {
	var (
		types  []string
		status string
	)

	cmd := &cobra.Command{
		Use:   "import <bundle.zip>",
		Short: "Upload a bundle and import the selected entity types",
		Long: `Upload a bundle exported by another site. Group, ad and placement ids are
remapped to the new ids on this site; statistics follow their ads.

With --status draft (the default) every imported post is saved as a draft
with fresh dates. With --status match the exported status and dates are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "draft" && status != "match" {
				return fmt.Errorf("--status must be draft or match, got %q", status)
			}

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening bundle: %w", err)
			}
			defer f.Close()

			report, err := apiClient.Bundles.Import(cmd.Context(), filepath.Base(path), f, types, status)
			if client.IsConflict(err) {
				return fmt.Errorf("another import is running on the server; try again later")
			}
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			notice(report.Notice)
			for _, w := range report.Warnings {
				notice("warning: " + w)
			}

			output(report, report.ImportID, func() {
				rows := make([][]string, 0, len(report.Types))
				for _, t := range report.Types {
					c, ok := report.Entities[t]
					if !ok {
						continue
					}
					rows = append(rows, []string{
						t.String(), strconv.Itoa(c.Created), strconv.Itoa(c.Skipped), strconv.Itoa(c.Failed),
					})
				}
				formatTable([]string{"ENTITY", "CREATED", "SKIPPED", "FAILED"}, rows)
			})

			if report.Result == "fail" {
				return fmt.Errorf("no rows were imported")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&types, "types", "t", []string{"groups", "ads", "placements", "stats"}, "Entity types to import")
	cmd.Flags().StringVar(&status, "status", "draft", "Post status policy: draft|match")

	return cmd
}
