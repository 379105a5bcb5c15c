package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		types        []string
		includeStats bool
		downloadDir  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a bundle of groups, ads, placements and stats",
		Long: `Ask the server to export the selected entity types into a zip bundle in
its export directory. Use --download to also fetch the bundle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(types) == 0 && !includeStats {
				return fmt.Errorf("select at least one of --types or --stats")
			}

			ctx := cmd.Context()

			report, err := apiClient.Bundles.Export(ctx, types, includeStats)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			notice(report.Notice)

			if downloadDir != "" {
				path := filepath.Join(downloadDir, report.Bundle)
				if err := downloadTo(cmd, report.Bundle, path); err != nil {
					return err
				}
				notice("Saved " + path)
			}

			output(report, report.Bundle, func() {
				rows := make([][]string, 0, len(report.Rows))
				for t, n := range report.Rows {
					rows = append(rows, []string{t.String(), strconv.Itoa(n)})
				}
				formatTable([]string{"ENTITY", "ROWS"}, rows)
			})

			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&types, "types", "t", []string{"groups", "ads", "placements"}, "Entity types to export")
	cmd.Flags().BoolVar(&includeStats, "stats", false, "Include impression and click statistics")
	cmd.Flags().StringVarP(&downloadDir, "download", "d", "", "Directory to download the bundle into")

	return cmd
}

// downloadTo fetches bundle name into path.
func downloadTo(cmd *cobra.Command, name, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if _, err := apiClient.Bundles.Download(cmd.Context(), name, f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
