package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newBundlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "List, download and delete bundles on the server",
	}

	cmd.AddCommand(newBundlesListCmd())
	cmd.AddCommand(newBundlesDownloadCmd())
	cmd.AddCommand(newBundlesDeleteCmd())

	return cmd
}

func newBundlesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bundles in the export directory, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := apiClient.Bundles.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}

			names := ""
			rows := make([][]string, 0, len(list))
			for i, b := range list {
				if i > 0 {
					names += "\n"
				}
				names += b.Name
				rows = append(rows, []string{b.Name, strconv.FormatInt(b.Size, 10), b.ModTime.Local().Format(time.DateTime)})
			}

			output(list, names, func() {
				formatTable([]string{"NAME", "SIZE", "MODIFIED"}, rows)
			})
			return nil
		},
	}
}

func newBundlesDownloadCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if outputPath == "" {
				outputPath = name
			}

			if err := downloadTo(cmd, name, outputPath); err != nil {
				return err
			}

			notice("Saved " + outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: the bundle name)")

	return cmd
}

func newBundlesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a bundle from the export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Bundles.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}

			notice("Deleted " + args[0])
			return nil
		},
	}
}
