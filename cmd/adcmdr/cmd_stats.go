package main

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

var errNotConfirmed = errors.New("refusing to delete statistics without --yes")

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Find and delete impression and click statistics",
	}

	cmd.AddCommand(newStatsRogueCmd())
	cmd.AddCommand(newStatsDeleteCmd("delete-rogue", "Delete statistics of ads that no longer exist", cobra.NoArgs,
		func(cmd *cobra.Command, _ []string) (*models.DeleteStatsResult, error) {
			return apiClient.Stats.DeleteRogue(cmd.Context(), true)
		}))
	cmd.AddCommand(newStatsDeleteCmd("delete-all", "Delete every statistics row", cobra.NoArgs,
		func(cmd *cobra.Command, _ []string) (*models.DeleteStatsResult, error) {
			return apiClient.Stats.DeleteAll(cmd.Context(), true)
		}))
	cmd.AddCommand(newStatsDeleteCmd("delete-ad <ad-id>", "Delete the statistics of one ad", cobra.ExactArgs(1),
		func(cmd *cobra.Command, args []string) (*models.DeleteStatsResult, error) {
			adID, err := parseAdID(args[0])
			if err != nil {
				return nil, err
			}
			return apiClient.Stats.DeleteForAd(cmd.Context(), adID, true)
		}))

	return cmd
}

func parseAdID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("ad id must be a positive integer, got %q", s)
	}
	return id, nil
}

func newStatsRogueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rogue",
		Short: "List statistics rows whose ad no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := apiClient.Stats.Rogue(cmd.Context())
			if err != nil {
				return fmt.Errorf("rogue stats failed: %w", err)
			}

			output(report, strconv.Itoa(report.Total), func() {
				rows := make([][]string, 0, report.Total)
				for _, s := range slices.Concat(report.Impressions, report.Clicks) {
					rows = append(rows, []string{
						string(s.Kind), strconv.FormatInt(s.AdID, 10),
						s.Timestamp.Format(time.DateTime), strconv.FormatInt(s.Count, 10),
					})
				}
				formatTable([]string{"TYPE", "AD", "TIMESTAMP", "COUNT"}, rows)
			})
			return nil
		},
	}
}

// newStatsDeleteCmd builds a destructive stats command that runs only with
// --yes.
func newStatsDeleteCmd(use, short string, args cobra.PositionalArgs,
	run func(*cobra.Command, []string) (*models.DeleteStatsResult, error),
) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}

			res, err := run(cmd, args)
			if err != nil {
				return fmt.Errorf("%s failed: %w", cmd.Name(), err)
			}

			notice(fmt.Sprintf("Deleted %d impression and %d click rows.", res.Impressions, res.Clicks))
			output(res, strconv.FormatInt(res.Impressions+res.Clicks, 10), nil)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")

	return cmd
}
