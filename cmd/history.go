package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded VIN lookups",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("history"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		vinFilter, _ := cmd.Flags().GetString("vin")
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		recs, err := st.ListLookups(ctx, store.LookupFilter{
			VIN:   strings.TrimSpace(vinFilter),
			Limit: limit,
		})
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if len(recs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No lookups found.")
			return nil
		}

		if format == "table" {
			formatLookups(cmd.OutOrStdout(), recs)
			return nil
		}
		return writeFormatted(cmd.OutOrStdout(), format, recs)
	},
}

func init() {
	historyCmd.Flags().String("vin", "", "only lookups of this VIN")
	historyCmd.Flags().Int("limit", store.DefaultListLimit, "max lookups to list")
	historyCmd.Flags().String("format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(historyCmd)
}

// formatLookups writes recs as an aligned table.
func formatLookups(w io.Writer, recs []model.LookupRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tVIN\tPROVIDER\tSCORE\tERROR\tATTEMPTS")
	for _, r := range recs {
		provider := r.Provider
		if provider == "" {
			provider = "-"
		}
		errCode := r.ErrorCode
		if errCode == "" {
			errCode = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.VIN,
			provider,
			r.Score,
			errCode,
			strings.Join(r.Attempts, ","),
		)
	}
	_ = tw.Flush()
}
