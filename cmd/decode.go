package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/motolens/internal/apierr"
)

var (
	decodeEnrich  bool
	decodeExplain bool
	decodeFormat  string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <vin>",
	Short: "Decode a single VIN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "decode")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.Lookup(ctx, args[0], decodeEnrich)
		if err != nil {
			if decodeExplain {
				_ = writeFormatted(cmd.ErrOrStderr(), decodeFormat, attemptViews(res.Attempts))
			}
			return fmt.Errorf("%s: %w", apierr.KindOf(err).Code(), err)
		}

		return writeFormatted(cmd.OutOrStdout(), decodeFormat, newLookupView(res, decodeExplain))
	},
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeEnrich, "enrich", false, "fill missing fields with the generative backend")
	decodeCmd.Flags().BoolVar(&decodeExplain, "explain", false, "include the score breakdown and provider attempts")
	decodeCmd.Flags().StringVar(&decodeFormat, "format", "json", "output format: json or yaml")
	rootCmd.AddCommand(decodeCmd)
}
