package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/pipeline"
)

var (
	batchInput       string
	batchOutput      string
	batchEnrich      bool
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Decode a file of VINs into a CSV report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}

		env, err := initPipeline(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		in, err := os.Open(batchInput)
		if err != nil {
			return eris.Wrap(err, "batch: open input")
		}
		defer in.Close() //nolint:errcheck

		vins, err := readVINs(in)
		if err != nil {
			return err
		}

		rows, err := processBatch(ctx, vins, cfg.Batch.Concurrency, batchEnrich, env.Service.Lookup)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if batchOutput != "" && batchOutput != "-" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrap(err, "batch: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeBatchCSV(out, rows)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "file with one VIN per line")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "CSV output path (default stdout)")
	batchCmd.Flags().BoolVar(&batchEnrich, "enrich", false, "fill missing fields with the generative backend")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "VINs resolved in parallel (default from config)")
	_ = batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// batchRow is one line of the batch report.
type batchRow struct {
	VIN          string `csv:"vin"`
	Status       string `csv:"status"`
	ErrorCode    string `csv:"error_code"`
	Provider     string `csv:"provider"`
	Score        int    `csv:"score"`
	DecodeScore  int    `csv:"decode_score"`
	Make         string `csv:"make"`
	Model        string `csv:"model"`
	Year         int    `csv:"year"`
	Trim         string `csv:"trim"`
	Engine       string `csv:"engine"`
	BodyType     string `csv:"body_type"`
	Transmission string `csv:"transmission"`
	Drivetrain   string `csv:"drivetrain"`
	FuelType     string `csv:"fuel_type"`
	Manufacturer string `csv:"manufacturer"`
	Enrichment   string `csv:"enrichment"`
}

// lookupFunc is the callback signature for resolving one VIN.
type lookupFunc func(ctx context.Context, vin string, enrich bool) (*pipeline.LookupResult, error)

// readVINs returns the non-blank lines of r. Lines starting with # are
// comments.
func readVINs(r io.Reader) ([]string, error) {
	var vins []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		vins = append(vins, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "batch: read input")
	}
	return vins, nil
}

// processBatch resolves vins concurrently. Rows keep input order; a failed
// VIN becomes an error row and never aborts the batch.
func processBatch(ctx context.Context, vins []string, concurrency int, enrich bool, lookup lookupFunc) ([]batchRow, error) {
	rows := make([]batchRow, len(vins))
	if len(vins) == 0 {
		zap.L().Info("no VINs to process")
		return rows, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("vins", len(vins)),
		zap.Int("concurrency", concurrency),
		zap.Bool("enrich", enrich),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, v := range vins {
		g.Go(func() error {
			res, err := lookup(gctx, v, enrich)
			if err != nil {
				failed.Add(1)
				rows[i] = errorRow(v, err)
				zap.L().Warn("batch: lookup failed", zap.String("vin", v), zap.Error(err))
				return nil
			}
			succeeded.Add(1)
			rows[i] = resultRow(v, res)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return rows, nil
}

func errorRow(v string, err error) batchRow {
	return batchRow{
		VIN:       v,
		Status:    "error",
		ErrorCode: apierr.KindOf(err).Code(),
	}
}

func resultRow(v string, res *pipeline.LookupResult) batchRow {
	veh := res.Vehicle
	return batchRow{
		VIN:          v,
		Status:       "ok",
		Provider:     veh.SourceProvider,
		Score:        res.Score,
		DecodeScore:  res.DecodeScore,
		Make:         veh.Make,
		Model:        veh.Model,
		Year:         veh.Year,
		Trim:         veh.Trim,
		Engine:       veh.Engine,
		BodyType:     veh.BodyType,
		Transmission: veh.Transmission,
		Drivetrain:   veh.Drivetrain,
		FuelType:     veh.FuelType,
		Manufacturer: veh.Manufacturer,
		Enrichment:   string(veh.Enrichment.Status),
	}
}

// writeBatchCSV writes rows with a header line.
func writeBatchCSV(w io.Writer, rows []batchRow) error {
	b, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "batch: marshal csv")
	}
	_, err = w.Write(b)
	return eris.Wrap(err, "batch: write csv")
}
