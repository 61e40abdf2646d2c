package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/pipeline"
	"github.com/sells-group/motolens/internal/scorer"
)

// lookupView is the rendered form of a lookup shared by decode and serve.
type lookupView struct {
	Vehicle     *model.Vehicle    `json:"vehicle" yaml:"vehicle"`
	Score       int               `json:"score" yaml:"score"`
	DecodeScore int               `json:"decodeScore" yaml:"decodeScore"`
	Breakdown   *scorer.Breakdown `json:"breakdown,omitempty" yaml:"breakdown,omitempty"`
	Attempts    []attemptView     `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// attemptView is one provider attempt with its error reduced to a code.
type attemptView struct {
	Provider   string `json:"provider" yaml:"provider"`
	Score      int    `json:"score" yaml:"score"`
	Skipped    bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	ErrorCode  string `json:"errorCode,omitempty" yaml:"errorCode,omitempty"`
	DurationMs int64  `json:"durationMs" yaml:"durationMs"`
}

func newLookupView(res *pipeline.LookupResult, explain bool) lookupView {
	view := lookupView{
		Vehicle:     res.Vehicle,
		Score:       res.Score,
		DecodeScore: res.DecodeScore,
	}
	if explain {
		b := res.Breakdown
		view.Breakdown = &b
		view.Attempts = attemptViews(res.Attempts)
	}
	return view
}

func attemptViews(attempts []model.ProviderResult) []attemptView {
	out := make([]attemptView, 0, len(attempts))
	for _, a := range attempts {
		av := attemptView{
			Provider:   a.Provider,
			Score:      a.Score,
			Skipped:    a.Skipped,
			DurationMs: a.Duration.Milliseconds(),
		}
		if a.Err != nil {
			av.ErrorCode = apierr.KindOf(a.Err).Code()
		}
		out = append(out, av)
	}
	return out
}

// writeFormatted encodes v to w as "json" or "yaml".
func writeFormatted(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "encode yaml")
	default:
		return eris.Errorf("unsupported format %q (want json or yaml)", format)
	}
}
