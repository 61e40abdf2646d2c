//go:build !integration

package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/pipeline"
	"github.com/sells-group/motolens/internal/scorer"
)

func sampleResult() *pipeline.LookupResult {
	veh := hondaAccord()
	veh.VIN = hondaVIN
	return &pipeline.LookupResult{
		Vehicle:     veh,
		DecodeScore: 75,
		Score:       75,
		Breakdown:   scorer.Explain(veh),
		Attempts: []model.ProviderResult{
			{Provider: "autodev", Skipped: true, Err: apierr.New(apierr.CredentialsMissing, "autodev", "")},
			{Provider: "nhtsa", Score: 75, Duration: 120 * time.Millisecond},
		},
	}
}

func TestNewLookupView(t *testing.T) {
	plain := newLookupView(sampleResult(), false)
	assert.Nil(t, plain.Breakdown)
	assert.Nil(t, plain.Attempts)
	assert.Equal(t, 75, plain.Score)

	explained := newLookupView(sampleResult(), true)
	require.NotNil(t, explained.Breakdown)
	assert.Equal(t, 75, explained.Breakdown.Total)
	require.Len(t, explained.Attempts, 2)
	assert.True(t, explained.Attempts[0].Skipped)
	assert.Equal(t, "CREDENTIALS_MISSING", explained.Attempts[0].ErrorCode)
	assert.Equal(t, int64(120), explained.Attempts[1].DurationMs)
	assert.Empty(t, explained.Attempts[1].ErrorCode)
}

func TestWriteFormatted(t *testing.T) {
	view := newLookupView(sampleResult(), false)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeFormatted(&buf, "json", view))
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.EqualValues(t, 75, got["score"])
		assert.NotContains(t, got, "breakdown")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeFormatted(&buf, "yaml", view))
		assert.Contains(t, buf.String(), "make: Honda")
		assert.Contains(t, buf.String(), "score: 75")
	})

	t.Run("unsupported", func(t *testing.T) {
		err := writeFormatted(&bytes.Buffer{}, "xml", view)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported format")
	})
}
