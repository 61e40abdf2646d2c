package vindecode

import (
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/motolens/internal/apierr"
)

const vindecodereuBMWBody = `{
	"price": 0.1,
	"balance": {"API Decode": 99},
	"decode": [
		{"label": "VIN", "value": "WBADT63452CK12345"},
		{"label": "Make", "value": "BMW"},
		{"label": "Manufacturer", "value": "BMW AG"},
		{"label": "Model", "value": "3"},
		{"label": "Model Year", "value": 2002},
		{"label": "Body", "value": "Sedan"},
		{"label": "Number of Doors", "value": 4},
		{"label": "Number of Seats", "value": "5"},
		{"label": "Engine Displacement (ccm)", "value": 2979},
		{"label": "Engine Cylinders", "value": 6},
		{"label": "Engine Power (HP)", "value": 231},
		{"label": "Fuel Type - Primary", "value": "Gasoline"},
		{"label": "Transmission", "value": "Manual"},
		{"label": "Drive", "value": "Rear-wheel drive"},
		{"label": "Country", "value": "Germany"}
	]
}`

func TestVinDecoderEU_Decode(t *testing.T) {
	sum := sha1.Sum([]byte("WBADT63452CK12345|decode|api-key|api-secret")) //nolint:gosec
	wantPath := "/api-key/" + hex.EncodeToString(sum[:])[:10] + "/decode/WBADT63452CK12345.json"

	srv, _ := newVendorServer(t, http.StatusOK, vindecodereuBMWBody, func(r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
	})

	p := NewVinDecoderEU("api-key", "api-secret", WithBaseURL(srv.URL), WithClock(fixedNow))
	got, err := p.Decode(context.Background(), "WBADT63452CK12345")
	require.NoError(t, err)

	assert.Equal(t, "WBADT63452CK12345", got.VIN)
	assert.Equal(t, "BMW", got.Make)
	assert.Equal(t, "3", got.Model)
	assert.Equal(t, 2002, got.Year)
	assert.Equal(t, "Sedan", got.BodyType)
	assert.InDelta(t, 3.0, got.DisplacementLiters, 0.001)
	assert.Equal(t, 6, got.CylinderCount)
	assert.Equal(t, "3.0L 6-Cylinder Gasoline", got.Engine)
	assert.Equal(t, 4, got.DoorCount)
	assert.Equal(t, 5, got.SeatCount)
	assert.Equal(t, "Germany", got.OriginCountry)
	assert.Equal(t, "vindecodereu", got.SourceProvider)
}

func TestVinDecoderEU_ErrorPayload(t *testing.T) {
	srv, _ := newVendorServer(t, http.StatusOK, `{"error":true,"message":"VIN not found"}`, nil)

	p := NewVinDecoderEU("k", "s", WithBaseURL(srv.URL))
	_, err := p.Decode(context.Background(), "WBADT63452CK12345")
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
}

func TestVinDecoderEU_ControlSumShape(t *testing.T) {
	p := NewVinDecoderEU("k", "s")
	sum := p.controlSum("WBADT63452CK12345")
	assert.Len(t, sum, 10)
	assert.Equal(t, sum, p.controlSum("WBADT63452CK12345"))
	assert.NotEqual(t, sum, p.controlSum("WBA3A5C5XKF000000"))
}
