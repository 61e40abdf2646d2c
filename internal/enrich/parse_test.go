package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain json", `{"trim": "EX"}`, `{"trim": "EX"}`},
		{"code fence", "```json\n{\"trim\": \"EX\"}\n```", `{"trim": "EX"}`},
		{"bare fence", "```\n{\"trim\": \"EX\"}\n```", `{"trim": "EX"}`},
		{"with prefix", "Here you go: {\"trim\": \"EX\"}", `{"trim": "EX"}`},
		{"with suffix", "{\"trim\": \"EX\"} hope that helps", `{"trim": "EX"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.input))
		})
	}
}

func TestParsePrediction_AllowList(t *testing.T) {
	requested := []string{model.FieldEngine, model.FieldDisplacement, model.FieldDoors}
	got, err := ParsePrediction("mock", `{
		"engine": " 3.5L V6 ",
		"displacement": 3.5,
		"doors": 4,
		"model": "Pilot",
		"wmi": "5FN",
		"checksum": "X"
	}`, requested)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		model.FieldEngine:       "3.5L V6",
		model.FieldDisplacement: 3.5,
		model.FieldDoors:        4,
	}, got)
}

func TestParsePrediction_DropsIllTypedValues(t *testing.T) {
	requested := []string{model.FieldEngine, model.FieldCylinders, model.FieldHorsepower, model.FieldTrim, model.FieldSeats}
	got, err := ParsePrediction("mock", `{
		"engine": 6,
		"cylinders": "six",
		"horsepower": -1,
		"trim": "N/A",
		"seats": null
	}`, requested)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParsePrediction_IdentityFieldsNeverAccepted(t *testing.T) {
	got, err := ParsePrediction("mock", `{"vin":"1HGCM82633A004352","vinValid":true}`, []string{"vin", "vinValid"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParsePrediction_Malformed(t *testing.T) {
	for _, text := range []string{"", "no json here", `["engine"]`, `{"engine":`} {
		_, err := ParsePrediction("mock", text, []string{model.FieldEngine})
		require.Error(t, err, text)
		assert.Equal(t, apierr.MalformedResponse, apierr.KindOf(err), text)
	}
}
