package vindecode

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/vin"
)

const (
	nhtsaName    = "nhtsa"
	nhtsaBaseURL = "https://vpic.nhtsa.dot.gov/api/vehicles"
	nhtsaTimeout = 30 * time.Second
)

// nhtsaResponse is the vPIC DecodeVinValues envelope. Every value is a string
// and absent values are "".
type nhtsaResponse struct {
	Count   int           `json:"Count"`
	Message string        `json:"Message"`
	Results []nhtsaResult `json:"Results"`
}

type nhtsaResult struct {
	Make                string `json:"Make"`
	Model               string `json:"Model"`
	ModelYear           string `json:"ModelYear"`
	Trim                string `json:"Trim"`
	Series              string `json:"Series"`
	BodyClass           string `json:"BodyClass"`
	DisplacementL       string `json:"DisplacementL"`
	EngineCylinders     string `json:"EngineCylinders"`
	EngineConfiguration string `json:"EngineConfiguration"`
	EngineHP            string `json:"EngineHP"`
	FuelTypePrimary     string `json:"FuelTypePrimary"`
	Turbo               string `json:"Turbo"`
	TransmissionStyle   string `json:"TransmissionStyle"`
	DriveType           string `json:"DriveType"`
	Manufacturer        string `json:"Manufacturer"`
	PlantCountry        string `json:"PlantCountry"`
	Doors               string `json:"Doors"`
	Seats               string `json:"Seats"`
	ErrorCode           string `json:"ErrorCode"`
	ErrorText           string `json:"ErrorText"`

	// VIN and SuggestedVIN may contain "!" placeholders. They are read only
	// for diagnostics and never copied into the record.
	VIN          string `json:"VIN"`
	SuggestedVIN string `json:"SuggestedVIN"`
}

// NHTSA decodes VINs with the free US government vPIC service. It needs no
// credentials.
type NHTSA struct {
	client
}

// NewNHTSA creates an NHTSA vPIC adapter.
func NewNHTSA(opts ...Option) *NHTSA {
	return &NHTSA{client: newClient(nhtsaName, nhtsaBaseURL, nhtsaTimeout, opts)}
}

// Name implements Provider.
func (p *NHTSA) Name() string { return nhtsaName }

// Available implements Provider.
func (p *NHTSA) Available() bool { return true }

// Decode implements Provider.
func (p *NHTSA) Decode(ctx context.Context, v string) (*model.Vehicle, error) {
	if err := p.checkVIN(v); err != nil {
		return nil, err
	}

	reqURL := p.baseURL + "/DecodeVinValues/" + url.PathEscape(vin.Normalize(v)) + "?format=json"
	body, err := p.get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}
	return p.normalize(body, v)
}

func (p *NHTSA) normalize(body []byte, original string) (*model.Vehicle, error) {
	var resp nhtsaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, p.malformed(err)
	}
	if len(resp.Results) == 0 {
		return nil, p.notFound(resp.Message)
	}
	r := resp.Results[0]
	if model.Clean(r.Make) == "" && model.Clean(r.Model) == "" && model.Clean(r.ModelYear) == "" {
		return nil, p.notFound(strings.TrimSpace(r.ErrorText))
	}

	trim := r.Trim
	if model.Clean(trim) == "" {
		trim = r.Series
	}

	v := &model.Vehicle{
		VINValid:           nhtsaClean(r.ErrorCode),
		Make:               r.Make,
		Model:              r.Model,
		Year:               parseInt(r.ModelYear),
		Trim:               trim,
		BodyType:           r.BodyClass,
		Transmission:       r.TransmissionStyle,
		Drivetrain:         r.DriveType,
		Manufacturer:       r.Manufacturer,
		OriginCountry:      r.PlantCountry,
		FuelType:           r.FuelTypePrimary,
		DisplacementLiters: roundLiters(parseFloat(r.DisplacementL)),
		CylinderCount:      parseInt(r.EngineCylinders),
		Horsepower:         parseFloat(r.EngineHP),
		DoorCount:          parseInt(r.Doors),
		SeatCount:          parseInt(r.Seats),
		Raw:                body,
	}
	spec := engineSpec{
		Layout: engineLayout(r.EngineConfiguration),
		Turbo:  isTurbo(r.Turbo),
	}
	return finish(v, original, nhtsaName, p.now(), spec), nil
}

// nhtsaClean reports whether a vPIC ErrorCode list is the clean-decode code
// "0". Codes are comma separated, e.g. "1,11".
func nhtsaClean(code string) bool {
	for _, c := range strings.Split(code, ",") {
		if strings.TrimSpace(c) == "0" {
			return true
		}
	}
	return false
}
