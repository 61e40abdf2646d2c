package vindecode

import (
	"context"
	"crypto/sha1" //nolint:gosec // vendor-mandated control sum, not a security boundary
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/vin"
)

const (
	vindecodereuName    = "vindecodereu"
	vindecodereuBaseURL = "https://api.vindecoder.eu/3.2"
	vindecodereuTimeout = 20 * time.Second
	vindecodereuAction  = "decode"
)

// vindecodereuResponse is a flat label/value list. Labels are display text,
// values are strings or numbers.
type vindecodereuResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Decode  []struct {
		Label string     `json:"label"`
		Value flexString `json:"value"`
	} `json:"decode"`
}

// VinDecoderEU is the regional European specialist. Requests are signed with
// a control sum over the VIN, action, key and secret.
type VinDecoderEU struct {
	client
	apiKey string
	secret string
}

// NewVinDecoderEU creates a vindecoder.eu adapter.
func NewVinDecoderEU(apiKey, secret string, opts ...Option) *VinDecoderEU {
	return &VinDecoderEU{
		client: newClient(vindecodereuName, vindecodereuBaseURL, vindecodereuTimeout, opts),
		apiKey: apiKey,
		secret: secret,
	}
}

// Name implements Provider.
func (p *VinDecoderEU) Name() string { return vindecodereuName }

// Available implements Provider.
func (p *VinDecoderEU) Available() bool { return p.apiKey != "" && p.secret != "" }

// Decode implements Provider.
func (p *VinDecoderEU) Decode(ctx context.Context, v string) (*model.Vehicle, error) {
	if err := p.checkVIN(v); err != nil {
		return nil, err
	}

	norm := vin.Normalize(v)
	reqURL := strings.Join([]string{
		p.baseURL,
		url.PathEscape(p.apiKey),
		p.controlSum(norm),
		vindecodereuAction,
		url.PathEscape(norm) + ".json",
	}, "/")
	body, err := p.get(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}
	return p.normalize(body, v)
}

// controlSum is the first 10 hex chars of sha1("VIN|decode|key|secret").
func (p *VinDecoderEU) controlSum(v string) string {
	sum := sha1.Sum([]byte(v + "|" + vindecodereuAction + "|" + p.apiKey + "|" + p.secret)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:10]
}

func (p *VinDecoderEU) normalize(body []byte, original string) (*model.Vehicle, error) {
	var resp vindecodereuResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, p.malformed(err)
	}
	if resp.Error {
		return nil, p.notFound(resp.Message)
	}

	labels := make(map[string]string, len(resp.Decode))
	for _, d := range resp.Decode {
		key := strings.ToLower(strings.TrimSpace(d.Label))
		if _, seen := labels[key]; !seen {
			labels[key] = strings.TrimSpace(d.Value.String())
		}
	}
	get := func(names ...string) string {
		for _, n := range names {
			if s := model.Clean(labels[n]); s != "" {
				return s
			}
		}
		return ""
	}

	if get("make") == "" && get("model") == "" {
		return nil, p.notFound("no decode data")
	}

	displacement := parseFloat(get("engine displacement (ccm)")) / 1000
	if displacement == 0 {
		displacement = parseFloat(get("engine displacement (l)"))
	}

	v := &model.Vehicle{
		Make:               get("make"),
		Model:              get("model"),
		Year:               parseInt(get("model year")),
		Trim:               get("trim", "version"),
		BodyType:           get("body", "body type"),
		Transmission:       get("transmission"),
		Drivetrain:         get("drive", "drive type"),
		Manufacturer:       get("manufacturer"),
		OriginCountry:      get("country", "plant country", "manufacturer country"),
		FuelType:           get("fuel type - primary", "fuel type"),
		DisplacementLiters: roundLiters(displacement),
		CylinderCount:      parseInt(get("engine cylinders", "number of cylinders")),
		Horsepower:         parseFloat(get("engine power (hp)")),
		DoorCount:          parseInt(get("number of doors")),
		SeatCount:          parseInt(get("number of seats")),
		Raw:                body,
	}
	spec := engineSpec{
		Layout: engineLayout(get("engine cylinders position", "engine configuration")),
		Turbo:  isTurbo(get("engine turbine", "turbo")),
	}
	return finish(v, original, vindecodereuName, p.now(), spec), nil
}
