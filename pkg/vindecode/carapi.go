package vindecode

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/vin"
)

const (
	carapiName    = "carapi"
	carapiBaseURL = "https://carapi.app/api/vin"
	carapiTimeout = 15 * time.Second
)

// CarAPI is the catalog provider. Its payload nests specs under "specs" and
// trim candidates under "trims"; fields are read by path with gjson.
type CarAPI struct {
	client
	token string
}

// NewCarAPI creates a carapi.app adapter authenticated with a bearer token.
func NewCarAPI(token string, opts ...Option) *CarAPI {
	return &CarAPI{
		client: newClient(carapiName, carapiBaseURL, carapiTimeout, opts),
		token:  token,
	}
}

// Name implements Provider.
func (p *CarAPI) Name() string { return carapiName }

// Available implements Provider.
func (p *CarAPI) Available() bool { return p.token != "" }

// Decode implements Provider.
func (p *CarAPI) Decode(ctx context.Context, v string) (*model.Vehicle, error) {
	if err := p.checkVIN(v); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.token)
	body, err := p.get(ctx, p.baseURL+"/"+url.PathEscape(vin.Normalize(v)), header)
	if err != nil {
		return nil, err
	}
	return p.normalize(body, v)
}

func (p *CarAPI) normalize(body []byte, original string) (*model.Vehicle, error) {
	if !gjson.ValidBytes(body) {
		return nil, p.malformed(errInvalidJSON)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, p.malformed(errInvalidJSON)
	}
	if doc.Get("exception").Exists() {
		return nil, p.notFound(doc.Get("message").String())
	}

	str := func(paths ...string) string {
		for _, path := range paths {
			if s := model.Clean(doc.Get(path).String()); s != "" {
				return s
			}
		}
		return ""
	}
	num := func(path string) float64 {
		return parseFloat(doc.Get(path).String())
	}

	v := &model.Vehicle{
		Make:               str("make"),
		Model:              str("model"),
		Year:               int(doc.Get("year").Int()),
		Trim:               str("trim", "trims.0.name", "specs.trim"),
		BodyType:           str("specs.body_class", "trims.0.make_model_trim_body.type"),
		Transmission:       str("specs.transmission_style"),
		Drivetrain:         str("specs.drive_type"),
		Manufacturer:       str("specs.manufacturer_name"),
		OriginCountry:      str("specs.plant_country"),
		FuelType:           str("specs.fuel_type_primary"),
		DisplacementLiters: roundLiters(num("specs.displacement_l")),
		CylinderCount:      parseInt(doc.Get("specs.engine_number_of_cylinders").String()),
		Horsepower:         num("specs.engine_brake_hp_from"),
		DoorCount:          parseInt(doc.Get("specs.doors").String()),
		SeatCount:          parseInt(doc.Get("specs.number_of_seats").String()),
		Raw:                body,
	}
	if v.Make == "" && v.Model == "" && v.Year == 0 {
		return nil, p.notFound("empty catalog match")
	}

	spec := engineSpec{
		Layout: engineLayout(str("specs.engine_configuration")),
		Turbo:  isTurbo(str("specs.turbo")),
	}
	return finish(v, original, carapiName, p.now(), spec), nil
}
