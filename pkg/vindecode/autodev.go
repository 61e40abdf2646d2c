package vindecode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/vin"
)

const (
	autodevName    = "autodev"
	autodevBaseURL = "https://auto.dev/api/vin"
	autodevTimeout = 15 * time.Second
)

// autodevResponse is the nested make/model/years schema returned by auto.dev.
type autodevResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	Manufacturer string `json:"manufacturer"`
	Make         struct {
		Name string `json:"name"`
	} `json:"make"`
	Model struct {
		Name string `json:"name"`
	} `json:"model"`
	Engine struct {
		Cylinder       flexString `json:"cylinder"`
		Size           flexString `json:"size"`
		Configuration  string     `json:"configuration"`
		FuelType       string     `json:"fuelType"`
		Horsepower     flexString `json:"horsepower"`
		Torque         flexString `json:"torque"`
		CompressorType string     `json:"compressorType"`
	} `json:"engine"`
	Transmission struct {
		TransmissionType string `json:"transmissionType"`
	} `json:"transmission"`
	DrivenWheels string     `json:"drivenWheels"`
	NumOfDoors   flexString `json:"numOfDoors"`
	Categories   struct {
		VehicleStyle    string `json:"vehicleStyle"`
		PrimaryBodyType string `json:"primaryBodyType"`
	} `json:"categories"`
	Years []struct {
		Year   int `json:"year"`
		Styles []struct {
			Name string `json:"name"`
			Trim string `json:"trim"`
		} `json:"styles"`
	} `json:"years"`
}

// AutoDev is the primary commercial decoder. It authenticates with a bearer
// API key.
type AutoDev struct {
	client
	apiKey string
}

// NewAutoDev creates an auto.dev adapter.
func NewAutoDev(apiKey string, opts ...Option) *AutoDev {
	return &AutoDev{
		client: newClient(autodevName, autodevBaseURL, autodevTimeout, opts),
		apiKey: apiKey,
	}
}

// Name implements Provider.
func (p *AutoDev) Name() string { return autodevName }

// Available implements Provider.
func (p *AutoDev) Available() bool { return p.apiKey != "" }

// Decode implements Provider.
func (p *AutoDev) Decode(ctx context.Context, v string) (*model.Vehicle, error) {
	if err := p.checkVIN(v); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)
	body, err := p.get(ctx, p.baseURL+"/"+url.PathEscape(vin.Normalize(v)), header)
	if err != nil {
		return nil, err
	}
	return p.normalize(body, v)
}

func (p *AutoDev) normalize(body []byte, original string) (*model.Vehicle, error) {
	var resp autodevResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, p.malformed(err)
	}
	if strings.EqualFold(resp.Status, "NOT_FOUND") || (resp.Make.Name == "" && resp.Model.Name == "" && len(resp.Years) == 0) {
		return nil, p.notFound(resp.Message)
	}

	v := &model.Vehicle{
		Make:               resp.Make.Name,
		Model:              resp.Model.Name,
		BodyType:           firstNonEmpty(resp.Categories.VehicleStyle, resp.Categories.PrimaryBodyType),
		Transmission:       titleWord(resp.Transmission.TransmissionType),
		Drivetrain:         resp.DrivenWheels,
		Manufacturer:       resp.Manufacturer,
		FuelType:           resp.Engine.FuelType,
		DisplacementLiters: roundLiters(parseFloat(resp.Engine.Size.String())),
		CylinderCount:      parseInt(resp.Engine.Cylinder.String()),
		Horsepower:         parseFloat(resp.Engine.Horsepower.String()),
		TorqueLbFt:         parseFloat(resp.Engine.Torque.String()),
		DoorCount:          parseInt(resp.NumOfDoors.String()),
		Raw:                body,
	}
	if len(resp.Years) > 0 {
		y := resp.Years[0]
		v.Year = y.Year
		if len(y.Styles) > 0 {
			v.Trim = firstNonEmpty(y.Styles[0].Trim, y.Styles[0].Name)
		}
	}

	spec := engineSpec{
		Layout: engineLayout(resp.Engine.Configuration),
		Turbo:  isTurbo(resp.Engine.CompressorType),
	}
	return finish(v, original, autodevName, p.now(), spec), nil
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if c := model.Clean(s); c != "" {
			return c
		}
	}
	return ""
}

// titleWord turns vendor enum text such as "AUTOMATIC" or "AUTOMATED_MANUAL"
// into "Automatic" / "Automated Manual".
func titleWord(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" || s != strings.ToUpper(s) {
		return s
	}
	return cases.Title(language.Und).String(strings.ToLower(strings.Join(strings.Fields(s), " ")))
}
