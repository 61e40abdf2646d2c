package vindecode

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/vin"
)

// engineSpec is the set of components an engine description is built from.
type engineSpec struct {
	DisplacementLiters float64
	Cylinders          int
	Layout             string // "V", "I", "H", "W" when known
	Fuel               string
	Turbo              bool
}

// describeEngine joins the present components of e with single spaces, e.g.
// "3.0L V6 Gasoline Turbo". Absent components are omitted.
func describeEngine(e engineSpec) string {
	var parts []string
	if e.DisplacementLiters > 0 {
		parts = append(parts, strconv.FormatFloat(e.DisplacementLiters, 'f', 1, 64)+"L")
	}
	if e.Cylinders > 0 {
		if e.Layout != "" {
			parts = append(parts, e.Layout+strconv.Itoa(e.Cylinders))
		} else {
			parts = append(parts, strconv.Itoa(e.Cylinders)+"-Cylinder")
		}
	}
	if f := model.Clean(e.Fuel); f != "" {
		parts = append(parts, f)
	}
	if e.Turbo {
		parts = append(parts, "Turbo")
	}
	return strings.Join(parts, " ")
}

// engineLayout maps vendor configuration labels to a one-letter layout code.
func engineLayout(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return ""
	case strings.HasPrefix(s, "v"):
		return "V"
	case strings.HasPrefix(s, "in-line"), strings.HasPrefix(s, "inline"), s == "i", s == "l", s == "straight":
		return "I"
	case strings.HasPrefix(s, "h"), strings.Contains(s, "flat"), strings.Contains(s, "boxer"), strings.Contains(s, "opposed"):
		return "H"
	case strings.HasPrefix(s, "w"):
		return "W"
	default:
		return ""
	}
}

// isTurbo reports whether a vendor turbo/compressor value indicates forced induction.
func isTurbo(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasPrefix(s, "no") {
		return false
	}
	switch s {
	case "yes", "true", "y", "1", "turbo", "turbocharger", "twin turbo", "twin-turbo":
		return true
	}
	return strings.Contains(s, "turbo")
}

// finish applies the adapter-independent rules to a normalized record: the
// caller's VIN verbatim, WMI, VIN validity, placeholder cleanup, the
// model-year fallback and derived engine text.
func finish(v *model.Vehicle, original, provider string, now time.Time, spec engineSpec) *model.Vehicle {
	v.VIN = original
	v.WMI = vin.WMI(original)
	v.SourceProvider = provider
	if !v.VINValid {
		v.VINValid = vin.CheckDigitValid(original)
	}

	v.Make = model.Clean(v.Make)
	v.Model = model.Clean(v.Model)
	v.Trim = model.Clean(v.Trim)
	v.Engine = model.Clean(v.Engine)
	v.BodyType = model.Clean(v.BodyType)
	v.Transmission = model.Clean(v.Transmission)
	v.Drivetrain = model.Clean(v.Drivetrain)
	v.Manufacturer = model.Clean(v.Manufacturer)
	v.OriginCountry = model.Clean(v.OriginCountry)
	v.FuelType = model.Clean(v.FuelType)

	v.DisplacementLiters = positiveFloat(v.DisplacementLiters)
	v.Horsepower = positiveFloat(v.Horsepower)
	v.TorqueLbFt = positiveFloat(v.TorqueLbFt)
	v.CylinderCount = positiveInt(v.CylinderCount)
	v.DoorCount = positiveInt(v.DoorCount)
	v.SeatCount = positiveInt(v.SeatCount)

	if v.Year <= 0 {
		v.Year = vin.ModelYear(original, now)
	}

	if v.Engine == "" {
		if spec.DisplacementLiters == 0 {
			spec.DisplacementLiters = v.DisplacementLiters
		}
		if spec.Cylinders == 0 {
			spec.Cylinders = v.CylinderCount
		}
		if spec.Fuel == "" {
			spec.Fuel = v.FuelType
		}
		v.Engine = describeEngine(spec)
	}
	return v
}

// parseFloat parses vendor numeric text. Placeholders and garbage yield 0.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if model.IsSentinel(s) {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// parseInt parses vendor integer text, accepting "4.0" style values.
func parseInt(s string) int {
	f := parseFloat(s)
	if f <= 0 || f > math.MaxInt32 {
		return 0
	}
	return int(math.Round(f))
}

// roundLiters rounds a displacement to one decimal place.
func roundLiters(l float64) float64 {
	return math.Round(l*10) / 10
}

func positiveFloat(f float64) float64 {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func positiveInt(n int) int {
	if n <= 0 {
		return 0
	}
	return n
}

// flexString decodes a JSON string, number or bool as text. Vendors are
// inconsistent about quoting numeric values.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*f = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	case b[0] == '{' || b[0] == '[':
		*f = ""
		return nil
	default:
		*f = flexString(b)
		return nil
	}
}

func (f flexString) String() string { return string(f) }
