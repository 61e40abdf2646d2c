package enrich

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/motolens/internal/model"
)

// Prompt is the rendered request for one enrichment call.
type Prompt struct {
	VIN    string
	System string
	User   string
	Fields []string
}

const systemPrompt = "You are an automotive specification assistant. " +
	"Reply with a single JSON object and nothing else: no prose, no markdown."

// fieldHints describe the expected value of each enrichable field.
var fieldHints = map[string]string{
	model.FieldModel:        "string, model name",
	model.FieldEngine:       `string, e.g. "2.4L I4 Gasoline"`,
	model.FieldBodyType:     `string, e.g. "Sedan", "SUV", "Pickup"`,
	model.FieldTransmission: `string, e.g. "6-Speed Automatic"`,
	model.FieldDrivetrain:   `string, one of "FWD", "RWD", "AWD", "4WD"`,
	model.FieldTrim:         "string, trim level",
	model.FieldFuelType:     `string, e.g. "Gasoline", "Diesel", "Electric"`,
	model.FieldDisplacement: "number, liters",
	model.FieldCylinders:    "integer",
	model.FieldHorsepower:   "number, hp",
	model.FieldTorque:       "number, lb-ft",
	model.FieldDoors:        "integer",
	model.FieldSeats:        "integer",
}

// BuildPrompt asks for exactly fields, giving the known attributes of v as
// context.
func BuildPrompt(v *model.Vehicle, fields []string) Prompt {
	var b strings.Builder
	b.WriteString("Known vehicle attributes:\n")
	for _, kv := range knownAttributes(v) {
		fmt.Fprintf(&b, "- %s: %s\n", kv[0], kv[1])
	}

	b.WriteString("\nReturn one JSON object with exactly these keys:\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s (%s)\n", f, fieldHints[f])
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Use null for any value you cannot determine with confidence.\n")
	b.WriteString("- Do not include any other keys.\n")
	b.WriteString("- Numbers must be JSON numbers without units.\n")

	return Prompt{
		VIN:    v.VIN,
		System: systemPrompt,
		User:   b.String(),
		Fields: append([]string(nil), fields...),
	}
}

func knownAttributes(v *model.Vehicle) [][2]string {
	var out [][2]string
	add := func(k, val string) {
		if val = model.Clean(val); val != "" {
			out = append(out, [2]string{k, val})
		}
	}
	add("vin", v.VIN)
	if v.Year > 0 {
		add("year", strconv.Itoa(v.Year))
	}
	add("make", v.Make)
	add("model", v.Model)
	add("trim", v.Trim)
	add("engine", v.Engine)
	add("bodyType", v.BodyType)
	add("fuelType", v.FuelType)
	add("manufacturer", v.Manufacturer)
	add("originCountry", v.OriginCountry)
	return out
}
