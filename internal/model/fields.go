package model

import (
	"math"
	"strconv"
	"strings"
)

// FieldKind is the value type of an enrichable field.
type FieldKind int

const (
	KindString FieldKind = iota
	KindFloat
	KindInt
)

// Enrichable field names, in the order they are requested from the predictor.
const (
	FieldModel        = "model"
	FieldEngine       = "engine"
	FieldBodyType     = "bodyType"
	FieldTransmission = "transmission"
	FieldDrivetrain   = "drivetrain"
	FieldTrim         = "trim"
	FieldFuelType     = "fuelType"
	FieldDisplacement = "displacement"
	FieldCylinders    = "cylinders"
	FieldHorsepower   = "horsepower"
	FieldTorque       = "torque"
	FieldDoors        = "doors"
	FieldSeats        = "seats"
)

// EnrichableFields lists every field the enrichment stage may fill.
var EnrichableFields = []string{
	FieldModel,
	FieldEngine,
	FieldBodyType,
	FieldTransmission,
	FieldDrivetrain,
	FieldTrim,
	FieldFuelType,
	FieldDisplacement,
	FieldCylinders,
	FieldHorsepower,
	FieldTorque,
	FieldDoors,
	FieldSeats,
}

var fieldKinds = map[string]FieldKind{
	FieldModel:        KindString,
	FieldEngine:       KindString,
	FieldBodyType:     KindString,
	FieldTransmission: KindString,
	FieldDrivetrain:   KindString,
	FieldTrim:         KindString,
	FieldFuelType:     KindString,
	FieldDisplacement: KindFloat,
	FieldCylinders:    KindInt,
	FieldHorsepower:   KindFloat,
	FieldTorque:       KindFloat,
	FieldDoors:        KindInt,
	FieldSeats:        KindInt,
}

// identityFields are derived from the VIN itself and never predicted.
var identityFields = map[string]bool{
	"vin":      true,
	"wmi":      true,
	"checksum": true,
	"vinValid": true,
}

// IsIdentityField reports whether name is a VIN-identity field.
func IsIdentityField(name string) bool {
	return identityFields[name]
}

// KindOf returns the kind of an enrichable field.
func KindOf(name string) (FieldKind, bool) {
	k, ok := fieldKinds[name]
	return k, ok
}

// IsEnrichable reports whether name may be filled by enrichment.
func IsEnrichable(name string) bool {
	if identityFields[name] {
		return false
	}
	_, ok := fieldKinds[name]
	return ok
}

// IsAbsent reports whether the named enrichable field has no usable value.
// Unknown field names report false so they are never written.
func (v *Vehicle) IsAbsent(name string) bool {
	switch name {
	case FieldModel:
		return IsSentinel(v.Model)
	case FieldEngine:
		return IsSentinel(v.Engine)
	case FieldBodyType:
		return IsSentinel(v.BodyType)
	case FieldTransmission:
		return IsSentinel(v.Transmission)
	case FieldDrivetrain:
		return IsSentinel(v.Drivetrain)
	case FieldTrim:
		return IsSentinel(v.Trim)
	case FieldFuelType:
		return IsSentinel(v.FuelType)
	case FieldDisplacement:
		return v.DisplacementLiters <= 0
	case FieldCylinders:
		return v.CylinderCount <= 0
	case FieldHorsepower:
		return v.Horsepower <= 0
	case FieldTorque:
		return v.TorqueLbFt <= 0
	case FieldDoors:
		return v.DoorCount <= 0
	case FieldSeats:
		return v.SeatCount <= 0
	default:
		return false
	}
}

// MissingFields returns the enrichable fields that are absent on v.
func (v *Vehicle) MissingFields() []string {
	var out []string
	for _, f := range EnrichableFields {
		if v.IsAbsent(f) {
			out = append(out, f)
		}
	}
	return out
}

// SetField writes a value already coerced by Coerce into the named field.
// It reports false when the name or value type does not match.
func (v *Vehicle) SetField(name string, value any) bool {
	switch val := value.(type) {
	case string:
		switch name {
		case FieldModel:
			v.Model = val
		case FieldEngine:
			v.Engine = val
		case FieldBodyType:
			v.BodyType = val
		case FieldTransmission:
			v.Transmission = val
		case FieldDrivetrain:
			v.Drivetrain = val
		case FieldTrim:
			v.Trim = val
		case FieldFuelType:
			v.FuelType = val
		default:
			return false
		}
	case float64:
		switch name {
		case FieldDisplacement:
			v.DisplacementLiters = val
		case FieldHorsepower:
			v.Horsepower = val
		case FieldTorque:
			v.TorqueLbFt = val
		default:
			return false
		}
	case int:
		switch name {
		case FieldCylinders:
			v.CylinderCount = val
		case FieldDoors:
			v.DoorCount = val
		case FieldSeats:
			v.SeatCount = val
		default:
			return false
		}
	default:
		return false
	}
	return true
}

// Coerce converts an untrusted decoded JSON value into the type of the named
// field. Sentinels, non-positive numbers and wrong shapes are rejected.
func Coerce(name string, raw any) (any, bool) {
	kind, ok := KindOf(name)
	if !ok || IsIdentityField(name) {
		return nil, false
	}
	switch kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, false
		}
		s = Clean(s)
		if s == "" {
			return nil, false
		}
		return s, true
	case KindFloat:
		f, ok := toFloat(raw)
		if !ok || f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	case KindInt:
		f, ok := toFloat(raw)
		if !ok || f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
			return nil, false
		}
		return int(f), true
	}
	return nil, false
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
