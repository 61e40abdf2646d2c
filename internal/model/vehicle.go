// Package model defines the canonical vehicle record passed through the
// resolution and enrichment pipeline.
package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Vehicle is the canonical record every decoding provider is normalized into.
// A zero value in any field means the field is absent.
type Vehicle struct {
	VIN                string  `json:"vin" yaml:"vin"`
	VINValid           bool    `json:"vinValid" yaml:"vinValid"`
	WMI                string  `json:"wmi,omitempty" yaml:"wmi,omitempty"`
	Make               string  `json:"make,omitempty" yaml:"make,omitempty"`
	Model              string  `json:"model,omitempty" yaml:"model,omitempty"`
	Year               int     `json:"year,omitempty" yaml:"year,omitempty"`
	Trim               string  `json:"trim,omitempty" yaml:"trim,omitempty"`
	Engine             string  `json:"engine,omitempty" yaml:"engine,omitempty"`
	BodyType           string  `json:"bodyType,omitempty" yaml:"bodyType,omitempty"`
	Transmission       string  `json:"transmission,omitempty" yaml:"transmission,omitempty"`
	Drivetrain         string  `json:"drivetrain,omitempty" yaml:"drivetrain,omitempty"`
	Manufacturer       string  `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	OriginCountry      string  `json:"originCountry,omitempty" yaml:"originCountry,omitempty"`
	FuelType           string  `json:"fuelType,omitempty" yaml:"fuelType,omitempty"`
	DisplacementLiters float64 `json:"displacementLiters,omitempty" yaml:"displacementLiters,omitempty"`
	CylinderCount      int     `json:"cylinderCount,omitempty" yaml:"cylinderCount,omitempty"`
	Horsepower         float64 `json:"horsepower,omitempty" yaml:"horsepower,omitempty"`
	TorqueLbFt         float64 `json:"torqueLbFt,omitempty" yaml:"torqueLbFt,omitempty"`
	DoorCount          int     `json:"doorCount,omitempty" yaml:"doorCount,omitempty"`
	SeatCount          int     `json:"seatCount,omitempty" yaml:"seatCount,omitempty"`

	SourceProvider string         `json:"sourceProvider,omitempty" yaml:"sourceProvider,omitempty"`
	Enrichment     EnrichmentInfo `json:"enrichment" yaml:"enrichment"`

	// Raw holds the provider payload for debugging. Never serialized.
	Raw []byte `json:"-" yaml:"-"`
}

// EnrichmentStatus records what the enrichment stage did to a record.
type EnrichmentStatus string

const (
	EnrichmentNone    EnrichmentStatus = "none"    // not needed or not attempted
	EnrichmentApplied EnrichmentStatus = "applied" // fresh prediction merged
	EnrichmentCached  EnrichmentStatus = "cached"  // cached prediction merged
	EnrichmentSkipped EnrichmentStatus = "skipped" // circuit breaker open
	EnrichmentFailed  EnrichmentStatus = "failed"  // generative call or parse failed
)

// EnrichmentInfo annotates a record with the outcome of enrichment.
type EnrichmentInfo struct {
	Status EnrichmentStatus `json:"status,omitempty" yaml:"status,omitempty"`
	Fields []string         `json:"fields,omitempty" yaml:"fields,omitempty"`
	Reason string           `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Clone returns a deep copy of v.
func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}
	out := *v
	if v.Enrichment.Fields != nil {
		out.Enrichment.Fields = append([]string(nil), v.Enrichment.Fields...)
	}
	if v.Raw != nil {
		out.Raw = append([]byte(nil), v.Raw...)
	}
	return &out
}

// ProviderResult is the outcome of one adapter invocation during a resolution.
type ProviderResult struct {
	Provider string        `json:"provider"`
	Vehicle  *Vehicle      `json:"vehicle,omitempty"`
	Score    int           `json:"score"`
	Err      error         `json:"-"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
}

// LookupRecord is the persisted audit entry for one resolution.
type LookupRecord struct {
	ID        string    `json:"id"`
	VIN       string    `json:"vin"`
	Provider  string    `json:"provider,omitempty"`
	Score     int       `json:"score"`
	ErrorCode string    `json:"error_code,omitempty"`
	Attempts  []string  `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// sentinels are vendor placeholders that carry no information.
var sentinels = map[string]bool{
	"":               true,
	"unknown":        true,
	"n/a":            true,
	"na":             true,
	"not applicable": true,
	"not available":  true,
	"null":           true,
	"none":           true,
	"-":              true,
}

// IsSentinel reports whether s is empty or a placeholder such as "Unknown".
func IsSentinel(s string) bool {
	// Casers are stateful; build one per call.
	return sentinels[cases.Fold().String(strings.TrimSpace(s))]
}

// Clean trims s and returns "" for sentinel values.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if IsSentinel(s) {
		return ""
	}
	return s
}

// EnrichmentCacheEntry is a set of accepted predictions for one vehicle
// identity key.
type EnrichmentCacheEntry struct {
	Key       string         `json:"key"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"created_at"`
}
