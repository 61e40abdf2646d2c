package vin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now2026 = time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)

func TestValid(t *testing.T) {
	tests := []struct {
		vin  string
		want bool
	}{
		{"1HGCM82633A004352", true},
		{"1hgcm82633a004352", true},
		{"WBADT63452CK12345", true},
		{"12345", false},
		{"", false},
		{"1HGCM82633A0043521", false},
		{"1HGCM82633I004352", false}, // I is not in the VIN alphabet
		{"1HGCM82633O004352", false},
		{"1HGCM82633Q004352", false},
		{"1HGCM8263-A004352", false},
		{" HGCM82633A004352", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.vin), "vin=%q", tt.vin)
	}
}

func TestCheckDigit(t *testing.T) {
	assert.Equal(t, byte('X'), CheckDigit("1M8GDM9AXKP042788"))
	assert.Equal(t, byte('3'), CheckDigit("1HGCM82633A004352"))
	assert.Equal(t, byte('1'), CheckDigit("11111111111111111"))
	assert.Equal(t, byte(0), CheckDigit("short"))
}

func TestCheckDigitValid(t *testing.T) {
	assert.True(t, CheckDigitValid("1M8GDM9AXKP042788"))
	assert.True(t, CheckDigitValid("1HGCM82633A004352"))
	assert.False(t, CheckDigitValid("1HGCM82633A123456"))
	assert.False(t, CheckDigitValid("WBADT63452CK12345"))
	assert.False(t, CheckDigitValid("12345"))
}

func TestWMI(t *testing.T) {
	assert.Equal(t, "1HG", WMI("1hgcm82633a004352"))
	assert.Equal(t, "WBA", WMI("WBADT63452CK12345"))
	assert.Empty(t, WMI("12345"))
}

func TestRegionOf(t *testing.T) {
	tests := []struct {
		vin  string
		want Region
	}{
		{"1HGCM82633A004352", RegionNorthAmerica},
		{"5YJ3E1EA7KF317000", RegionNorthAmerica},
		{"WBADT63452CK12345", RegionEurope},
		{"JHMFA16586S000000", RegionAsia},
		{"9BWZZZ377VT004251", RegionSouthAmerica},
		{"6T1BF3FK40X000000", RegionOceania},
		{"AHTBB3HD001726541", RegionAfrica},
		{"bad", RegionUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RegionOf(tt.vin), "vin=%q", tt.vin)
	}
}

func TestModelYear(t *testing.T) {
	tests := []struct {
		name string
		vin  string
		want int
	}{
		{"single live candidate", "1HGCM82633A004352", 2003},
		{"european single candidate", "WBADT63452CK12345", 2002},
		{"north american digit at position 7", "1M8GDM9AXKP042788", 1989},
		{"north american letter at position 7", "5YJ3E1EA7KF317000", 2019},
		{"european two candidates is ambiguous", "WBA3A5C5XKF000000", 0},
		{"unknown code", "1HGCM82630U004352", 0},
		{"invalid vin", "12345", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ModelYear(tt.vin, now2026))
		})
	}
}

func TestYearCandidates_RespectsClock(t *testing.T) {
	// Code "3": 2003 is live in 2026; 2033 only becomes live in 2032.
	assert.Equal(t, []int{2003}, YearCandidates("1HGCM82633A004352", now2026))
	later := time.Date(2032, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, []int{2003, 2033}, YearCandidates("1HGCM82633A004352", later))
}
