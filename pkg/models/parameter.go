package models

import (
	"fmt"
	"strings"
)

// Parameter identifies one monitored water-quality metric.
// The string value doubles as the persisted JSON key.
type Parameter string

// Parameter constants for the monitored metrics
const (
	ParameterPH   Parameter = "ph"
	ParameterCOD  Parameter = "cod"
	ParameterTSS  Parameter = "tss"
	ParameterNH3N Parameter = "nh3n"
	ParameterFlow Parameter = "flowmeter"
)

// Precision describes how generated values are rounded
type Precision int

const (
	// PrecisionInteger floors values to whole numbers
	PrecisionInteger Precision = iota
	// PrecisionOneDecimal rounds values to one decimal place
	PrecisionOneDecimal
)

// Parameters lists every parameter in canonical display order
var Parameters = []Parameter{
	ParameterPH,
	ParameterCOD,
	ParameterTSS,
	ParameterNH3N,
	ParameterFlow,
}

// ParameterInfo holds metadata about a parameter
type ParameterInfo struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Unit      string    `json:"unit,omitempty"`
	Color     string    `json:"color"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Precision Precision `json:"precision"`
}

// ParameterRegistry maps parameters to their information.
// Min is inclusive, Max is exclusive.
var ParameterRegistry = map[Parameter]ParameterInfo{
	ParameterPH: {
		Name:      "pH",
		Label:     "pH",
		Unit:      "",
		Color:     "#4285f4",
		Min:       6.0,
		Max:       8.0,
		Precision: PrecisionOneDecimal,
	},
	ParameterCOD: {
		Name:      "COD",
		Label:     "COD (mg/L)",
		Unit:      "mg/L",
		Color:     "#ea4335",
		Min:       20,
		Max:       120,
		Precision: PrecisionInteger,
	},
	ParameterTSS: {
		Name:      "TSS",
		Label:     "TSS (mg/L)",
		Unit:      "mg/L",
		Color:     "#fbbc05",
		Min:       10,
		Max:       60,
		Precision: PrecisionInteger,
	},
	ParameterNH3N: {
		Name:      "NH3-N",
		Label:     "NH3-N (mg/L)",
		Unit:      "mg/L",
		Color:     "#34a853",
		Min:       1.0,
		Max:       11.0,
		Precision: PrecisionOneDecimal,
	},
	ParameterFlow: {
		Name:      "Flow",
		Label:     "Flow (m³/h)",
		Unit:      "m³/h",
		Color:     "#9c27b0",
		Min:       80,
		Max:       130,
		Precision: PrecisionInteger,
	},
}

// Info returns the registry entry for p
func (p Parameter) Info() (ParameterInfo, bool) {
	info, ok := ParameterRegistry[p]
	return info, ok
}

// Valid reports whether p is a known parameter
func (p Parameter) Valid() bool {
	_, ok := ParameterRegistry[p]
	return ok
}

// ParseParameter accepts either the persisted key ("nh3n") or the display
// name ("NH3-N"), case-insensitively.
func ParseParameter(s string) (Parameter, error) {
	s = strings.TrimSpace(s)
	for _, p := range Parameters {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, ParameterRegistry[p].Name) {
			return p, nil
		}
	}

	keys := make([]string, len(Parameters))
	for i, p := range Parameters {
		keys[i] = string(p)
	}
	return "", fmt.Errorf("invalid parameter: %s (valid: %s)", s, strings.Join(keys, ", "))
}
