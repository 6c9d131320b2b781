package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// HRVReading is one day of recovery biometrics.
type HRVReading struct {
	Date        string  `json:"date,omitempty"`
	HRVms       float64 `json:"hrv_ms"`
	BaselineHRV float64 `json:"baseline_hrv"`
	RestingHR   int     `json:"resting_hr"`
	SleepHours  float64 `json:"sleep_hours"`
}

// Deviation returns the unrounded HRV deviation from baseline in percent.
// A non-positive baseline yields zero.
func (r HRVReading) Deviation() float64 {
	if r.BaselineHRV <= 0 {
		return 0
	}
	return (r.HRVms - r.BaselineHRV) / r.BaselineHRV * 100
}

// DeviationPct is Deviation rounded to 0.1, for display.
func (r HRVReading) DeviationPct() float64 {
	return math.Round(r.Deviation()*10) / 10
}

// MedicalProfile describes the user's surgical history and medications.
type MedicalProfile struct {
	Surgery      string         `json:"surgery"`
	WeeksPostOp  OptionalNumber `json:"weeks_post_op"`
	Restrictions []string       `json:"restrictions"`
	Medications  []string       `json:"medications"`
}

// Weeks returns the whole number of weeks since surgery (0 when unknown).
func (p MedicalProfile) Weeks() int {
	return int(p.WeeksPostOp.Or(0))
}

// UserContext is the per-session training context.
type UserContext struct {
	TimeMinutes OptionalNumber `json:"time_minutes"`
	Equipment   []string       `json:"equipment"`
	EnergyLevel OptionalNumber `json:"energy_level"`
}

// Defaults for a UserContext with missing fields.
const (
	DefaultEnergyLevel = 5
	DefaultTimeMinutes = 30
	DefaultEquipment   = "bodyweight"
)

// Energy returns the 1-10 energy level, defaulting to DefaultEnergyLevel.
func (u UserContext) Energy() float64 {
	return u.EnergyLevel.Or(DefaultEnergyLevel)
}

// Minutes returns the session length, defaulting to DefaultTimeMinutes.
func (u UserContext) Minutes() int {
	m := int(u.TimeMinutes.Or(DefaultTimeMinutes))
	if m <= 0 {
		return DefaultTimeMinutes
	}
	return m
}

// EquipmentList returns the available equipment, defaulting to bodyweight only.
func (u UserContext) EquipmentList() []string {
	var out []string
	for _, e := range u.Equipment {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return []string{DefaultEquipment}
	}
	return out
}

// OptionalNumber is a JSON number that may be absent.
// It accepts numbers and numeric strings; anything else decodes as absent.
type OptionalNumber struct {
	value float64
	valid bool
}

// Number returns a present OptionalNumber.
func Number(v float64) OptionalNumber {
	return OptionalNumber{value: v, valid: true}
}

// Valid reports whether a value is present.
func (n OptionalNumber) Valid() bool {
	return n.valid
}

// Or returns the value, or def when absent.
func (n OptionalNumber) Or(def float64) float64 {
	if !n.valid {
		return def
	}
	return n.value
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *OptionalNumber) UnmarshalJSON(data []byte) error {
	*n = OptionalNumber{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			*n = Number(v)
		}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*n = Number(v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n OptionalNumber) MarshalJSON() ([]byte, error) {
	if !n.valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.value)
}

// FormatNumber renders v without trailing zeros ("55", "41.8").
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
