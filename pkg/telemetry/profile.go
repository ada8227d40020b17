package telemetry

import (
	"fmt"
	"strings"
)

// CropProfile is the ideal growing baseline for a crop.
type CropProfile struct {
	Name             string  `yaml:"name" json:"name"`
	IdealMoisture    float64 `yaml:"ideal_moisture" json:"ideal_moisture"`
	IdealTemperature float64 `yaml:"ideal_temperature" json:"ideal_temperature"`
}

var (
	// HighMoistureProfile is the baseline for water-hungry crops.
	HighMoistureProfile = CropProfile{Name: "Tomato", IdealMoisture: 60, IdealTemperature: 24}
	// LowMoistureProfile is the fallback for every crop without a profile of its own.
	LowMoistureProfile = CropProfile{Name: "Wheat", IdealMoisture: 40, IdealTemperature: 28}
)

// ProfileTable resolves crop names to baselines. Lookups are case-insensitive
// and unknown crops resolve to the fallback profile.
type ProfileTable struct {
	profiles map[string]CropProfile
	fallback CropProfile
}

// DefaultProfiles returns the built-in two-profile table.
func DefaultProfiles() *ProfileTable {
	t, _ := NewProfileTable([]CropProfile{HighMoistureProfile, LowMoistureProfile}, LowMoistureProfile.Name)
	return t
}

// NewProfileTable builds a table from profiles. fallback names the profile used
// for unrecognized crops and must be one of profiles.
func NewProfileTable(profiles []CropProfile, fallback string) (*ProfileTable, error) {
	t := &ProfileTable{profiles: make(map[string]CropProfile, len(profiles))}
	for _, p := range profiles {
		key := profileKey(p.Name)
		if key == "" {
			return nil, fmt.Errorf("telemetry: crop profile with empty name")
		}
		if p.IdealMoisture <= 0 {
			return nil, fmt.Errorf("telemetry: crop %q: ideal_moisture must be positive", p.Name)
		}
		t.profiles[key] = p
	}

	fb, ok := t.profiles[profileKey(fallback)]
	if !ok {
		return nil, fmt.Errorf("telemetry: fallback profile %q not defined", fallback)
	}
	t.fallback = fb
	return t, nil
}

// Lookup returns the profile for crop, or the fallback.
func (t *ProfileTable) Lookup(crop string) CropProfile {
	if p, ok := t.profiles[profileKey(crop)]; ok {
		return p
	}
	return t.fallback
}

func profileKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
