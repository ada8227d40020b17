package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/telemetry"
)

// CropProfileFile is the on-disk crop profile document.
type CropProfileFile struct {
	Default string                  `yaml:"default"`
	Crops   []telemetry.CropProfile `yaml:"crops"`
}

// LoadCropProfiles reads path and merges it over the built-in profiles.
// An empty path returns the built-in table.
func LoadCropProfiles(path string) (*telemetry.ProfileTable, error) {
	if path == "" {
		return telemetry.DefaultProfiles(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load crop profiles: %w", err)
	}

	var doc CropProfileFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse crop profiles %s: %w", path, err)
	}

	profiles := []telemetry.CropProfile{telemetry.HighMoistureProfile, telemetry.LowMoistureProfile}
	profiles = append(profiles, doc.Crops...)

	fallback := doc.Default
	if fallback == "" {
		fallback = telemetry.LowMoistureProfile.Name
	}

	table, err := telemetry.NewProfileTable(profiles, fallback)
	if err != nil {
		return nil, fmt.Errorf("crop profiles %s: %w", path, err)
	}
	return table, nil
}
