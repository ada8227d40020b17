package telemetry_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/telemetry"
)

// TestSeriesInvariants checks shape and irrigation invariants across arbitrary seeds.
func TestSeriesInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	clock := func() time.Time { return time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC) }

	properties.Property("series has 90 consecutive days", prop.ForAll(
		func(seed uint64) bool {
			series, _ := telemetry.NewSeededGenerator(seed, telemetry.WithClock(clock)).Generate("F-9", "Tomato")
			if len(series) != telemetry.SeriesDays {
				return false
			}
			prev, err := time.Parse(telemetry.DateLayout, series[0].Date)
			if err != nil {
				return false
			}
			for _, r := range series[1:] {
				day, err := time.Parse(telemetry.DateLayout, r.Date)
				if err != nil || !day.Equal(prev.AddDate(0, 0, 1)) {
					return false
				}
				prev = day
			}
			return true
		},
		gen.UInt64(),
	))

	properties.Property("irrigation implies stress under built-in profiles", prop.ForAll(
		func(seed uint64, crop string) bool {
			series, _ := telemetry.NewSeededGenerator(seed, telemetry.WithClock(clock)).Generate("F-9", crop)
			for _, r := range series {
				if r.IrrigationEvent && !r.StressDetected {
					return false
				}
			}
			return true
		},
		gen.UInt64(),
		gen.OneConstOf("Tomato", "Wheat", "Onion"),
	))

	properties.TestingRun(t)
}
