// Package trust reduces a telemetry history to a bounded trust score and the
// short agent action log shown alongside a certificate.
package trust

import (
	"fmt"
	"strconv"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/telemetry"
)

const (
	// MaxScore is the score of a series with no stress days.
	MaxScore = 100
	// StressPenalty is deducted per stress day.
	StressPenalty = 5

	maxStressLines     = 3
	maxIrrigationLines = 3

	// HarvestReadyLine terminates every agent log.
	HarvestReadyLine = "✅ Today: Crop is harvest-ready. Quality locked."
)

// Assessment is the outcome of evaluating a series.
type Assessment struct {
	Score      int      `json:"trust_score"`
	StressDays int      `json:"stress_days"`
	Log        []string `json:"agentic_log"`
}

// Evaluate scores series and builds its agent log. The stress count is
// re-derived from the readings themselves.
func Evaluate(series telemetry.Series) Assessment {
	var stress, irrigated []telemetry.Reading
	for _, r := range series {
		if r.StressDetected {
			stress = append(stress, r)
		}
		if r.IrrigationEvent {
			irrigated = append(irrigated, r)
		}
	}

	return Assessment{
		Score:      Score(len(stress)),
		StressDays: len(stress),
		Log:        buildLog(stress, irrigated),
	}
}

// Score maps a stress-day count to a trust score in [0, MaxScore].
func Score(stressDays int) int {
	return max(0, MaxScore-StressPenalty*stressDays)
}

func buildLog(stress, irrigated []telemetry.Reading) []string {
	if len(stress) > maxStressLines {
		stress = stress[:maxStressLines]
	}
	if len(irrigated) > maxIrrigationLines {
		irrigated = irrigated[len(irrigated)-maxIrrigationLines:]
	}

	log := make([]string, 0, len(stress)+len(irrigated)+1)
	for _, r := range stress {
		log = append(log, fmt.Sprintf("⚠ %s: Moisture dropped to %s%%. Alert sent to farmer.",
			r.Date, strconv.FormatFloat(r.SoilMoisture, 'f', 1, 64)))
	}
	for _, r := range irrigated {
		log = append(log, fmt.Sprintf("💧 %s: Verified irrigation cycle completed.", r.Date))
	}
	return append(log, HarvestReadyLine)
}
