package trust

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bilalbaddi/Veriyield-Neural-chain--2/pkg/telemetry"
)

func makeSeries(stressAt ...int) telemetry.Series {
	flag := make(map[int]bool, len(stressAt))
	for _, i := range stressAt {
		flag[i] = true
	}
	series := make(telemetry.Series, telemetry.SeriesDays)
	for i := range series {
		series[i] = telemetry.Reading{
			Date:         fmt.Sprintf("2026-01-%02d", i%28+1),
			SoilMoisture: 60,
		}
		if flag[i] {
			series[i].StressDetected = true
			series[i].IrrigationEvent = true
			series[i].SoilMoisture = 55
		}
	}
	return series
}

func TestScore(t *testing.T) {
	cases := []struct {
		stress int
		want   int
	}{
		{0, 100},
		{1, 95},
		{2, 90},
		{4, 80},
		{20, 0},
		{21, 0},
		{90, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Score(tc.stress), "stress=%d", tc.stress)
	}
}

func TestEvaluate_NoStress(t *testing.T) {
	a := Evaluate(makeSeries())
	assert.Equal(t, 100, a.Score)
	assert.Equal(t, 0, a.StressDays)
	assert.Equal(t, []string{HarvestReadyLine}, a.Log)
}

func TestEvaluate_LogOrderAndCaps(t *testing.T) {
	series := makeSeries(3, 10, 20, 30, 40)
	series[3].SoilMoisture = 45.2

	a := Evaluate(series)
	require.Equal(t, 75, a.Score)
	require.Len(t, a.Log, 7)

	assert.Equal(t, "⚠ 2026-01-04: Moisture dropped to 45.2%. Alert sent to farmer.", a.Log[0])
	assert.Equal(t, "⚠ 2026-01-11: Moisture dropped to 55.0%. Alert sent to farmer.", a.Log[1])
	assert.True(t, strings.HasPrefix(a.Log[2], "⚠ 2026-01-21"))

	// last three irrigation days, chronological
	assert.Equal(t, "💧 2026-01-21: Verified irrigation cycle completed.", a.Log[3])
	assert.Equal(t, "💧 2026-01-03: Verified irrigation cycle completed.", a.Log[4])
	assert.Equal(t, "💧 2026-01-13: Verified irrigation cycle completed.", a.Log[5])
	assert.Equal(t, HarvestReadyLine, a.Log[6])
}

func TestEvaluate_AllStress(t *testing.T) {
	all := make([]int, telemetry.SeriesDays)
	for i := range all {
		all[i] = i
	}
	a := Evaluate(makeSeries(all...))

	assert.Equal(t, 0, a.Score)
	assert.Equal(t, telemetry.SeriesDays, a.StressDays)
	assert.Len(t, a.Log, 7)
	assert.Equal(t, HarvestReadyLine, a.Log[len(a.Log)-1])
}

func TestEvaluate_ScoreMatchesGenerator(t *testing.T) {
	for seed := uint64(0); seed < 30; seed++ {
		series, stress := telemetry.NewSeededGenerator(seed).Generate("F-001", "Tomato")
		a := Evaluate(series)
		assert.Equal(t, stress, a.StressDays)
		assert.Equal(t, Score(stress), a.Score)
		assert.Equal(t, a.Score == MaxScore, stress == 0)
	}
}
