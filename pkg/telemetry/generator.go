// Package telemetry synthesizes the soil and climate history a farm node
// reports for a crop over the growing window.
package telemetry

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// SeriesDays is the fixed length of every generated series.
	SeriesDays = 90

	noiseAmplitude    = 2.0
	stressProbability = 0.05
	stressPenalty     = 15.0
	irrigationMargin  = 5.0
	irrigationBoost   = 10.0
	humidityMin       = 40.0
	humidityMax       = 60.0

	// DateLayout is the calendar-day format used for readings.
	DateLayout = "2006-01-02"
)

// Reading is one day of sensor telemetry.
type Reading struct {
	Date            string  `json:"date"`
	SoilMoisture    float64 `json:"soil_moisture"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	IrrigationEvent bool    `json:"irrigation_event"`
	StressDetected  bool    `json:"stress_detected"`
}

// Series is an ordered, oldest-first run of daily readings.
type Series []Reading

// Generator produces synthetic series. It is safe for concurrent use; draws
// from the shared source are serialized so a seeded generator stays reproducible
// for a given call order.
type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	profiles *ProfileTable
	clock    func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithProfiles overrides the crop profile table.
func WithProfiles(t *ProfileTable) Option {
	return func(g *Generator) {
		if t != nil {
			g.profiles = t
		}
	}
}

// WithClock sets the clock used to anchor the newest reading.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGenerator creates a generator drawing from src.
func NewGenerator(src rand.Source, opts ...Option) *Generator {
	g := &Generator{
		rng:      rand.New(src),
		profiles: DefaultProfiles(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewSeededGenerator creates a generator whose series are fully determined by seed.
func NewSeededGenerator(seed uint64, opts ...Option) *Generator {
	return NewGenerator(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15), opts...)
}

// NewTimeSeededGenerator creates a generator seeded from the wall clock.
func NewTimeSeededGenerator(opts ...Option) *Generator {
	return NewSeededGenerator(uint64(time.Now().UnixNano()), opts...)
}

// Profile returns the baseline used for crop.
func (g *Generator) Profile(crop string) CropProfile {
	return g.profiles.Lookup(crop)
}

// Generate returns the 90-day series for a farm/crop and the number of stress days in it.
// farmID does not influence the readings; a node's history is driven by the source alone.
func (g *Generator) Generate(farmID, crop string) (Series, int) {
	profile := g.profiles.Lookup(crop)
	today := truncateDay(g.clock())

	g.mu.Lock()
	defer g.mu.Unlock()

	series := make(Series, 0, SeriesDays)
	stressDays := 0
	for i := SeriesDays - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)

		noise := g.uniform(-noiseAmplitude, noiseAmplitude)
		stressed := g.rng.Float64() > 1-stressProbability

		moisture := profile.IdealMoisture + noise
		if stressed {
			moisture -= stressPenalty
			stressDays++
		}
		temperature := profile.IdealTemperature + noise

		irrigated := false
		if moisture < profile.IdealMoisture-irrigationMargin {
			moisture += irrigationBoost
			irrigated = true
		}

		series = append(series, Reading{
			Date:            day.Format(DateLayout),
			SoilMoisture:    round1(moisture),
			Temperature:     round1(temperature),
			Humidity:        round1(g.uniform(humidityMin, humidityMax)),
			IrrigationEvent: irrigated,
			StressDetected:  stressed,
		})
	}
	return series, stressDays
}

// IrrigationBoost is the moisture added by a corrective irrigation cycle.
func IrrigationBoost() float64 { return irrigationBoost }

// IrrigationMargin is how far below baseline moisture must fall to trigger irrigation.
func IrrigationMargin() float64 { return irrigationMargin }

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
