// Package hrv generates simulated HRV readings for demos and the /api/hrv/check endpoint.
package hrv

import (
	"math"
	"math/rand/v2"
	"time"

	"healthflow/internal/core"
)

// Mock data parameters.
const (
	BaselineHRV = 55.0
	// TodayFactor simulates a low-HRV day: 24% below baseline.
	TodayFactor    = 0.76
	TodayRestingHR = 72
	TodaySleep     = 6.0
)

// Generate returns days readings ending on now. The last reading is always the
// simulated low-recovery day; earlier days vary randomly around baseline.
func Generate(days int, now time.Time, rng *rand.Rand) []core.HRVReading {
	if days <= 0 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 0))
	}

	readings := make([]core.HRVReading, 0, days)
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -(days - i - 1))

		var (
			hrvMs     float64
			restingHR int
			sleep     float64
		)
		if i == days-1 {
			hrvMs = BaselineHRV * TodayFactor
			restingHR = TodayRestingHR
			sleep = TodaySleep
		} else {
			hrvMs = BaselineHRV + uniform(rng, -5, 5)
			restingHR = 58 + rng.IntN(8)
			sleep = uniform(rng, 7, 8.5)
		}

		readings = append(readings, core.HRVReading{
			Date:        date.Format("2006-01-02"),
			HRVms:       round1(hrvMs),
			BaselineHRV: BaselineHRV,
			RestingHR:   restingHR,
			SleepHours:  round1(sleep),
		})
	}
	return readings
}

// Today returns today's simulated reading.
func Today(now time.Time) core.HRVReading {
	readings := Generate(7, now, nil)
	return readings[len(readings)-1]
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
