// Package forecast implements the Volume Forecaster (C7) and Earnings
// Forecaster (C8): an autoregressive daily-volume rollout with confidence
// decay and weather adjustment, and a per-driver earnings projection built
// on top of it.
package forecast

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WindowLength is L, the lag window the autoregressive model was trained on.
const WindowLength = 30

const (
	confidenceBase  = 0.95
	confidenceDecay = 0.01

	absenceBaseVolume    = 100.0
	absenceWeekendFactor = 0.7
	absenceConfidence    = 0.5

	weatherBadFactor  = 1.12
	weatherGoodFactor = 0.97
)

// Scaler standardizes the scalar volume series the model was fit on.
type Scaler struct {
	Mean float64
	Std  float64
}

// Transform z-score standardizes a raw volume.
func (s Scaler) Transform(v float64) float64 {
	if s.Std == 0 {
		return v
	}
	return (v - s.Mean) / s.Std
}

// Inverse undoes Transform.
func (s Scaler) Inverse(v float64) float64 {
	return v*s.Std + s.Mean
}

// Model is a linear autoregressive predictor over a length-WindowLength
// scaled lag window.
type Model struct {
	Weights []float64
	Bias    float64
}

// Predict returns the next scaled value given the current scaled window.
func (m Model) Predict(window []float64) float64 {
	n := len(m.Weights)
	if len(window) < n {
		n = len(window)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += m.Weights[i] * window[i]
	}
	return sum + m.Bias
}

// WeatherProvider returns a best-effort current/forecast weather description
// for a city. Implemented by internal/weather against the weather oracle.
type WeatherProvider interface {
	Describe(ctx context.Context, city string) (string, error)
}

// Day is one day of the volume forecast.
type Day struct {
	Date            time.Time
	PredictedVolume int
	Weekday         time.Weekday
	Confidence      float64
}

// Forecaster produces N-day volume forecasts.
type Forecaster struct {
	model    *Model
	scaler   *Scaler
	weather  WeatherProvider
	log      zerolog.Logger
}

// New builds a Forecaster. model/scaler may be nil, forcing the absence
// fallback. weather may be nil, disabling weather adjustment.
func New(model *Model, scaler *Scaler, weather WeatherProvider, log zerolog.Logger) *Forecaster {
	return &Forecaster{model: model, scaler: scaler, weather: weather, log: log.With().Str("component", "forecast").Logger()}
}

// Forecast produces `days` days of volume forecast starting the day after
// `start`, from a history of daily volumes (most recent last). city is used
// for the optional weather adjustment; pass "" to skip it.
func (f *Forecaster) Forecast(ctx context.Context, history []float64, start time.Time, days int, city string) []Day {
	if f.model == nil || f.scaler == nil {
		return f.absenceFallback(start, days)
	}

	window := leftPadWithMean(history, WindowLength)
	scaledWindow := make([]float64, len(window))
	for i, v := range window {
		scaledWindow[i] = f.scaler.Transform(v)
	}

	factor := f.weatherFactor(ctx, city)

	out := make([]Day, 0, days)
	for offset := 1; offset <= days; offset++ {
		scaledPred := f.model.Predict(scaledWindow)
		rawValue := f.scaler.Inverse(scaledPred)
		adjusted := rawValue * factor
		volume := int(math.Round(adjusted))
		if volume < 0 {
			volume = 0
		}

		date := start.AddDate(0, 0, offset)
		out = append(out, Day{
			Date:            date,
			PredictedVolume: volume,
			Weekday:         date.Weekday(),
			Confidence:      confidenceBase * math.Exp(-confidenceDecay*float64(offset)),
		})

		scaledWindow = append(scaledWindow[1:], scaledPred)
	}
	return out
}

func (f *Forecaster) absenceFallback(start time.Time, days int) []Day {
	out := make([]Day, 0, days)
	for offset := 1; offset <= days; offset++ {
		date := start.AddDate(0, 0, offset)
		volume := absenceBaseVolume
		if isWeekend(date.Weekday()) {
			volume = math.Floor(absenceWeekendFactor * absenceBaseVolume)
		}
		out = append(out, Day{
			Date:            date,
			PredictedVolume: int(volume),
			Weekday:         date.Weekday(),
			Confidence:      absenceConfidence,
		})
	}
	return out
}

// weatherFactor makes one best-effort oracle call and derives the
// multiplicative adjustment from the description. Any failure, timeout, or
// nil provider yields the neutral factor 1.0.
func (f *Forecaster) weatherFactor(ctx context.Context, city string) float64 {
	if f.weather == nil || city == "" {
		return 1.0
	}
	desc, err := f.weather.Describe(ctx, city)
	if err != nil {
		f.log.Warn().Err(err).Str("city", city).Msg("weather oracle call failed, skipping adjustment")
		return 1.0
	}
	desc = strings.ToLower(desc)
	switch {
	case strings.Contains(desc, "rain"), strings.Contains(desc, "storm"), strings.Contains(desc, "snow"):
		return weatherBadFactor
	case strings.Contains(desc, "clear"), strings.Contains(desc, "sunny"):
		return weatherGoodFactor
	default:
		return 1.0
	}
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

func leftPadWithMean(history []float64, length int) []float64 {
	if len(history) >= length {
		return history[len(history)-length:]
	}
	mean := 0.0
	if len(history) > 0 {
		sum := 0.0
		for _, v := range history {
			sum += v
		}
		mean = sum / float64(len(history))
	}
	padded := make([]float64, length)
	padCount := length - len(history)
	for i := 0; i < padCount; i++ {
		padded[i] = mean
	}
	copy(padded[padCount:], history)
	return padded
}
