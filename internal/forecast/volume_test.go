package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecast_AbsenceFallback(t *testing.T) {
	f := New(nil, nil, nil, zerolog.Nop())
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) // Saturday

	days := f.Forecast(context.Background(), nil, start, 3, "")
	require.Len(t, days, 3)
	for _, d := range days {
		assert.Equal(t, absenceConfidence, d.Confidence)
		if d.Weekday == time.Saturday || d.Weekday == time.Sunday {
			assert.Equal(t, 70, d.PredictedVolume)
		} else {
			assert.Equal(t, 100, d.PredictedVolume)
		}
	}
}

func TestForecast_ConfidenceDecaysWithOffset(t *testing.T) {
	model := &Model{Weights: make([]float64, WindowLength), Bias: 0}
	scaler := &Scaler{Mean: 100, Std: 10}
	f := New(model, scaler, nil, zerolog.Nop())

	history := make([]float64, 40)
	for i := range history {
		history[i] = 100
	}

	days := f.Forecast(context.Background(), history, time.Now(), 5, "")
	require.Len(t, days, 5)
	for i := 1; i < len(days); i++ {
		assert.Less(t, days[i].Confidence, days[i-1].Confidence)
	}
}

type fakeWeather struct {
	desc string
	err  error
}

func (w fakeWeather) Describe(ctx context.Context, city string) (string, error) {
	return w.desc, w.err
}

func TestForecast_WeatherAdjustmentScalesVolume(t *testing.T) {
	model := &Model{Weights: make([]float64, WindowLength), Bias: 0}
	scaler := &Scaler{Mean: 100, Std: 10}
	history := make([]float64, 40)
	for i := range history {
		history[i] = 100
	}

	plain := New(model, scaler, nil, zerolog.Nop())
	plainDays := plain.Forecast(context.Background(), history, time.Now(), 1, "")

	rainy := New(model, scaler, fakeWeather{desc: "light rain"}, zerolog.Nop())
	rainyDays := rainy.Forecast(context.Background(), history, time.Now(), 1, "Chicago")

	assert.Greater(t, rainyDays[0].PredictedVolume, plainDays[0].PredictedVolume)
}

func TestEarningsForecaster_AggregatesIntoWeeks(t *testing.T) {
	volume := New(nil, nil, nil, zerolog.Nop())
	e := NewEarningsForecaster(volume)

	_, weeks := e.Forecast(context.Background(), nil, time.Now(), 10, "", 0.1, 2.5)
	require.Len(t, weeks, 2)
	assert.Len(t, weeks[0].Days, 7)
	assert.Len(t, weeks[1].Days, 3)
}
