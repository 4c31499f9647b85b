package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"github.com/fleetward/dispatch/internal/config"
	"github.com/fleetward/dispatch/internal/difficulty"
	"github.com/fleetward/dispatch/internal/forecast"
	"github.com/fleetward/dispatch/internal/health"
	"github.com/fleetward/dispatch/internal/registry"
)

// scalerBundle is the handle stored under registry.KindScaler: the registry
// has one scaler slot, but three components each need their own, so a single
// artifact file carries all three side by side.
type scalerBundle struct {
	Difficulty *difficulty.Scaler `json:"difficulty,omitempty"`
	Health     *health.Scaler     `json:"health,omitempty"`
	Volume     *forecast.Scaler   `json:"volume,omitempty"`
}

func loadJSONFile(path string, target interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// newModelRegistry wires the five C1 loader slots to on-disk JSON artifacts.
// A blank path means the kind is intentionally absent; nothing is trained
// for the explainer yet, so that slot always comes back empty.
func newModelRegistry(cfg *config.Config, log zerolog.Logger) *registry.Registry {
	loaders := map[registry.Kind]registry.Loader{
		registry.KindDifficulty: func(ctx context.Context) (interface{}, error) {
			if cfg.DifficultyModelPath == "" {
				return nil, nil
			}
			var m difficulty.LinearModel
			if err := loadJSONFile(cfg.DifficultyModelPath, &m); err != nil {
				return nil, err
			}
			return &m, nil
		},
		registry.KindHealth: func(ctx context.Context) (interface{}, error) {
			if cfg.HealthModelPath == "" {
				return nil, nil
			}
			var m health.LinearModel
			if err := loadJSONFile(cfg.HealthModelPath, &m); err != nil {
				return nil, err
			}
			return &m, nil
		},
		registry.KindSequence: func(ctx context.Context) (interface{}, error) {
			if cfg.VolumeModelPath == "" {
				return nil, nil
			}
			var m forecast.Model
			if err := loadJSONFile(cfg.VolumeModelPath, &m); err != nil {
				return nil, err
			}
			return &m, nil
		},
		registry.KindScaler: func(ctx context.Context) (interface{}, error) {
			if cfg.ScalersPath == "" {
				return nil, nil
			}
			var b scalerBundle
			if err := loadJSONFile(cfg.ScalersPath, &b); err != nil {
				return nil, err
			}
			return &b, nil
		},
		registry.KindExplainer: func(ctx context.Context) (interface{}, error) {
			return nil, nil
		},
	}
	return registry.New(loaders, log)
}

// difficultyHandles extracts the difficulty model/scaler pair from a loaded
// registry, leaving either nil when its artifact wasn't configured.
func difficultyHandles(reg *registry.Registry) (*difficulty.LinearModel, *difficulty.Scaler) {
	var model *difficulty.LinearModel
	if h, ok := reg.Get(registry.KindDifficulty); ok {
		model = h.(*difficulty.LinearModel)
	}
	var scaler *difficulty.Scaler
	if h, ok := reg.Get(registry.KindScaler); ok {
		scaler = h.(*scalerBundle).Difficulty
	}
	return model, scaler
}

// healthHandles extracts the health model/scaler pair from a loaded registry.
func healthHandles(reg *registry.Registry) (*health.LinearModel, *health.Scaler) {
	var model *health.LinearModel
	if h, ok := reg.Get(registry.KindHealth); ok {
		model = h.(*health.LinearModel)
	}
	var scaler *health.Scaler
	if h, ok := reg.Get(registry.KindScaler); ok {
		scaler = h.(*scalerBundle).Health
	}
	return model, scaler
}

// volumeHandles extracts the volume sequence model/scaler pair from a loaded registry.
func volumeHandles(reg *registry.Registry) (*forecast.Model, *forecast.Scaler) {
	var model *forecast.Model
	if h, ok := reg.Get(registry.KindSequence); ok {
		model = h.(*forecast.Model)
	}
	var scaler *forecast.Scaler
	if h, ok := reg.Get(registry.KindScaler); ok {
		scaler = h.(*scalerBundle).Volume
	}
	return model, scaler
}
