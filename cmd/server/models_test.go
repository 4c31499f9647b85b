package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetward/dispatch/internal/config"
	"github.com/fleetward/dispatch/internal/registry"
)

func writeJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestNewModelRegistry_BlankPathsLeaveEverythingAbsent(t *testing.T) {
	cfg := &config.Config{}
	reg := newModelRegistry(cfg, zerolog.Nop())
	reg.Load(context.Background())

	for _, kind := range []registry.Kind{registry.KindDifficulty, registry.KindHealth, registry.KindSequence, registry.KindScaler, registry.KindExplainer} {
		_, ok := reg.Get(kind)
		assert.False(t, ok, "kind %s should be absent", kind)
	}

	model, scaler := difficultyHandles(reg)
	assert.Nil(t, model)
	assert.Nil(t, scaler)
}

func TestNewModelRegistry_LoadsConfiguredArtifacts(t *testing.T) {
	dir := t.TempDir()

	diffPath := filepath.Join(dir, "difficulty.json")
	writeJSON(t, diffPath, map[string]interface{}{"Weights": []float64{0.1, 0.2}, "Bias": 1.5})

	healthPath := filepath.Join(dir, "health.json")
	writeJSON(t, healthPath, map[string]interface{}{"Weights": []float64{0.3}, "Bias": -0.5})

	volumePath := filepath.Join(dir, "volume.json")
	writeJSON(t, volumePath, map[string]interface{}{"Weights": []float64{1, 2, 3}, "Bias": 0})

	scalersPath := filepath.Join(dir, "scalers.json")
	writeJSON(t, scalersPath, map[string]interface{}{
		"difficulty": map[string]interface{}{"Mean": []float64{1, 2}, "Std": []float64{1, 1}},
		"health":     map[string]interface{}{"Mean": []float64{0}, "Std": []float64{1}},
		"volume":     map[string]interface{}{"Mean": 100.0, "Std": 25.0},
	})

	cfg := &config.Config{
		DifficultyModelPath: diffPath,
		HealthModelPath:     healthPath,
		VolumeModelPath:     volumePath,
		ScalersPath:         scalersPath,
	}

	reg := newModelRegistry(cfg, zerolog.Nop())
	reg.Load(context.Background())

	diffModel, diffScaler := difficultyHandles(reg)
	require.NotNil(t, diffModel)
	require.NotNil(t, diffScaler)
	assert.Equal(t, []float64{0.1, 0.2}, diffModel.Weights)
	assert.Equal(t, 1.5, diffModel.Bias)
	assert.Equal(t, []float64{1, 2}, diffScaler.Mean)

	healthModel, healthScaler := healthHandles(reg)
	require.NotNil(t, healthModel)
	require.NotNil(t, healthScaler)
	assert.Equal(t, -0.5, healthModel.Bias)

	volumeModel, volumeScaler := volumeHandles(reg)
	require.NotNil(t, volumeModel)
	require.NotNil(t, volumeScaler)
	assert.Equal(t, 100.0, volumeScaler.Mean)
}

func TestNewModelRegistry_MissingFileLeavesKindAbsent(t *testing.T) {
	cfg := &config.Config{DifficultyModelPath: "/nonexistent/path/model.json"}
	reg := newModelRegistry(cfg, zerolog.Nop())
	reg.Load(context.Background())

	model, scaler := difficultyHandles(reg)
	assert.Nil(t, model)
	assert.Nil(t, scaler)
}
