package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-storygen/internal/config"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"run", "serve", "worker"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestRunFlags_OverrideOnlyChangedValues(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--topic", "灯塔看守人", "--n-round", "2", "--concurrency", "4"}))

	cfg := &config.Config{Pipeline: config.PipelineConfig{
		DefaultTopic:  "游戏高手",
		ChapterCount:  20,
		ChapterLength: 1000,
		Investment:    3,
		Rounds:        3,
		Concurrency:   1,
		OutputDir:     ".",
	}}

	var f runFlags
	f.topic, _ = cmd.Flags().GetString("topic")
	f.rounds, _ = cmd.Flags().GetInt("n-round")
	f.concurrency, _ = cmd.Flags().GetInt("concurrency")
	f.apply(cmd, cfg)

	assert.Equal(t, "灯塔看守人", cfg.Pipeline.DefaultTopic)
	assert.Equal(t, 2, cfg.Pipeline.Rounds)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 20, cfg.Pipeline.ChapterCount)
	assert.InDelta(t, 3.0, cfg.Pipeline.Investment, 1e-9)
	assert.Equal(t, ".", cfg.Pipeline.OutputDir)
}

func TestNonZero(t *testing.T) {
	assert.InDelta(t, -1.0, nonZero(0), 1e-9)
	assert.InDelta(t, 2.5, nonZero(2.5), 1e-9)
}

func TestConsumerName(t *testing.T) {
	assert.NotEmpty(t, consumerName())
}

func TestCheckWorkerConfig_RequiresLedger(t *testing.T) {
	cfg := &config.Config{}
	err := checkWorkerConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "features.ledger.enabled")

	cfg.Features.Ledger.Enabled = true
	assert.NoError(t, checkWorkerConfig(cfg))
}
