package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"paperbroker/broker"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Settings{MaxDailyLoss: 500, RiskPerTrade: 1, KillSwitchActive: true})
	assert.NoError(t, err)
	return m
}

func TestNewManagerRejectsInvalidSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    Settings
	}{
		{"zero max loss", Settings{MaxDailyLoss: 0, RiskPerTrade: 1}},
		{"negative max loss", Settings{MaxDailyLoss: -100, RiskPerTrade: 1}},
		{"zero risk per trade", Settings{MaxDailyLoss: 500, RiskPerTrade: 0}},
		{"risk per trade over 100", Settings{MaxDailyLoss: 500, RiskPerTrade: 150}},
		{"negative current loss", Settings{MaxDailyLoss: 500, RiskPerTrade: 1, CurrentDailyLoss: -1}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewManager(tt.s)
			assert.ErrorIs(t, err, broker.ErrInvalidConfig)
		})
	}
}

func TestGateBlocksOnlyBuysWhileTriggered(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	assert.True(t, m.CheckGate(broker.Buy))
	assert.True(t, m.CheckGate(broker.Sell))

	m.Trigger()

	assert.False(t, m.CheckGate(broker.Buy))
	assert.True(t, m.CheckGate(broker.Sell))
}

func TestLossCounterIsMonotonic(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	m.RecordRealizedLoss(-100)
	m.RecordRealizedLoss(250) // gain, ignored
	m.RecordRealizedLoss(-50)

	assert.InDelta(t, 150, m.Snapshot().CurrentDailyLoss, 1e-9)
}

func TestTriggerFiresAtCeiling(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	m.RecordRealizedLoss(-499.99)
	assert.False(t, m.EvaluateTrigger())

	m.RecordRealizedLoss(-0.01)
	assert.True(t, m.EvaluateTrigger())

	// Stays fired across further losses and evaluations.
	m.RecordRealizedLoss(-1000)
	assert.True(t, m.EvaluateTrigger())
	assert.True(t, m.Snapshot().KillSwitchTriggered)
}

func TestTriggerRequiresActiveMonitoring(t *testing.T) {
	t.Parallel()
	m := newManager(t)
	m.Toggle(false)

	m.RecordRealizedLoss(-10000)
	assert.False(t, m.EvaluateTrigger())

	m.Toggle(true)
	assert.True(t, m.EvaluateTrigger())
}

func TestToggleDoesNotClearFiredTrigger(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	m.Trigger()
	m.Toggle(false)

	assert.True(t, m.Snapshot().KillSwitchTriggered)
	assert.False(t, m.CheckGate(broker.Buy))
}

func TestResetClearsTriggerAndLoss(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	m.RecordRealizedLoss(-600)
	m.EvaluateTrigger()
	assert.True(t, m.Snapshot().KillSwitchTriggered)

	m.Reset()

	s := m.Snapshot()
	assert.False(t, s.KillSwitchTriggered)
	assert.Zero(t, s.CurrentDailyLoss)
	assert.True(t, m.CheckGate(broker.Buy))
}

func TestApplyPatchesAndValidates(t *testing.T) {
	t.Parallel()
	m := newManager(t)

	maxLoss := 1000.0
	assert.NoError(t, m.Apply(Update{MaxDailyLoss: &maxLoss}))
	assert.InDelta(t, 1000, m.Snapshot().MaxDailyLoss, 1e-9)
	assert.InDelta(t, 1, m.Snapshot().RiskPerTrade, 1e-9) // untouched

	bad := -5.0
	err := m.Apply(Update{MaxDailyLoss: &bad})
	assert.ErrorIs(t, err, broker.ErrInvalidConfig)

	// Prior settings retained after a rejected update.
	assert.InDelta(t, 1000, m.Snapshot().MaxDailyLoss, 1e-9)
}
