package risk

import (
	"fmt"
	"sync"

	"paperbroker/broker"
)

// Settings is the account's risk configuration plus the kill-switch state
// the Manager maintains.
type Settings struct {
	MaxDailyLoss        float64 `json:"maxDailyLoss"`
	CurrentDailyLoss    float64 `json:"currentDailyLoss"`
	RiskPerTrade        float64 `json:"riskPerTrade"` // percent of capital, 0 < x <= 100
	KillSwitchActive    bool    `json:"killSwitchActive"`
	KillSwitchTriggered bool    `json:"killSwitchTriggered"`
}

// Update is a partial patch of Settings. Nil fields are left unchanged.
// CurrentDailyLoss and KillSwitchTriggered have their own operations
// (RecordRealizedLoss, Trigger, Reset) and cannot be patched directly.
type Update struct {
	MaxDailyLoss     *float64 `json:"maxDailyLoss,omitempty"`
	RiskPerTrade     *float64 `json:"riskPerTrade,omitempty"`
	KillSwitchActive *bool    `json:"killSwitchActive,omitempty"`
}

// Manager tracks running daily loss against a ceiling and arms a kill switch
// that blocks new buy-side orders once breached. All transitions are pure
// in-memory state changes; there is no I/O.
type Manager struct {
	mu sync.Mutex
	s  Settings
}

func NewManager(s Settings) (*Manager, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	return &Manager{s: s}, nil
}

func validate(s Settings) error {
	if s.MaxDailyLoss <= 0 {
		return fmt.Errorf("%w: maxDailyLoss must be positive, got %v", broker.ErrInvalidConfig, s.MaxDailyLoss)
	}
	if s.RiskPerTrade <= 0 || s.RiskPerTrade > 100 {
		return fmt.Errorf("%w: riskPerTrade must be in (0, 100], got %v", broker.ErrInvalidConfig, s.RiskPerTrade)
	}
	if s.CurrentDailyLoss < 0 {
		return fmt.Errorf("%w: currentDailyLoss must not be negative, got %v", broker.ErrInvalidConfig, s.CurrentDailyLoss)
	}
	return nil
}

// CheckGate reports whether an order may proceed. Only buy orders are blocked,
// and only while the kill switch has fired.
func (m *Manager) CheckGate(side broker.Side) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s.KillSwitchTriggered && side == broker.Buy {
		return false
	}
	return true
}

// RecordRealizedLoss feeds a realized P&L delta into the daily loss counter.
// Only net negative deltas count; gains never reduce the counter, it is
// monotonic within the trading day.
func (m *Manager) RecordRealizedLoss(delta float64) {
	if delta >= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.CurrentDailyLoss += -delta
}

// EvaluateTrigger arms the kill switch when the daily loss has reached the
// ceiling and monitoring is active. Once fired it stays fired until Reset.
func (m *Manager) EvaluateTrigger() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s.KillSwitchActive && m.s.CurrentDailyLoss >= m.s.MaxDailyLoss {
		m.s.KillSwitchTriggered = true
	}
	return m.s.KillSwitchTriggered
}

// Toggle enables or disables monitoring. A fired trigger is not affected.
func (m *Manager) Toggle(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.KillSwitchActive = active
}

// Trigger fires the kill switch manually.
func (m *Manager) Trigger() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.KillSwitchTriggered = true
}

// Reset clears a fired trigger and zeroes the daily loss counter. This is the
// only way either resets.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s.KillSwitchTriggered = false
	m.s.CurrentDailyLoss = 0
}

// Apply patches the configurable settings. On validation failure nothing
// changes and the prior settings are retained.
func (m *Manager) Apply(u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.s
	if u.MaxDailyLoss != nil {
		next.MaxDailyLoss = *u.MaxDailyLoss
	}
	if u.RiskPerTrade != nil {
		next.RiskPerTrade = *u.RiskPerTrade
	}
	if u.KillSwitchActive != nil {
		next.KillSwitchActive = *u.KillSwitchActive
	}
	if err := validate(next); err != nil {
		return err
	}
	m.s = next
	return nil
}

// Snapshot returns a copy of the current settings.
func (m *Manager) Snapshot() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}
