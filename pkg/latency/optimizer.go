// ABOUTME: Adaptive optimization rules driven by latency trends
// ABOUTME: Fires one-shot tuning actions when rolling averages cross thresholds
package latency

// Action identifies one adaptive optimization request. Subscribers map
// actions to concrete behavior; the monitor only decides when to fire.
type Action string

const (
	// ActionEnablePreloading asks the app to keep samples preloaded.
	ActionEnablePreloading Action = "enablePreloading"
	// ActionOptimizeContext asks the app to retune the audio context
	// for a smaller buffer.
	ActionOptimizeContext Action = "optimizeContext"
)

// Rule fires an action when a category's rolling average exceeds the
// threshold and the action's flag is still clear. Each rule fires at
// most once per monitor; the flag records that it has been applied.
type Rule struct {
	Category    Category
	ThresholdMs float64
	Action      Action
}

// DefaultRules returns the standard adaptive tuning policy.
func DefaultRules() []Rule {
	return []Rule{
		{Category: CategoryTotal, ThresholdMs: 15, Action: ActionEnablePreloading},
		{Category: CategoryBuffer, ThresholdMs: 8, Action: ActionOptimizeContext},
	}
}

// OptimizationFlags records which tuning steps have been applied. Each
// flag latches: once set it stays set for the monitor's lifetime.
type OptimizationFlags struct {
	BufferSizeReduced bool `json:"bufferSizeReduced"`
	MixerPathEnabled  bool `json:"mixerPathEnabled"`
	PreloadingActive  bool `json:"preloadingActive"`
	ContextOptimized  bool `json:"contextOptimized"`
}

// applied reports whether the flag gating an action is set.
func (f OptimizationFlags) applied(a Action) bool {
	switch a {
	case ActionEnablePreloading:
		return f.PreloadingActive
	case ActionOptimizeContext:
		return f.ContextOptimized
	}
	return false
}

// apply latches the flag gating an action.
func (f *OptimizationFlags) apply(a Action) {
	switch a {
	case ActionEnablePreloading:
		f.PreloadingActive = true
	case ActionOptimizeContext:
		f.ContextOptimized = true
	}
}

// applyRulesLocked evaluates the rule table against current stats and
// returns the actions that fired. Caller holds the monitor mutex.
func (m *Monitor) applyRulesLocked(stats map[Category]Stats) []Action {
	var fired []Action
	for _, rule := range m.rules {
		s, ok := stats[rule.Category]
		if !ok || s.Count == 0 {
			continue
		}
		if s.AverageMs <= rule.ThresholdMs {
			continue
		}
		if m.flags.applied(rule.Action) {
			continue
		}
		m.flags.apply(rule.Action)
		fired = append(fired, rule.Action)
	}
	return fired
}
