// Package risk composes four independent position-safety detectors —
// rug-pull detection, chop (non-trending market) filtering, time-based
// exit scaling, and trailing-stop management — behind a single
// Engine.Evaluate call the orchestrator consults every tick.
package risk

import "time"

// Urgency classifies how aggressively a rug-pull signal should be
// acted on.
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyMedium   Urgency = "MEDIUM"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// ChopAction is the mitigation an AntiChopFilter recommends once
// choppiness crosses its threshold.
type ChopAction string

const (
	ChopActionNone          ChopAction = "NONE"
	ChopActionPause         ChopAction = "PAUSE"
	ChopActionReduceSize    ChopAction = "REDUCE_SIZE"
	ChopActionTightenStops  ChopAction = "TIGHTEN_STOPS"
	ChopActionFilterSignals ChopAction = "FILTER_SIGNALS"
)

// TimeExitMode selects how TimeBasedExitManager scales the effective
// max hold duration.
type TimeExitMode string

const (
	TimeExitHardLimit   TimeExitMode = "HARD_LIMIT"
	TimeExitConditional TimeExitMode = "CONDITIONAL"
	TimeExitProfitOnly  TimeExitMode = "PROFIT_ONLY"
	TimeExitLossOnly    TimeExitMode = "LOSS_ONLY"
)

// RugConfig parameterizes RugDetector.
type RugConfig struct {
	WindowSeconds       int
	MinTicks            int
	TickDropThreshold   float64 // e.g. 0.10 for 10%
	VolumeDropThreshold float64
	VelocityThreshold   float64
	ConfidenceThreshold float64
	LiqDropThreshold    float64
}

// ChopConfig parameterizes AntiChopFilter.
type ChopConfig struct {
	ChoppyThreshold float64
	Mode            ChopAction
	MaxConsecutive  int
	PauseDuration   time.Duration
	RecoveryWait    time.Duration
}

// TimeExitConfig parameterizes TimeBasedExitManager.
type TimeExitConfig struct {
	Mode              TimeExitMode
	MaxHold           time.Duration
	ProfitReduction   float64 // scales MaxHold down when in profit
	LossExtension     float64 // scales MaxHold up when mildly in loss
	QuickExitLossPct  float64 // threshold below which QuickExitTime applies
	QuickExitTime     time.Duration
	FlatRangeThreshold float64
	TimeToFlat        time.Duration
}

// TrailingConfig parameterizes TrailingStop.
type TrailingConfig struct {
	MinProfitBeforeTrailing float64
	TrailingPct             float64
}

// Config bundles all four detector configs, mirroring the nested
// config.RiskConfig struct surfaced to operators.
type Config struct {
	Rug      RugConfig
	Chop     ChopConfig
	TimeExit TimeExitConfig
	Trailing TrailingConfig
}

// Recommendation is the outcome of one Engine.Evaluate call: at most
// one forced action, chosen by the priority order documented on
// Engine.Evaluate.
type Recommendation struct {
	Sell     bool
	Reason   string
	Priority Urgency
	Chop     ChopSignal
}
