// Package vpa holds the data contracts shared across every stage of the
// volume-price-analysis pipeline: bars, per-bar features, context snapshots,
// signal events, setup state, trade intents, and account state.
//
// Every type here is a tagged variant or a plain value struct. None of them
// carry behavior beyond simple accessors — dispatch happens on the tag, not
// through an interface hierarchy.
package vpa

import "time"

// Bar is one OHLCV interval for a single symbol/timeframe.
type Bar struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
	Symbol    string
	BarIndex  int
}

// VolState is the 4-state relative-volume classification.
type VolState string

const (
	VolLow       VolState = "LOW"
	VolAverage   VolState = "AVERAGE"
	VolHigh      VolState = "HIGH"
	VolUltraHigh VolState = "ULTRA_HIGH"
)

func (s VolState) String() string { return string(s) }

// AtLeast reports whether s is ranked >= other on the LOW<AVERAGE<HIGH<ULTRA_HIGH scale.
func (s VolState) AtLeast(other VolState) bool {
	return volStateRank[s] >= volStateRank[other]
}

var volStateRank = map[VolState]int{
	VolLow:       0,
	VolAverage:   1,
	VolHigh:      2,
	VolUltraHigh: 3,
}

// SpreadState is the 3-state relative-spread classification.
type SpreadState string

const (
	SpreadNarrow SpreadState = "NARROW"
	SpreadNormal SpreadState = "NORMAL"
	SpreadWide   SpreadState = "WIDE"
)

func (s SpreadState) String() string { return string(s) }

func (s SpreadState) AtLeast(other SpreadState) bool {
	return spreadStateRank[s] >= spreadStateRank[other]
}

var spreadStateRank = map[SpreadState]int{
	SpreadNarrow: 0,
	SpreadNormal: 1,
	SpreadWide:   2,
}

// CandleType is UP or DOWN depending on close vs open.
type CandleType string

const (
	CandleUp   CandleType = "UP"
	CandleDown CandleType = "DOWN"
)

func (c CandleType) String() string { return string(c) }

// CandleFeatures is the per-bar, timeframe-tagged feature set produced by the
// Feature Engine.
type CandleFeatures struct {
	TF         string
	Bar        Bar
	Spread     float64 // |close - open|, body magnitude
	Range      float64 // high - low
	UpperWick  float64
	LowerWick  float64
	SpreadRel  float64
	VolRel     float64
	VolState   VolState
	SpreadState SpreadState
	CandleType CandleType
}

// Trend is the intraday/daily trend direction classification.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendRange   Trend = "RANGE"
	TrendUnknown Trend = "UNKNOWN"
)

func (t Trend) String() string { return string(t) }

// TrendStrength qualifies Trend.
type TrendStrength string

const (
	TrendWeak     TrendStrength = "WEAK"
	TrendModerate TrendStrength = "MODERATE"
	TrendStrong   TrendStrength = "STRONG"
)

func (t TrendStrength) String() string { return string(t) }

// TrendLocation is where the last close sits within the recent range.
type TrendLocation string

const (
	LocationTop     TrendLocation = "TOP"
	LocationBottom  TrendLocation = "BOTTOM"
	LocationMiddle  TrendLocation = "MIDDLE"
	LocationUnknown TrendLocation = "UNKNOWN"
)

func (l TrendLocation) String() string { return string(l) }

// VolumeTrend is the bar-to-bar volume direction over the trend window.
type VolumeTrend string

const (
	VolumeTrendRising  VolumeTrend = "RISING"
	VolumeTrendFalling VolumeTrend = "FALLING"
	VolumeTrendFlat    VolumeTrend = "FLAT"
	VolumeTrendUnknown VolumeTrend = "UNKNOWN"
)

func (v VolumeTrend) String() string { return string(v) }

// DominantAlignment relates a signal's direction bias to the higher-timeframe trend.
type DominantAlignment string

const (
	AlignmentWith    DominantAlignment = "WITH"
	AlignmentAgainst DominantAlignment = "AGAINST"
	AlignmentUnknown DominantAlignment = "UNKNOWN"
)

func (a DominantAlignment) String() string { return string(a) }

// Congestion describes whether the market is currently range-bound.
type Congestion struct {
	Active    bool
	RangeHigh float64
	RangeLow  float64
}

// ContextSnapshot is the per-timeframe market-structure read produced by the
// Context Engine (and enriched by the Daily-Context Resolver).
type ContextSnapshot struct {
	TF                string
	Trend             Trend
	TrendStrength     TrendStrength
	TrendLocation     TrendLocation
	VolumeTrend       VolumeTrend
	Congestion        Congestion
	DominantAlignment DominantAlignment
}

// SignalClass is the closed set of signal categories.
type SignalClass string

const (
	ClassValidation   SignalClass = "VALIDATION"
	ClassAnomaly      SignalClass = "ANOMALY"
	ClassStrength     SignalClass = "STRENGTH"
	ClassWeakness     SignalClass = "WEAKNESS"
	ClassAvoidance    SignalClass = "AVOIDANCE"
	ClassConfirmation SignalClass = "CONFIRMATION"
	ClassTest         SignalClass = "TEST"
)

func (c SignalClass) String() string { return string(c) }

// DirectionBias is the closed set of directional leanings a signal can carry.
type DirectionBias string

const (
	BiasBullish        DirectionBias = "BULLISH"
	BiasBearish        DirectionBias = "BEARISH"
	BiasBearishOrWait  DirectionBias = "BEARISH_OR_WAIT"
	BiasNeutral        DirectionBias = "NEUTRAL"
)

func (d DirectionBias) String() string { return string(d) }

// SignalEvent is one rule-detector firing. Evidence always carries bar_low
// and bar_high of the triggering bar so downstream stages never reach back
// into the bar store.
type SignalEvent struct {
	ID                  string
	Name                string
	TF                  string
	TS                  time.Time
	SignalClass         SignalClass
	DirectionBias       DirectionBias
	Priority            int
	Evidence            map[string]float64
	RequiresContextGate bool
}

// Key is the gate-stage identity used to key block reasons: "{id}@{ts}".
func (s SignalEvent) Key() string {
	return s.ID + "@" + s.TS.Format("2006-01-02T15:04:05.999999999Z07:00")
}

// Direction is the closed LONG/SHORT set used by setups and trade intents.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

func (d Direction) String() string { return string(d) }

// SetupState is the composer's per-candidate lifecycle state.
type SetupState string

const (
	SetupCandidateState SetupState = "CANDIDATE"
	SetupReady          SetupState = "READY"
	SetupInvalidated    SetupState = "INVALIDATED"
	SetupExpired        SetupState = "EXPIRED"
)

func (s SetupState) String() string { return string(s) }

// SetupCandidate tracks an in-progress multi-bar sequence owned by the composer.
type SetupCandidate struct {
	SetupID       string
	Direction     Direction
	State         SetupState
	Signals       []SignalEvent
	StartedAtBar  int
	ExpiresAtBar  int
}

// SetupMatch is a completed sequence, ready for the Risk Engine.
type SetupMatch struct {
	SetupID     string
	Direction   Direction
	Signals     []SignalEvent
	MatchedAtBar int
	TF          string
}

// TradeIntentStatus is the closed outcome set of the Risk Engine.
type TradeIntentStatus string

const (
	IntentReady          TradeIntentStatus = "READY"
	IntentPendingConfirm TradeIntentStatus = "PENDING_CONFIRM"
	IntentRejected       TradeIntentStatus = "REJECTED"
)

func (s TradeIntentStatus) String() string { return string(s) }

// OrderType is the closed set of order types an EntryPlan can carry.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
)

// EntryPlan describes when and how a READY intent should be executed.
type EntryPlan struct {
	Timing    string // mirrors config.execution.entry_timing, e.g. NEXT_BAR_OPEN
	OrderType OrderType
}

// RiskPlan is the computed stop/size for a TradeIntent.
type RiskPlan struct {
	Stop    float64
	RiskPct float64
	Size    int
}

// TradeIntent is a fully specified, pre-execution trade record.
type TradeIntent struct {
	IntentID     string
	Direction    Direction
	TF           string
	SetupID      string
	Status       TradeIntentStatus
	EntryPlan    EntryPlan
	RiskPlan     RiskPlan
	Rationale    []string
	RejectReason string
}

// AccountState is the per-invocation account snapshot passed into the Risk Engine.
type AccountState struct {
	Equity             float64
	OpenPositionCount  int
	DailyRealizedPnL   float64
}
