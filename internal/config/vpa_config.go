package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	vpaerrors "github.com/voltix/vpa-engine/internal/errors"
	"github.com/voltix/vpa-engine/internal/safety"
)

// VolThresholds holds the relative-volume classification boundaries.
type VolThresholds struct {
	LowLT       float64 `json:"low_lt"`
	HighGT      float64 `json:"high_gt"`
	UltraHighGT float64 `json:"ultra_high_gt"`
}

// VolConfig is the §3 `vol` config section.
type VolConfig struct {
	AvgWindowN int           `json:"avg_window_n"`
	Thresholds VolThresholds `json:"thresholds"`
}

// SpreadThresholds holds the relative-spread classification boundaries.
type SpreadThresholds struct {
	NarrowLT float64 `json:"narrow_lt"`
	WideGT   float64 `json:"wide_gt"`
}

// SpreadConfig is the §3 `spread` config section.
type SpreadConfig struct {
	AvgWindowM int              `json:"avg_window_m"`
	Thresholds SpreadThresholds `json:"thresholds"`
}

// TrendConfig is the §3 `trend` config section.
type TrendConfig struct {
	WindowK          int     `json:"window_k"`
	LocationLookback int     `json:"location_lookback"`
	CongestionWindow int     `json:"congestion_window"`
	CongestionPct    float64 `json:"congestion_pct"`
}

// SetupConfig is the §3 `setup` config section.
type SetupConfig struct {
	WindowX int `json:"window_x"`
}

// GatesConfig is the §3 `gates` config section. CTX-2 policy is one of
// ALLOW, REDUCE_RISK, DISALLOW.
type GatesConfig struct {
	CTX1TrendLocationRequired    bool   `json:"ctx1_trend_location_required"`
	CTX2DominantAlignmentPolicy  string `json:"ctx2_dominant_alignment_policy"`
	CTX3CongestionAwarenessReq   bool   `json:"ctx3_congestion_awareness_required"`
}

// ExecutionConfig is the §3 `execution` config section.
type ExecutionConfig struct {
	SignalEval     string `json:"signal_eval"`
	EntryTiming    string `json:"entry_timing"`
	IntrabarAllowed bool  `json:"intrabar_allowed"`
}

// HammerThresholds holds body/wick ratio thresholds for the hammer shape:
// a long lower wick, a short upper wick, a small body.
type HammerThresholds struct {
	LowerWickRatioMin float64 `json:"lower_wick_ratio_min"`
	UpperWickRatioMax float64 `json:"upper_wick_ratio_max"`
	BodyRatioMax      float64 `json:"body_ratio_max"`
}

// ShootingStarThresholds holds body/wick ratio thresholds for the
// shooting-star shape: a long upper wick, a short lower wick, a small body.
type ShootingStarThresholds struct {
	UpperWickRatioMin float64 `json:"upper_wick_ratio_min"`
	LowerWickRatioMax float64 `json:"lower_wick_ratio_max"`
	BodyRatioMax      float64 `json:"body_ratio_max"`
}

// LongLeggedDojiThresholds holds ratio thresholds for the long-legged-doji
// shape: both wicks long, body tiny.
type LongLeggedDojiThresholds struct {
	LowerWickRatioMin float64 `json:"lower_wick_ratio_min"`
	UpperWickRatioMin float64 `json:"upper_wick_ratio_min"`
	BodyRatioMax      float64 `json:"body_ratio_max"`
}

// CandlePatternsConfig is the §3 `candle_patterns` config section.
type CandlePatternsConfig struct {
	Hammer         HammerThresholds         `json:"hammer"`
	ShootingStar   ShootingStarThresholds   `json:"shooting_star"`
	LongLeggedDoji LongLeggedDojiThresholds `json:"long_legged_doji"`
}

// RiskConfig is the §3 `risk` config section.
type RiskConfig struct {
	RiskPctPerTrade        float64  `json:"risk_pct_per_trade"`
	MaxConcurrentPositions int      `json:"max_concurrent_positions"`
	CountertrendMultiplier float64  `json:"countertrend_multiplier"`
	DailyLossLimitPct      *float64 `json:"daily_loss_limit_pct,omitempty"`
}

// VolumeGuardConfig is the §3 `volume_guard` config section.
type VolumeGuardConfig struct {
	Enabled      bool    `json:"enabled"`
	MinAvgVolume float64 `json:"min_avg_volume"`
}

// ATRConfig is the §3 `atr` config section.
type ATRConfig struct {
	Period         int     `json:"period"`
	StopMultiplier float64 `json:"stop_multiplier"`
	Enabled        bool    `json:"enabled"`
}

// SlippageConfig is the §3 `slippage` config section.
type SlippageConfig struct {
	Value float64 `json:"value"`
}

// CostsConfig is a SPEC_FULL supplement (original_source's CostsConfig),
// applied by the Backtest Driver alongside slippage.
type CostsConfig struct {
	FeeModel string  `json:"fee_model"` // NONE | PER_SHARE | PCT_NOTIONAL
	FeeValue float64 `json:"fee_value"`
}

// SensitivityConfig is a SPEC_FULL supplement for the near-miss diagnostic
// report. No code reads these fields: `scan` takes its gap threshold from
// its -gap flag. It never feeds back into rule thresholds.
type SensitivityConfig struct {
	Enabled             bool    `json:"enabled"`
	NearMissTolerancePct float64 `json:"near_miss_tolerance_pct"`
}

// VPAConfig is the deep-merged, schema-validated configuration tree
// described in spec §3. It is immutable after Load.
type VPAConfig struct {
	Vol            VolConfig            `json:"vol"`
	Spread         SpreadConfig         `json:"spread"`
	Trend          TrendConfig          `json:"trend"`
	Setup          SetupConfig          `json:"setup"`
	Gates          GatesConfig          `json:"gates"`
	Execution      ExecutionConfig      `json:"execution"`
	CandlePatterns CandlePatternsConfig `json:"candle_patterns"`
	Risk           RiskConfig           `json:"risk"`
	VolumeGuard    VolumeGuardConfig    `json:"volume_guard"`
	ATR            ATRConfig            `json:"atr"`
	Slippage       SlippageConfig       `json:"slippage"`
	Costs          CostsConfig          `json:"costs"`
	Sensitivity    SensitivityConfig    `json:"sensitivity"`
}

// DefaultVPAConfig returns the hard-coded baseline configuration. Field
// values match the reference thresholds used throughout spec §8's
// end-to-end scenarios.
func DefaultVPAConfig() *VPAConfig {
	return &VPAConfig{
		Vol: VolConfig{
			AvgWindowN: 20,
			Thresholds: VolThresholds{LowLT: 0.7, HighGT: 1.5, UltraHighGT: 2.5},
		},
		Spread: SpreadConfig{
			AvgWindowM: 20,
			Thresholds: SpreadThresholds{NarrowLT: 0.7, WideGT: 1.3},
		},
		Trend: TrendConfig{
			WindowK:          20,
			LocationLookback: 20,
			CongestionWindow: 10,
			CongestionPct:    0.5,
		},
		Setup: SetupConfig{WindowX: 5},
		Gates: GatesConfig{
			CTX1TrendLocationRequired:   true,
			CTX2DominantAlignmentPolicy: "DISALLOW",
			CTX3CongestionAwarenessReq:  true,
		},
		Execution: ExecutionConfig{
			SignalEval:      "BAR_CLOSE_ONLY",
			EntryTiming:     "NEXT_BAR_OPEN",
			IntrabarAllowed: false,
		},
		CandlePatterns: CandlePatternsConfig{
			Hammer: HammerThresholds{
				LowerWickRatioMin: 0.6, UpperWickRatioMax: 0.1, BodyRatioMax: 0.3,
			},
			ShootingStar: ShootingStarThresholds{
				UpperWickRatioMin: 0.6, LowerWickRatioMax: 0.1, BodyRatioMax: 0.3,
			},
			LongLeggedDoji: LongLeggedDojiThresholds{
				LowerWickRatioMin: 0.3, UpperWickRatioMin: 0.3, BodyRatioMax: 0.1,
			},
		},
		Risk: RiskConfig{
			RiskPctPerTrade:        0.005,
			MaxConcurrentPositions: 1,
			CountertrendMultiplier: 0.5,
			DailyLossLimitPct:      nil,
		},
		VolumeGuard: VolumeGuardConfig{Enabled: false, MinAvgVolume: 0},
		ATR:         ATRConfig{Period: 14, StopMultiplier: 2.0, Enabled: false},
		Slippage:    SlippageConfig{Value: 5.0},
		Costs:       CostsConfig{FeeModel: "NONE", FeeValue: 0},
		Sensitivity: SensitivityConfig{Enabled: false, NearMissTolerancePct: 0.1},
	}
}

// LoadVPAConfig reads a base config file, deep-merges a per-symbol override
// (vpa.{SYMBOL}.json beside the base file) when present, validates the
// merged document against the schema, and returns the resulting VPAConfig.
//
// symbol may be empty, in which case no override is looked up.
func LoadVPAConfig(basePath, symbol string) (*VPAConfig, error) {
	baseRaw, err := readJSONMap(basePath)
	if err != nil {
		return nil, vpaerrors.NewConfigError("LoadVPAConfig", "read base config", err)
	}

	merged := baseRaw
	if symbol != "" {
		overridePath := filepath.Join(filepath.Dir(basePath), fmt.Sprintf("vpa.%s.json", symbol))
		if _, statErr := os.Stat(overridePath); statErr == nil {
			overrideRaw, err := readJSONMap(overridePath)
			if err != nil {
				return nil, vpaerrors.NewConfigError("LoadVPAConfig", "read symbol override", err)
			}
			merged = DeepMerge(baseRaw, overrideRaw)
		}
	}

	if err := validateSchema(merged); err != nil {
		return nil, vpaerrors.NewConfigError("LoadVPAConfig", "schema validation", err)
	}

	mergedBytes, err := json.Marshal(merged)
	if err != nil {
		return nil, vpaerrors.NewConfigError("LoadVPAConfig", "re-marshal merged config", err)
	}

	cfg := DefaultVPAConfig()
	if err := json.Unmarshal(mergedBytes, cfg); err != nil {
		return nil, vpaerrors.NewConfigError("LoadVPAConfig", "unmarshal merged config", err)
	}
	if err := validateRiskRanges(cfg); err != nil {
		return nil, vpaerrors.NewConfigError("LoadVPAConfig", "risk range validation", err)
	}
	return cfg, nil
}

// validateRiskRanges defensively re-checks the risk-sizing fields the JSON
// schema can't express as numeric bounds: a malformed or hand-edited config
// file shouldn't be able to slip a negative or >100% risk fraction past
// LoadVPAConfig and into the Risk Engine.
func validateRiskRanges(cfg *VPAConfig) error {
	v := safety.NewValidator()

	if r := v.ValidatePercentageRange(cfg.Risk.RiskPctPerTrade, 0, 1, "risk_pct_per_trade"); !r.Valid {
		return fmt.Errorf("%s", r.Message)
	}
	if r := v.ValidatePercentageRange(cfg.Risk.CountertrendMultiplier, 0, 1, "countertrend_multiplier"); !r.Valid {
		return fmt.Errorf("%s", r.Message)
	}
	if cfg.Risk.DailyLossLimitPct != nil {
		if r := v.ValidatePercentageRange(*cfg.Risk.DailyLossLimitPct, 0, 1, "daily_loss_limit_pct"); !r.Valid {
			return fmt.Errorf("%s", r.Message)
		}
	}
	if r := v.ValidatePositiveInteger(cfg.Risk.MaxConcurrentPositions, "max_concurrent_positions"); !r.Valid {
		return fmt.Errorf("%s", r.Message)
	}
	if r := v.ValidateStringNotEmpty(cfg.Execution.EntryTiming, "execution.entry_timing"); !r.Valid {
		return fmt.Errorf("%s", r.Message)
	}

	return nil
}

func readJSONMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// DeepMerge recursively merges override atop base: dict values recurse,
// scalars and arrays replace, new keys are added. base is never mutated.
func DeepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, overrideVal := range override {
		baseVal, exists := out[k]
		if !exists {
			out[k] = overrideVal
			continue
		}
		baseMap, baseIsMap := baseVal.(map[string]any)
		overrideMap, overrideIsMap := overrideVal.(map[string]any)
		if baseIsMap && overrideIsMap {
			out[k] = DeepMerge(baseMap, overrideMap)
		} else {
			out[k] = overrideVal
		}
	}
	return out
}

const vpaConfigSchema = `{
  "type": "object",
  "properties": {
    "gates": {
      "type": "object",
      "properties": {
        "ctx2_dominant_alignment_policy": {
          "type": "string",
          "enum": ["ALLOW", "REDUCE_RISK", "DISALLOW"]
        }
      }
    },
    "execution": {
      "type": "object",
      "properties": {
        "signal_eval": {"type": "string", "enum": ["BAR_CLOSE_ONLY"]},
        "entry_timing": {"type": "string", "enum": ["NEXT_BAR_OPEN"]}
      }
    },
    "costs": {
      "type": "object",
      "properties": {
        "fee_model": {"type": "string", "enum": ["NONE", "PER_SHARE", "PCT_NOTIONAL"]}
      }
    }
  }
}`

func validateSchema(doc map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(vpaConfigSchema)
	docLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("config does not match schema: %s", strings.Join(msgs, "; "))
	}
	return nil
}
