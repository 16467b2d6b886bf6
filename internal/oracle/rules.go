package oracle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// RulesKey is the key of the pricing section inside a rules document.
const RulesKey = "pricing_rules"

const maxRulesFileSize = 1024 * 1024 // 1MB

// Weights are the blend weights used when both cost and reference are
// known. They are not required to sum to 1.
type Weights struct {
	Historical   float64 `koanf:"scprs_historical" json:"scprs_historical"`
	SupplierCost float64 `koanf:"supplier_cost" json:"supplier_cost"`
	MarginGoals  float64 `koanf:"margin_goals" json:"margin_goals"`
}

// Rules are the pricing constants.
type Rules struct {
	UndercutPct            float64 `koanf:"scprs_undercut_pct" json:"scprs_undercut_pct"`
	AggressiveUndercutPct  float64 `koanf:"aggressive_undercut_pct" json:"aggressive_undercut_pct"`
	SafeMarkupPct          float64 `koanf:"safe_markup_pct" json:"safe_markup_pct"`
	DefaultMarkupPct       float64 `koanf:"default_markup_pct" json:"default_markup_pct"`
	ProfitFloorGeneral     float64 `koanf:"profit_floor_general" json:"profit_floor_general"`
	ProfitFloorMarketplace float64 `koanf:"profit_floor_amazon" json:"profit_floor_amazon"`
	ProfitFloorAggressive  float64 `koanf:"profit_floor_aggressive" json:"profit_floor_aggressive"`
	HardFloorMargin        float64 `koanf:"hard_floor_margin" json:"hard_floor_margin"`
	CeilingAlertPct        float64 `koanf:"ceiling_alert_pct" json:"ceiling_alert_pct"`
	StaleDataMonths        int     `koanf:"stale_data_months" json:"stale_data_months"`
	Weights                Weights `koanf:"weights" json:"weights"`
}

// DefaultRules returns the built-in pricing constants.
func DefaultRules() Rules {
	return Rules{
		UndercutPct:            0.01,
		AggressiveUndercutPct:  0.03,
		SafeMarkupPct:          0.30,
		DefaultMarkupPct:       0.25,
		ProfitFloorGeneral:     100,
		ProfitFloorMarketplace: 50,
		ProfitFloorAggressive:  50,
		HardFloorMargin:        25,
		CeilingAlertPct:        0.10,
		StaleDataMonths:        18,
		Weights: Weights{
			Historical:   0.60,
			SupplierCost: 0.30,
			MarginGoals:  0.10,
		},
	}
}

// ProfitFloor returns the minimum profit for the supplier source type.
func (r Rules) ProfitFloor(sourceType string) float64 {
	if IsMarketplace(sourceType) {
		return r.ProfitFloorMarketplace
	}
	return r.ProfitFloorGeneral
}

func (r Rules) toMap() map[string]any {
	return map[string]any{
		"scprs_undercut_pct":      r.UndercutPct,
		"aggressive_undercut_pct": r.AggressiveUndercutPct,
		"safe_markup_pct":         r.SafeMarkupPct,
		"default_markup_pct":      r.DefaultMarkupPct,
		"profit_floor_general":    r.ProfitFloorGeneral,
		"profit_floor_amazon":     r.ProfitFloorMarketplace,
		"profit_floor_aggressive": r.ProfitFloorAggressive,
		"hard_floor_margin":       r.HardFloorMargin,
		"ceiling_alert_pct":       r.CeilingAlertPct,
		"stale_data_months":       r.StaleDataMonths,
		"weights": map[string]any{
			"scprs_historical": r.Weights.Historical,
			"supplier_cost":    r.Weights.SupplierCost,
			"margin_goals":     r.Weights.MarginGoals,
		},
	}
}

// RulesSource resolves the rules for one pricing call. loaded reports
// whether an override document contributed.
type RulesSource interface {
	Rules(overrides map[string]any) (rules Rules, loaded bool)
}

// StaticRules always resolves to the same base rules plus call overrides.
type StaticRules Rules

func (s StaticRules) Rules(overrides map[string]any) (Rules, bool) {
	k := koanf.New(".")
	if err := k.Load(mapProvider(Rules(s).toMap()), nil); err != nil {
		return Rules(s), false
	}
	r, err := mergeOverrides(k, overrides)
	if err != nil {
		return Rules(s), false
	}
	return r, false
}

// FileRules reads the pricing_rules section of a JSON, YAML or TOML
// document on every call and merges it over DefaultRules. A missing or
// unreadable document yields the defaults.
type FileRules struct {
	Path   string
	Logger *zap.Logger
}

// NewFileRules creates a file-backed rules source.
func NewFileRules(path string, logger *zap.Logger) *FileRules {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRules{Path: path, Logger: logger}
}

// Exists reports whether the rules document is present.
func (f *FileRules) Exists() bool {
	if f.Path == "" {
		return false
	}
	_, err := os.Stat(f.Path)
	return err == nil
}

func (f *FileRules) Rules(overrides map[string]any) (Rules, bool) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	k := koanf.New(".")
	_ = k.Load(mapProvider(DefaultRules().toMap()), nil)

	loaded := false
	if f.Path != "" {
		section, err := readRulesSection(f.Path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			logger.Warn("pricing rules unreadable, using defaults",
				zap.String("path", f.Path), zap.Error(err))
		default:
			if err := k.Load(mapProvider(section), nil); err != nil {
				logger.Warn("pricing rules rejected, using defaults",
					zap.String("path", f.Path), zap.Error(err))
			} else {
				loaded = true
			}
		}
	}

	r, err := mergeOverrides(k, overrides)
	if err != nil {
		logger.Warn("pricing rules invalid, using defaults", zap.Error(err))
		return DefaultRules(), false
	}
	return r, loaded
}

func mergeOverrides(k *koanf.Koanf, overrides map[string]any) (Rules, error) {
	if len(overrides) > 0 {
		if err := k.Load(mapProvider(overrides), nil); err != nil {
			return Rules{}, fmt.Errorf("load overrides: %w", err)
		}
	}
	var r Rules
	if err := k.Unmarshal("", &r); err != nil {
		return Rules{}, fmt.Errorf("unmarshal rules: %w", err)
	}
	return r, nil
}

// readRulesSection returns the pricing_rules map of the document at path.
func readRulesSection(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat rules file: %w", err)
	}
	if info.Size() > maxRulesFileSize {
		return nil, fmt.Errorf("rules file too large: %d bytes (max %d)", info.Size(), maxRulesFileSize)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	doc := koanf.New(".")
	if err := doc.Load(rawbytes.Provider(content), parserFor(path)); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if !doc.Exists(RulesKey) {
		return map[string]any{}, nil
	}
	return doc.Cut(RulesKey).Raw(), nil
}

// parserFor picks a koanf parser by extension. JSON is parsed as YAML.
func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return tomlParser{}
	}
	return yaml.Parser()
}

// tomlParser adapts BurntSushi/toml to koanf.Parser.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	var out map[string]any
	if _, err := toml.Decode(string(b), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(m); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// mapProvider is a koanf.Provider over an in-memory map. Dotted keys such as
// "weights.supplier_cost" are expanded so they merge per key.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	cp := maps.Copy(map[string]any(m))
	flat, _ := maps.Flatten(cp, nil, ".")
	return maps.Unflatten(flat, "."), nil
}
