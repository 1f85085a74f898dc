// Package pricing maps model identifiers to rate cards and computes
// cost breakdowns from token counts.
package pricing

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"ccstats/internal/config"
)

// Rates holds per-million-token prices for one model.
type Rates struct {
	InputPerMTok      float64
	OutputPerMTok     float64
	CacheWritePerMTok float64
	CacheReadPerMTok  float64
}

// Breakdown holds the cost components of one priced call.
type Breakdown struct {
	InputCost      float64
	OutputCost     float64
	CacheWriteCost float64
	CacheReadCost  float64
	TotalCost      float64
	ResolvedModel  string // canonical rate-table key, empty when unresolved
}

// defaultRates maps canonical model keys to their rate card.
var defaultRates = map[string]Rates{
	"claude-opus-4-1": {
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheWritePerMTok: 18.75, CacheReadPerMTok: 1.50,
	},
	"claude-opus-4": {
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheWritePerMTok: 18.75, CacheReadPerMTok: 1.50,
	},
	"claude-sonnet-4-5": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWritePerMTok: 3.75, CacheReadPerMTok: 0.30,
	},
	"claude-sonnet-4": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWritePerMTok: 3.75, CacheReadPerMTok: 0.30,
	},
	"claude-3-7-sonnet": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWritePerMTok: 3.75, CacheReadPerMTok: 0.30,
	},
	"claude-3-5-sonnet": {
		InputPerMTok: 3.00, OutputPerMTok: 15.00,
		CacheWritePerMTok: 3.75, CacheReadPerMTok: 0.30,
	},
	"claude-haiku-4-5": {
		InputPerMTok: 1.00, OutputPerMTok: 5.00,
		CacheWritePerMTok: 1.25, CacheReadPerMTok: 0.10,
	},
	"claude-3-5-haiku": {
		InputPerMTok: 0.80, OutputPerMTok: 4.00,
		CacheWritePerMTok: 1.00, CacheReadPerMTok: 0.08,
	},
	"claude-3-haiku": {
		InputPerMTok: 0.25, OutputPerMTok: 1.25,
		CacheWritePerMTok: 0.30, CacheReadPerMTok: 0.03,
	},
	"claude-3-opus": {
		InputPerMTok: 15.00, OutputPerMTok: 75.00,
		CacheWritePerMTok: 18.75, CacheReadPerMTok: 1.50,
	},
}

// defaultAliases maps historical and short-form spellings to canonical keys.
var defaultAliases = map[string]string{
	"opus":                  "claude-opus-4-1",
	"sonnet":                "claude-sonnet-4-5",
	"haiku":                 "claude-haiku-4-5",
	"claude-opus-4-0":       "claude-opus-4",
	"claude-sonnet-4-0":     "claude-sonnet-4",
	"claude-4-opus":         "claude-opus-4",
	"claude-4-sonnet":       "claude-sonnet-4",
	"claude-3.5-sonnet":     "claude-3-5-sonnet",
	"claude-3.5-haiku":      "claude-3-5-haiku",
	"claude-3-sonnet":       "claude-3-5-sonnet",
	"claude-instant":        "claude-3-haiku",
	"claude-3-opus-latest":  "claude-3-opus",
	"claude-3-haiku-latest": "claude-3-haiku",
}

// Table resolves model identifiers and prices token usage.
// Rates are immutable after construction.
type Table struct {
	rates   map[string]Rates
	aliases map[string]string
	logger  *zap.Logger

	mu      sync.Mutex
	flagged map[string]struct{} // unresolved models already logged
}

// NewTable builds a pricing table from the built-in rate card plus any
// user overrides from config.
func NewTable(overrides config.PricingOverrides, logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}

	rates := make(map[string]Rates, len(defaultRates))
	for k, v := range defaultRates {
		rates[k] = v
	}
	for name, ov := range overrides.Overrides {
		r := rates[NormalizeModelKey(name)]
		if ov.InputPerMTok != nil {
			r.InputPerMTok = *ov.InputPerMTok
		}
		if ov.OutputPerMTok != nil {
			r.OutputPerMTok = *ov.OutputPerMTok
		}
		if ov.CacheWritePerMTok != nil {
			r.CacheWritePerMTok = *ov.CacheWritePerMTok
		}
		if ov.CacheReadPerMTok != nil {
			r.CacheReadPerMTok = *ov.CacheReadPerMTok
		}
		rates[NormalizeModelKey(name)] = r
	}

	return &Table{
		rates:   rates,
		aliases: defaultAliases,
		logger:  logger,
		flagged: make(map[string]struct{}),
	}
}

// Default returns a table with built-in rates and no overrides.
func Default() *Table {
	return NewTable(config.PricingOverrides{}, nil)
}

// NormalizeModelKey strips date suffixes from model identifiers.
// e.g., "claude-3-haiku-20240307" -> "claude-3-haiku"
func NormalizeModelKey(raw string) string {
	parts := strings.Split(raw, "-")
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if len(last) >= 8 && isAllDigits(last) {
			return strings.Join(parts[:len(parts)-1], "-")
		}
	}
	return raw
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Resolve maps a raw model identifier to a canonical rate-table key.
// Resolution order: exact match, date-stripped match, alias table, then a
// family-name heuristic for previously-unseen identifiers.
func (t *Table) Resolve(raw string) (string, Rates, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if r, ok := t.rates[key]; ok {
		return key, r, true
	}

	normalized := NormalizeModelKey(key)
	if r, ok := t.rates[normalized]; ok {
		return normalized, r, true
	}

	if canonical, ok := t.aliases[normalized]; ok {
		if r, ok := t.rates[canonical]; ok {
			return canonical, r, true
		}
	}

	if canonical := t.classifyByFamily(normalized); canonical != "" {
		if r, ok := t.rates[canonical]; ok {
			return canonical, r, true
		}
	}

	return "", Rates{}, false
}

// classifyByFamily matches unseen identifiers by family substring plus a
// version-digit hint, e.g. "anthropic.claude-sonnet-4-something" -> sonnet 4.
func (t *Table) classifyByFamily(key string) string {
	var family string
	switch {
	case strings.Contains(key, "opus"):
		family = "opus"
	case strings.Contains(key, "sonnet"):
		family = "sonnet"
	case strings.Contains(key, "haiku"):
		family = "haiku"
	default:
		return ""
	}

	major := versionHint(key)
	switch family {
	case "opus":
		if major == 3 {
			return "claude-3-opus"
		}
		return "claude-opus-4-1"
	case "sonnet":
		if major == 3 {
			return "claude-3-5-sonnet"
		}
		return "claude-sonnet-4-5"
	case "haiku":
		if major == 3 {
			return "claude-3-5-haiku"
		}
		return "claude-haiku-4-5"
	}
	return ""
}

// versionHint returns the first single-digit version number found in the
// identifier, or 0 when none is present.
func versionHint(key string) int {
	for _, part := range strings.FieldsFunc(key, func(r rune) bool {
		return r == '-' || r == '.' || r == '_' || r == '@' || r == ':'
	}) {
		if len(part) == 1 && part[0] >= '0' && part[0] <= '9' {
			return int(part[0] - '0')
		}
	}
	return 0
}

// Price computes the cost of one call. Unresolved models contribute zero
// cost and are flagged once for diagnostics; the event itself still counts
// toward token and request totals upstream.
func (t *Table) Price(model string, inputTokens, outputTokens, cacheWriteTokens, cacheReadTokens int64) (float64, Breakdown) {
	canonical, rates, ok := t.Resolve(model)
	if !ok {
		t.flagUnresolved(model)
		return 0, Breakdown{}
	}

	b := Breakdown{
		InputCost:      float64(inputTokens) * rates.InputPerMTok / 1_000_000,
		OutputCost:     float64(outputTokens) * rates.OutputPerMTok / 1_000_000,
		CacheWriteCost: float64(cacheWriteTokens) * rates.CacheWritePerMTok / 1_000_000,
		CacheReadCost:  float64(cacheReadTokens) * rates.CacheReadPerMTok / 1_000_000,
		ResolvedModel:  canonical,
	}
	b.TotalCost = b.InputCost + b.OutputCost + b.CacheWriteCost + b.CacheReadCost
	return b.TotalCost, b
}

// CacheSavings computes how much cache reads saved vs full input pricing.
func (t *Table) CacheSavings(model string, cacheReadTokens int64) float64 {
	_, rates, ok := t.Resolve(model)
	if !ok {
		return 0
	}
	full := float64(cacheReadTokens) * rates.InputPerMTok / 1_000_000
	actual := float64(cacheReadTokens) * rates.CacheReadPerMTok / 1_000_000
	return full - actual
}

func (t *Table) flagUnresolved(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.flagged[model]; seen {
		return
	}
	t.flagged[model] = struct{}{}
	t.logger.Warn("no pricing entry for model, cost set to zero",
		zap.String("model", model))
}
