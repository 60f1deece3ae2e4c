// Package pricing implements the token accountant: deterministic token
// counting and the credit cost model for text and image generation.
package pricing

import (
	"fmt"
	"sort"

	"github.com/blogforge/blogforge/internal/config"
)

// tokensPerMillion is the rate table denominator.
const tokensPerMillion = 1_000_000

// Accountant maps token counts and image counts to credit costs using the
// configured rate table. It is a pure calculator and holds no mutable state.
type Accountant struct {
	rates    map[string]config.ModelRate
	perImage int64
}

// NewAccountant constructs an Accountant from the pricing configuration.
func NewAccountant(cfg config.PricingConfig) *Accountant {
	rates := make(map[string]config.ModelRate, len(cfg.Models))
	for name, rate := range cfg.Models {
		rates[name] = rate
	}
	return &Accountant{rates: rates, perImage: cfg.PerImage}
}

// KnownModel reports whether the rate table prices the model tier.
func (a *Accountant) KnownModel(model string) bool {
	_, ok := a.rates[model]
	return ok
}

// Models returns the priced model tiers in sorted order.
func (a *Accountant) Models() []string {
	names := make([]string, 0, len(a.rates))
	for name := range a.rates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EstimateCost prices a completion in credits: piecewise-linear per-model
// per-million-token input and output rates, rounded up to whole credits.
func (a *Accountant) EstimateCost(model string, inputTokens, outputTokens int) (int64, error) {
	rate, ok := a.rates[model]
	if !ok {
		return 0, fmt.Errorf("pricing: unknown model %q", model)
	}
	if inputTokens < 0 || outputTokens < 0 {
		return 0, fmt.Errorf("pricing: negative token count")
	}
	cost := ceilDiv(int64(inputTokens)*rate.InputPerMillion, tokensPerMillion) +
		ceilDiv(int64(outputTokens)*rate.OutputPerMillion, tokensPerMillion)
	return cost, nil
}

// EstimateImageCost prices generated images at the flat per-image rate.
func (a *Accountant) EstimateImageCost(count int) int64 {
	if count <= 0 {
		return 0
	}
	return int64(count) * a.perImage
}

func ceilDiv(n, d int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
