package pricing

import (
	"strings"
	"testing"

	"github.com/blogforge/blogforge/internal/config"
)

func testAccountant() *Accountant {
	return NewAccountant(config.PricingConfig{
		Models: map[string]config.ModelRate{
			"fast":    {InputPerMillion: 500, OutputPerMillion: 1500},
			"premium": {InputPerMillion: 10000, OutputPerMillion: 30000},
		},
		PerImage: 40,
	})
}

func TestEstimateCost(t *testing.T) {
	a := testAccountant()

	tests := []struct {
		name          string
		model         string
		input, output int
		want          int64
	}{
		{"fast small rounds up", "fast", 100, 100, 2},
		{"fast exact million", "fast", 1_000_000, 1_000_000, 2000},
		{"premium", "premium", 500, 1500, 50},
		{"zero tokens", "fast", 0, 0, 0},
		{"output only", "fast", 0, 2000, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cost, errCost := a.EstimateCost(tc.model, tc.input, tc.output)
			if errCost != nil {
				t.Fatalf("EstimateCost returned error: %v", errCost)
			}
			if cost != tc.want {
				t.Fatalf("EstimateCost(%s, %d, %d) = %d, want %d",
					tc.model, tc.input, tc.output, cost, tc.want)
			}
		})
	}
}

func TestEstimateCostRejectsUnknownModel(t *testing.T) {
	a := testAccountant()
	if _, errCost := a.EstimateCost("turbo", 10, 10); errCost == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestEstimateCostRejectsNegativeTokens(t *testing.T) {
	a := testAccountant()
	if _, errCost := a.EstimateCost("fast", -1, 10); errCost == nil {
		t.Fatal("expected error for negative input tokens")
	}
	if _, errCost := a.EstimateCost("fast", 10, -1); errCost == nil {
		t.Fatal("expected error for negative output tokens")
	}
}

func TestEstimateImageCost(t *testing.T) {
	a := testAccountant()
	if got := a.EstimateImageCost(3); got != 120 {
		t.Fatalf("EstimateImageCost(3) = %d, want 120", got)
	}
	if got := a.EstimateImageCost(0); got != 0 {
		t.Fatalf("EstimateImageCost(0) = %d, want 0", got)
	}
	if got := a.EstimateImageCost(-2); got != 0 {
		t.Fatalf("EstimateImageCost(-2) = %d, want 0", got)
	}
}

func TestKnownModelAndModels(t *testing.T) {
	a := testAccountant()
	if !a.KnownModel("fast") || !a.KnownModel("premium") {
		t.Fatal("configured models should be known")
	}
	if a.KnownModel("turbo") {
		t.Fatal("unconfigured model should be unknown")
	}
	models := a.Models()
	if len(models) != 2 || models[0] != "fast" || models[1] != "premium" {
		t.Fatalf("Models() = %v, want sorted [fast premium]", models)
	}
}

func TestCountTokensDeterministic(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog."
	first, errFirst := CountTokens(text)
	if errFirst != nil {
		t.Fatalf("CountTokens returned error: %v", errFirst)
	}
	if first <= 0 {
		t.Fatalf("CountTokens = %d, want positive", first)
	}
	second, errSecond := CountTokens(text)
	if errSecond != nil {
		t.Fatalf("CountTokens returned error: %v", errSecond)
	}
	if first != second {
		t.Fatalf("CountTokens not deterministic: %d then %d", first, second)
	}
}

func TestCountTokensEmpty(t *testing.T) {
	count, errCount := CountTokens("")
	if errCount != nil {
		t.Fatalf("CountTokens returned error: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("CountTokens(\"\") = %d, want 0", count)
	}
}

func TestCountTokensGrowsWithText(t *testing.T) {
	short, _ := CountTokens("hello")
	long, errLong := CountTokens(strings.Repeat("hello world ", 50))
	if errLong != nil {
		t.Fatalf("CountTokens returned error: %v", errLong)
	}
	if long <= short {
		t.Fatalf("longer text counted %d tokens, short counted %d", long, short)
	}
}
