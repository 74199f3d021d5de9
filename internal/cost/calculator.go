// Package cost estimates spend on hosted fetch providers.
package cost

import "github.com/sells-group/advisor-scrape/internal/scrape"

// charsPerToken approximates Jina's tokenizer for English page text.
const charsPerToken = 4

// Rates holds per-provider pricing configuration.
type Rates struct {
	Jina      JinaRate      `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlRate `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// JinaRate holds Jina Reader pricing.
type JinaRate struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// FirecrawlRate holds Firecrawl pricing.
type FirecrawlRate struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// Firecrawl computes the cost of scrapes at one credit each, priced from
// the monthly plan.
func (c *Calculator) Firecrawl(scrapes int) float64 {
	if c.rates.Firecrawl.CreditsIncluded <= 0 {
		return 0
	}
	return float64(scrapes) * c.rates.Firecrawl.PlanMonthly / c.rates.Firecrawl.CreditsIncluded
}

// Provider estimates the cost of successful fetches by the named provider.
// The local fetcher is free.
func (c *Calculator) Provider(name string, fetches, chars int) float64 {
	switch name {
	case scrape.ProviderJina:
		return c.Jina(EstimateTokens(chars))
	case scrape.ProviderFirecrawl:
		return c.Firecrawl(fetches)
	default:
		return 0
	}
}

// EstimateTokens approximates the token count of chars characters.
func EstimateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	return (chars + charsPerToken - 1) / charsPerToken
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Jina:      JinaRate{PerMTok: 0.02},
		Firecrawl: FirecrawlRate{PlanMonthly: 19.00, CreditsIncluded: 3000},
	}
}
