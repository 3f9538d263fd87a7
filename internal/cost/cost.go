package cost

import (
	"fmt"
	"strings"
)

// Rates are configured as decimal dollars per million tokens. To keep the
// arithmetic exact they are parsed into integers scaled by 10^7 before being
// multiplied by token counts. The summed value is therefore in units of
// 10^-13 dollars (10^-7 dollars per million tokens, times tokens).
const (
	rateFracDigits = 7
	rateScale      = 10_000_000 // 10^rateFracDigits

	// One displayed fractional digit step: the display keeps 8 fractional
	// digits before trimming, so 10^13 / 10^8 scaled units each.
	displayUnit = 100_000

	displayFracDigits = 8
)

// ParseRate converts a decimal dollars-per-million-tokens string into the
// scaled integer representation. An empty string is a zero rate. Digits past
// the seventh decimal place are rejected rather than silently rounded.
func ParseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > rateFracDigits {
		return 0, fmt.Errorf("rate %q has more than %d decimal places", s, rateFracDigits)
	}
	frac += strings.Repeat("0", rateFracDigits-len(frac))

	var scaled int64
	for _, digits := range []string{whole, frac} {
		for _, ch := range digits {
			if ch < '0' || ch > '9' {
				return 0, fmt.Errorf("invalid rate %q", s)
			}
			scaled = scaled*10 + int64(ch-'0')
		}
	}
	return scaled, nil
}

// Calculate returns the display cost of a call as a dollar string, e.g.
// "$0.000675". Thought tokens are billed at the output rate. Trailing zeros
// in the fraction are trimmed, but never below two digits.
func Calculate(promptTokens, thoughtTokens, outputTokens int64, inputRate, outputRate string) (string, error) {
	in, err := ParseRate(inputRate)
	if err != nil {
		return "", fmt.Errorf("input rate: %w", err)
	}
	out, err := ParseRate(outputRate)
	if err != nil {
		return "", fmt.Errorf("output rate: %w", err)
	}

	units := in*promptTokens + out*(outputTokens+thoughtTokens)
	return formatUnits(units), nil
}

func formatUnits(units int64) string {
	display := units / displayUnit

	dollars := display / 100_000_000
	frac := display % 100_000_000

	fracStr := fmt.Sprintf("%0*d", displayFracDigits, frac)
	for len(fracStr) > 2 && fracStr[len(fracStr)-1] == '0' {
		fracStr = fracStr[:len(fracStr)-1]
	}

	return fmt.Sprintf("$%d.%s", dollars, fracStr)
}
