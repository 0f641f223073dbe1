package normalize

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/chainpulse/internal/domain"
)

// Greeks are the Black-Scholes-Merton sensitivities of one leg.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// BSMGreeks computes European Greeks with zero dividend yield. sigma is
// fractional volatility and t is time to expiry in years. Theta is per
// calendar day and vega per one volatility point. Any non-positive input, or
// a non-finite result, yields zero Greeks.
func BSMGreeks(s, k, t, r, sigma float64, typ domain.OptionType) Greeks {
	if s <= 0 || k <= 0 || sigma <= 0 || t <= 0 {
		return Greeks{}
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	pdfD1 := normPDF(d1)
	discount := r * k * math.Exp(-r*t)

	var g Greeks
	switch typ {
	case domain.OptionTypeCall:
		g.Delta = normCDF(d1)
		g.Theta = (-(s*pdfD1*sigma)/(2*sqrtT) - discount*normCDF(d2)) / 365
	case domain.OptionTypePut:
		g.Delta = normCDF(d1) - 1
		g.Theta = (-(s*pdfD1*sigma)/(2*sqrtT) + discount*normCDF(-d2)) / 365
	default:
		return Greeks{}
	}
	g.Gamma = pdfD1 / (s * sigma * sqrtT)
	g.Vega = s * pdfD1 * sqrtT / 100

	if !finite(g.Delta) || !finite(g.Gamma) || !finite(g.Theta) || !finite(g.Vega) {
		return Greeks{}
	}

	return Greeks{
		Delta: round(g.Delta, 4),
		Gamma: round(g.Gamma, 6),
		Theta: round(g.Theta, 2),
		Vega:  round(g.Vega, 2),
	}
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// round rounds half away from zero to places decimals.
func round(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}
