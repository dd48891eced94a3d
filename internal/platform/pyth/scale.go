package pyth

import (
	"fmt"
	"math/big"
)

// Scaled converts the oracle price to a fixed-point integer at the given
// decimal scale: round(Mantissa * 10^Exponent * 10^decimals). Rounding is
// half away from zero, which is the settlement value convention the on-chain
// program expects; changing it would change resolved outcomes.
func (p Price) Scaled(decimals int) (int64, error) {
	shift := int(p.Exponent) + decimals

	m := big.NewInt(p.Mantissa)
	if shift >= 0 {
		m.Mul(m, pow10(shift))
		if !m.IsInt64() {
			return 0, fmt.Errorf("pyth: scaled price overflows int64 (mantissa=%d expo=%d decimals=%d)", p.Mantissa, p.Exponent, decimals)
		}
		return m.Int64(), nil
	}

	den := pow10(-shift)
	quo, rem := new(big.Int), new(big.Int)
	quo.QuoRem(m, den, rem)

	// Round half away from zero on the discarded remainder.
	twice := new(big.Int).Abs(rem)
	twice.Lsh(twice, 1)
	if twice.Cmp(den) >= 0 {
		if m.Sign() < 0 {
			quo.Sub(quo, big.NewInt(1))
		} else {
			quo.Add(quo, big.NewInt(1))
		}
	}

	if !quo.IsInt64() {
		return 0, fmt.Errorf("pyth: scaled price overflows int64 (mantissa=%d expo=%d decimals=%d)", p.Mantissa, p.Exponent, decimals)
	}
	return quo.Int64(), nil
}

// Float returns the human-readable price, for logs only. Settlement math
// always goes through Scaled.
func (p Price) Float() float64 {
	f := new(big.Float).SetInt64(p.Mantissa)
	exp := new(big.Float).SetInt(pow10abs(int(p.Exponent)))
	if p.Exponent < 0 {
		f.Quo(f, exp)
	} else {
		f.Mul(f, exp)
	}
	out, _ := f.Float64()
	return out
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func pow10abs(n int) *big.Int {
	if n < 0 {
		n = -n
	}
	return pow10(n)
}
