// Package tax computes the GST applied on top of every payable amount.
package tax

import "math"

// GSTRate is the fixed fraction applied to purchase prices.
const GSTRate = 0.18

// ComputeGST calculates tax added on top of the amount.
// Rounding happens only here to keep stored values integer-safe.
func ComputeGST(amount int64) int64 {
	return computeExclusive(amount, GSTRate)
}

// TotalWithGST returns amount plus its GST.
func TotalWithGST(amount int64) int64 {
	return amount + ComputeGST(amount)
}

func computeExclusive(amount int64, rate float64) int64 {
	if amount <= 0 || rate <= 0 {
		return 0
	}

	tax := float64(amount) * rate
	result := int64(math.Round(tax))
	if result < 0 {
		return 0
	}
	return result
}
