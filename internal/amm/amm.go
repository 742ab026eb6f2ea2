// Package amm implements constant-product pool math.
//
// Every function here is pure and deterministic: the same math the pool
// contract enforces on-chain, mirrored locally so agents can quote swaps,
// size liquidity positions and value LP exposure before submitting anything.
package amm

import (
	"errors"
	"math"
	"math/big"
)

// ErrInvalidReserves is returned when a quote requires a ratio over an
// empty reserve.
var ErrInvalidReserves = errors.New("amm: invalid reserves")

// FeeDenominator is the basis-point denominator used for swap fees.
const FeeDenominator = 10000

// QuoteOut returns the output amount for a constant-product swap with the
// fee deducted from the input, matching the pool contract's getAmountOut.
//
//	out = in*(10000-feeBps)*reserveOut / (reserveIn*10000 + in*(10000-feeBps))
//
// Intermediate products exceed 64 bits for realistic reserves, so the
// computation runs over big.Int.
func QuoteOut(amountIn, reserveIn, reserveOut, feeBps uint64) (uint64, error) {
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrInvalidReserves
	}
	if amountIn == 0 {
		return 0, nil
	}

	inWithFee := new(big.Int).Mul(
		new(big.Int).SetUint64(amountIn),
		new(big.Int).SetUint64(FeeDenominator-feeBps),
	)
	numerator := new(big.Int).Mul(inWithFee, new(big.Int).SetUint64(reserveOut))
	denominator := new(big.Int).Add(
		new(big.Int).Mul(new(big.Int).SetUint64(reserveIn), big.NewInt(FeeDenominator)),
		inWithFee,
	)

	out := numerator.Div(numerator, denominator)
	return out.Uint64(), nil
}

// CurrentPrice returns the pool price expressed as token A per token B.
// A zero reserveB means there is no market yet; callers treat a zero price
// as "undefined", so this is not an error.
func CurrentPrice(reserveA, reserveB uint64) float64 {
	if reserveB == 0 {
		return 0
	}
	return float64(reserveA) / float64(reserveB)
}

// OptimalLiquidityAmounts computes how much of each token to deposit.
//
// On an empty pool the target ratio is applied directly to the combined
// available value, scaled by maxRatio and clamped to what the caller holds.
// On a live pool the deposit must preserve the reserve ratio; the branch
// order is significant and deliberate: try to consume token A first, then
// token B, then scale both down proportionally. The branch chosen decides
// which token is left over as dust.
func OptimalLiquidityAmounts(availableA, availableB, reserveA, reserveB uint64, targetRatio, maxRatio float64) (uint64, uint64) {
	if reserveA == 0 || reserveB == 0 {
		if targetRatio <= 0 || targetRatio >= 1 {
			return 0, 0
		}
		totalValueA := float64(availableA) + float64(availableB)*targetRatio/(1-targetRatio)
		amountA := uint64(totalValueA * targetRatio * maxRatio)
		amountB := uint64(float64(amountA) * (1 - targetRatio) / targetRatio)

		amountA = min(amountA, availableA)
		amountB = min(amountB, availableB)
		return amountA, amountB
	}

	poolRatio := float64(reserveA) / float64(reserveB)

	// Try spending all of token A first.
	amountA := uint64(float64(availableA) * maxRatio)
	requiredB := uint64(float64(amountA) / poolRatio)
	if requiredB <= availableB {
		return amountA, requiredB
	}

	// Then all of token B.
	amountB := uint64(float64(availableB) * maxRatio)
	requiredA := uint64(float64(amountB) * poolRatio)
	if requiredA <= availableA {
		return requiredA, amountB
	}

	// Neither side fits alone; scale both down proportionally.
	scale := math.Min(float64(availableA)/float64(requiredA), float64(availableB)/float64(requiredB))
	return uint64(float64(requiredA) * scale), uint64(float64(requiredB) * scale)
}

// ImpermanentLoss returns the LP value divergence between the initial and
// current reserve ratios:
//
//	IL = 2*sqrt(r)/(1+r) - 1, r = (currentA/currentB)/(initialA/initialB)
//
// Any zero reserve leaves the ratio undefined, which reads as zero loss
// rather than an error.
func ImpermanentLoss(initialA, initialB, currentA, currentB uint64) float64 {
	if initialA == 0 || initialB == 0 || currentA == 0 || currentB == 0 {
		return 0
	}

	initialRatio := float64(initialA) / float64(initialB)
	currentRatio := float64(currentA) / float64(currentB)
	if initialRatio == 0 {
		return 0
	}

	r := currentRatio / initialRatio
	return 2*math.Sqrt(r)/(1+r) - 1
}
