// Package payout is the pure math behind every settlement: fee and pot
// computation for symmetric games, equal splits for elimination rounds,
// and probability-based multipliers for dice-style house games.
package payout

import "github.com/shopspring/decimal"

const bpsDenominator = 10_000

// Fee charges feeBps basis points on pot, rounding up. Ceiling rounding
// keeps the fee strictly positive for any non-zero pot and non-zero rate,
// so integer truncation can never short the protocol.
func Fee(pot, feeBps int64) int64 {
	if pot <= 0 || feeBps <= 0 {
		return 0
	}
	return (pot*feeBps + bpsDenominator - 1) / bpsDenominator
}

// Payout is the winner's take: pot minus fee.
func Payout(pot, feeBps int64) int64 {
	return pot - Fee(pot, feeBps)
}

// SplitEqual divides amount into n equal integer shares. The remainder is
// returned separately so the caller can fold it into the collected fee and
// keep conservation exact.
func SplitEqual(amount int64, n int) (share, remainder int64) {
	if n <= 0 || amount <= 0 {
		return 0, amount
	}
	share = amount / int64(n)
	remainder = amount - share*int64(n)
	return share, remainder
}

// Multiplier returns (1 / winProb) * (1 - houseEdge). The player's expected
// return is stake * (1 - houseEdge) for every probability, which makes the
// house edge probability-independent by construction.
func Multiplier(winProb decimal.Decimal, houseEdgeBps int64) decimal.Decimal {
	if winProb.Sign() <= 0 {
		return decimal.Zero
	}
	edge := decimal.NewFromInt(bpsDenominator - houseEdgeBps).
		Div(decimal.NewFromInt(bpsDenominator))
	return edge.Div(winProb)
}

// DiceMultiplier is Multiplier for a roll-under target: a roll is uniform in
// [0, 100) and wins when strictly below target, so winProb = target / 100.
func DiceMultiplier(target int, houseEdgeBps int64) decimal.Decimal {
	if target <= 0 || target >= 100 {
		return decimal.Zero
	}
	p := decimal.NewFromInt(int64(target)).Div(decimal.NewFromInt(100))
	return Multiplier(p, houseEdgeBps)
}

// DiceGross is the gross payout of a winning dice bet before fees, floored
// to whole units. The same value is the bet's maximum possible payout, which
// the bankroll exposure check runs against before escrow.
func DiceGross(stake int64, target int, houseEdgeBps int64) int64 {
	m := DiceMultiplier(target, houseEdgeBps)
	if m.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(stake).Mul(m).Floor().IntPart()
}
