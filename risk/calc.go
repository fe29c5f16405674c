package risk

import "math"

// Position sizing: how many units can be bought so that a stop-out loses at
// most riskPct of capital.

type SizingInputs struct {
	Capital    float64
	EntryPrice float64
	StopPrice  float64
	RiskPct    float64 // percent of capital, e.g. 1 for 1%
}

type SizingResult struct {
	RiskAmount    float64
	StopDistance  float64
	PositionSize  float64
	PositionValue float64
}

func CalculateSize(in SizingInputs) SizingResult {
	riskAmt := in.Capital * in.RiskPct / 100
	stopDist := math.Abs(in.EntryPrice - in.StopPrice)

	var size float64
	if stopDist > 0 {
		size = math.Floor(riskAmt / stopDist)
	}

	return SizingResult{
		RiskAmount:    riskAmt,
		StopDistance:  stopDist,
		PositionSize:  size,
		PositionValue: size * in.EntryPrice,
	}
}
