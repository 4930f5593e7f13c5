package domain

// PoolMetrics holds the observed state of a liquidity pool used for
// risk scoring. Ratio-style fields are expected in [0,1]; the scoring
// engine clamps anything outside its working range.
type PoolMetrics struct {
	Liquidity          float64 `json:"liquidity"`          // total pool liquidity, USD
	Volume24h          float64 `json:"volume24h"`          // 24h trade volume, USD
	FeeTier            float64 `json:"feeTier"`            // pool fee fraction (0.003 = 30 bps)
	Volatility         float64 `json:"volatility"`         // annualized price volatility, [0,1]-ish
	ConcentrationRatio float64 `json:"concentrationRatio"` // share held by top providers, [0,1]
	ImpermanentLoss    float64 `json:"impermanentLoss"`    // projected IL fraction, [0,1]
}
