// Package scoring implements the deterministic credit and pool risk
// scoring functions. Both are pure: identical inputs produce identical
// scores and breakdowns regardless of wall-clock time, so engines can be
// shared freely across concurrent requests.
package scoring

import (
	"math"

	"credit-attestor/internal/domain"
	"credit-attestor/internal/policy"
)

// Sub-score names used as breakdown and weight keys.
const (
	SubScoreAge                = "age"
	SubScoreActivity           = "activity"
	SubScoreLiquidity          = "liquidity"
	SubScoreLiquidationPenalty = "liquidationPenalty"

	SubRiskVolatility    = "volatility"
	SubRiskLiquidity     = "liquidity"
	SubRiskConcentration = "concentration"
	SubRiskDispersion    = "dispersion"
)

// PCS sub-scores live in [0,1000], PRS sub-risks in [0,100].
const (
	pcsMax = 1000.0
	prsMax = 100.0
)

// referenceFeeTier is the fee level treated as neutral by the dispersion
// factor; pools priced away from it in either direction score riskier.
const referenceFeeTier = 0.003

// Engine evaluates wallet features and pool metrics under one policy.
type Engine struct {
	policy policy.Policy
}

// NewEngine returns an engine bound to the given policy tables.
func NewEngine(p policy.Policy) *Engine {
	return &Engine{policy: p}
}

// PolicyVersion reports the version of the policy the engine scores under.
func (e *Engine) PolicyVersion() string {
	return e.policy.Version
}

// ComputePCS scores wallet features on the 0-1000 credit scale.
// Out-of-range inputs are clamped to their valid domain before scoring;
// well-formed numeric input never produces an error.
func (e *Engine) ComputePCS(f domain.WalletFeatures) domain.ComputationResult {
	walletAge := nonNegative(float64(f.WalletAge))
	txCount := nonNegative(float64(f.TransactionCount))
	successRate := clamp(sanitize(f.SuccessRate), 0, 1)
	lpContribution := nonNegative(sanitize(f.LPContribution))
	liquidations := nonNegative(float64(f.LiquidationCount))

	age := math.Min(pcsMax, walletAge*1.2)
	activity := math.Min(pcsMax, math.Log10(txCount+1)*200+successRate*600)
	liquidity := math.Min(pcsMax, math.Log10(lpContribution+1)*300)
	penalty := math.Max(0, pcsMax-liquidations*200)

	w := e.policy.PCS.Weights
	composite := w.Age*age + w.Activity*activity + w.Liquidity*liquidity + w.LiquidationPenalty*penalty
	score := int(math.Round(clamp(composite, 0, pcsMax)))

	return domain.ComputationResult{
		Score:          score,
		Classification: e.tierFor(score),
		Quality:        domain.QualityForScore(score),
		Breakdown: map[string]float64{
			SubScoreAge:                age,
			SubScoreActivity:           activity,
			SubScoreLiquidity:          liquidity,
			SubScoreLiquidationPenalty: penalty,
		},
		Weights: map[string]float64{
			SubScoreAge:                w.Age,
			SubScoreActivity:           w.Activity,
			SubScoreLiquidity:          w.Liquidity,
			SubScoreLiquidationPenalty: w.LiquidationPenalty,
		},
	}
}

// ComputePRS scores pool metrics on the 0-100 risk scale, higher meaning
// riskier. Sub-risks are each capped to [0,100] before weighting.
func (e *Engine) ComputePRS(m domain.PoolMetrics) domain.ComputationResult {
	liquidity := nonNegative(sanitize(m.Liquidity))
	feeTier := nonNegative(sanitize(m.FeeTier))
	volatility := nonNegative(sanitize(m.Volatility))
	concentration := nonNegative(sanitize(m.ConcentrationRatio))
	impermanentLoss := nonNegative(sanitize(m.ImpermanentLoss))

	volRisk := math.Min(prsMax, volatility*125)
	liqRisk := math.Max(0, prsMax-12.5*math.Log10(liquidity+1))
	concRisk := math.Min(prsMax, concentration*125)

	dispersion := impermanentLoss * 200
	if feeTier > 0 {
		dispersion += math.Abs(feeTier-referenceFeeTier) * 2000
	}
	dispRisk := math.Min(prsMax, dispersion)

	w := e.policy.PRS.Weights
	composite := w.Volatility*volRisk + w.Liquidity*liqRisk + w.Concentration*concRisk + w.Dispersion*dispRisk
	score := int(math.Round(clamp(composite, 0, prsMax)))

	return domain.ComputationResult{
		Score:          score,
		Classification: e.bandFor(score),
		Breakdown: map[string]float64{
			SubRiskVolatility:    volRisk,
			SubRiskLiquidity:     liqRisk,
			SubRiskConcentration: concRisk,
			SubRiskDispersion:    dispRisk,
		},
		Weights: map[string]float64{
			SubRiskVolatility:    w.Volatility,
			SubRiskLiquidity:     w.Liquidity,
			SubRiskConcentration: w.Concentration,
			SubRiskDispersion:    w.Dispersion,
		},
	}
}

// tierFor maps a PCS score onto the metal tier scale using the policy's
// inclusive lower bounds.
func (e *Engine) tierFor(score int) string {
	t := e.policy.PCS.TierThresholds
	switch {
	case score >= t.Diamond:
		return domain.TierDiamond
	case score >= t.Platinum:
		return domain.TierPlatinum
	case score >= t.Gold:
		return domain.TierGold
	case score >= t.Silver:
		return domain.TierSilver
	default:
		return domain.TierBronze
	}
}

// bandFor maps a PRS score onto the risk band scale using the policy's
// exclusive lower bounds.
func (e *Engine) bandFor(score int) string {
	b := e.policy.PRS.BandThresholds
	switch {
	case score > b.Critical:
		return domain.BandCritical
	case score > b.High:
		return domain.BandHigh
	case score > b.Medium:
		return domain.BandMedium
	default:
		return domain.BandLow
	}
}

// sanitize zeroes NaN and infinities before any math touches them.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func nonNegative(v float64) float64 {
	return math.Max(0, v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
