package domain

// Metal tier labels for PCS classifications, highest first.
const (
	TierDiamond  = "Diamond"
	TierPlatinum = "Platinum"
	TierGold     = "Gold"
	TierSilver   = "Silver"
	TierBronze   = "Bronze"
)

// Risk band labels for PRS classifications, lowest risk first.
const (
	BandLow      = "LOW"
	BandMedium   = "MEDIUM"
	BandHigh     = "HIGH"
	BandCritical = "CRITICAL"
)

// Quality labels form a coarser four-level view of a PCS score used by
// legacy consumers alongside the metal tiers.
const (
	QualityExcellent = "EXCELLENT"
	QualityGood      = "GOOD"
	QualityFair      = "FAIR"
	QualityPoor      = "POOR"
)

// QualityForScore maps a PCS score onto the quality scale. It is a fixed
// view of the same score that produced the metal tier; the two scales are
// never computed from different inputs.
func QualityForScore(score int) string {
	switch {
	case score >= 800:
		return QualityExcellent
	case score >= 600:
		return QualityGood
	case score >= 400:
		return QualityFair
	default:
		return QualityPoor
	}
}
