package domain

// ComputationResult is the deterministic output of a scoring run.
// Identical inputs always produce an identical result; wall-clock time
// never enters the computation.
type ComputationResult struct {
	Score          int                `json:"score"`             // PCS [0,1000] or PRS [0,100]
	Classification string             `json:"classification"`    // metal tier (PCS) or risk band (PRS)
	Quality        string             `json:"quality,omitempty"` // coarse quality view of a PCS score
	Breakdown      map[string]float64 `json:"breakdown"`         // sub-score name -> capped value
	Weights        map[string]float64 `json:"weights"`           // sub-score name -> weight, sums to 1
}
