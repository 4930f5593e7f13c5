// Package policy carries the scoring tables loaded once at startup:
// sub-score weights, classification thresholds and attestation TTLs.
// Engines take a Policy by value and never reload it mid-flight, which
// keeps every computation attributable to a single policy version.
package policy

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"credit-attestor/internal/domain"
)

// Policy is the full scoring configuration for both attestation kinds.
type Policy struct {
	Version string    `yaml:"version"`
	PCS     PCSPolicy `yaml:"pcs"`
	PRS     PRSPolicy `yaml:"prs"`
}

// PCSPolicy configures credit scoring.
type PCSPolicy struct {
	Weights        PCSWeights     `yaml:"weights"`
	TierThresholds TierThresholds `yaml:"tierThresholds"`
	TTLSeconds     int64          `yaml:"ttlSeconds"`
}

// PCSWeights are the composite weights over the four credit sub-scores.
type PCSWeights struct {
	Age                float64 `yaml:"age"`
	Activity           float64 `yaml:"activity"`
	Liquidity          float64 `yaml:"liquidity"`
	LiquidationPenalty float64 `yaml:"liquidationPenalty"`
}

// TierThresholds are inclusive lower bounds on the metal tier scale.
// A score below Silver classifies as Bronze.
type TierThresholds struct {
	Diamond  int `yaml:"diamond"`
	Platinum int `yaml:"platinum"`
	Gold     int `yaml:"gold"`
	Silver   int `yaml:"silver"`
}

// PRSPolicy configures pool risk scoring.
type PRSPolicy struct {
	Weights         PRSWeights     `yaml:"weights"`
	BandThresholds  BandThresholds `yaml:"bandThresholds"`
	TTLSeconds      int64          `yaml:"ttlSeconds"`
	BatchTTLSeconds int64          `yaml:"batchTtlSeconds"`
}

// PRSWeights are the composite weights over the four risk sub-factors.
type PRSWeights struct {
	Volatility    float64 `yaml:"volatility"`
	Liquidity     float64 `yaml:"liquidity"`
	Concentration float64 `yaml:"concentration"`
	Dispersion    float64 `yaml:"dispersion"`
}

// BandThresholds are exclusive lower bounds on the risk band scale:
// score > Critical is CRITICAL, > High is HIGH, > Medium is MEDIUM,
// anything else LOW.
type BandThresholds struct {
	Critical int `yaml:"critical"`
	High     int `yaml:"high"`
	Medium   int `yaml:"medium"`
}

// Default returns the built-in policy used when no policy file is given.
func Default() Policy {
	return Policy{
		Version: "2025.1",
		PCS: PCSPolicy{
			Weights: PCSWeights{
				Age:                0.25,
				Activity:           0.30,
				Liquidity:          0.25,
				LiquidationPenalty: 0.20,
			},
			TierThresholds: TierThresholds{
				Diamond:  850,
				Platinum: 700,
				Gold:     500,
				Silver:   300,
			},
			TTLSeconds: 3600,
		},
		PRS: PRSPolicy{
			Weights: PRSWeights{
				Volatility:    0.35,
				Liquidity:     0.30,
				Concentration: 0.20,
				Dispersion:    0.15,
			},
			BandThresholds: BandThresholds{
				Critical: 80,
				High:     60,
				Medium:   40,
			},
			TTLSeconds:      1800,
			BatchTTLSeconds: 1200,
		},
	}
}

// Load reads a YAML policy file. Fields absent from the file keep their
// Default values; an empty path returns Default unchanged. The loaded
// policy is validated before it is returned.
func Load(path string) (Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy %q: %w", path, err)
	}
	return p, nil
}

const weightTolerance = 1e-9

// Validate checks weight sums, threshold ordering and TTL positivity.
func (p Policy) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("version must not be empty")
	}

	pcsSum := p.PCS.Weights.Age + p.PCS.Weights.Activity +
		p.PCS.Weights.Liquidity + p.PCS.Weights.LiquidationPenalty
	if math.Abs(pcsSum-1.0) > weightTolerance {
		return fmt.Errorf("pcs weights sum to %v, want 1", pcsSum)
	}

	prsSum := p.PRS.Weights.Volatility + p.PRS.Weights.Liquidity +
		p.PRS.Weights.Concentration + p.PRS.Weights.Dispersion
	if math.Abs(prsSum-1.0) > weightTolerance {
		return fmt.Errorf("prs weights sum to %v, want 1", prsSum)
	}

	t := p.PCS.TierThresholds
	if !(t.Diamond > t.Platinum && t.Platinum > t.Gold && t.Gold > t.Silver && t.Silver > 0) {
		return fmt.Errorf("tier thresholds must be strictly decreasing and positive")
	}

	b := p.PRS.BandThresholds
	if !(b.Critical > b.High && b.High > b.Medium && b.Medium > 0) {
		return fmt.Errorf("band thresholds must be strictly decreasing and positive")
	}

	if p.PCS.TTLSeconds <= 0 || p.PRS.TTLSeconds <= 0 || p.PRS.BatchTTLSeconds <= 0 {
		return fmt.Errorf("attestation TTLs must be positive")
	}
	return nil
}

// TTL returns the attestation lifetime for a kind. Batch-issued PRS
// attestations carry a shorter lifetime than single-item ones.
func (p Policy) TTL(kind domain.Kind, batch bool) time.Duration {
	if kind == domain.KindPRS {
		if batch {
			return time.Duration(p.PRS.BatchTTLSeconds) * time.Second
		}
		return time.Duration(p.PRS.TTLSeconds) * time.Second
	}
	return time.Duration(p.PCS.TTLSeconds) * time.Second
}

// AlgorithmID names the scoring algorithm for proof bundles, for example
// "pcs-2025.1".
func (p Policy) AlgorithmID(kind domain.Kind) string {
	return strings.ToLower(kind.String()) + "-" + p.Version
}
