package scoring

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/credo-protocol/credo-engine/internal/models"
)

// Ensemble weighting and confidence bounds.
const (
	primaryWeight      = 0.6
	secondaryWeight    = 0.4
	minConfidence      = 0.5
	fallbackConfidence = 0.7
)

// Prediction is the predictive component's output for one feature vector.
type Prediction struct {
	EnsembleScore int                `json:"ensemble_score"`
	Confidence    float64            `json:"confidence"`
	ModelTag      string             `json:"model_type"`
	Individual    map[string]float64 `json:"individual_predictions"`
}

// estimatorParams is one fitted linear estimator.
type estimatorParams struct {
	Weights map[string]float64 `json:"weights"`
	Bias    float64            `json:"bias"`
}

// scalerParams standardizes features for the secondary estimator.
type scalerParams struct {
	Mean map[string]float64 `json:"mean"`
	Std  map[string]float64 `json:"std"`
}

// artifact is the frozen, versioned parameter file produced by the offline
// training pipeline.
type artifact struct {
	Version   string          `json:"version"`
	Trained   bool            `json:"trained"`
	Primary   estimatorParams `json:"primary"`
	Secondary estimatorParams `json:"secondary"`
	Scaler    scalerParams    `json:"scaler"`
}

// Model is the secondary predictive scorer. Without a loaded artifact it
// substitutes an enhanced rule-based estimate at a fixed 0.7 confidence, so
// callers never observe an unusable state.
type Model struct {
	art     artifact
	trained bool
	logger  *slog.Logger
}

func NewModel(logger *slog.Logger) *Model {
	return &Model{logger: logger}
}

// Load reads the artifact at path. A missing file is reported to the caller
// (wrapped os.ErrNotExist) and leaves the model in the untrained state; it is
// never fatal.
func (m *Model) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		m.trained = false
		return fmt.Errorf("failed to read model artifact: %w", err)
	}

	var art artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		m.trained = false
		return fmt.Errorf("failed to parse model artifact: %w", err)
	}

	m.art = art
	m.trained = art.Trained
	m.logger.Info("model artifact loaded", "path", path, "version", art.Version, "trained", art.Trained)
	return nil
}

func (m *Model) Trained() bool {
	return m.trained
}

func (m *Model) Version() string {
	return m.art.Version
}

// Predict scores a feature vector. With a trained artifact it ensembles the
// two estimators and derives confidence from their agreement; otherwise the
// rule-based fallback answers.
func (m *Model) Predict(f FeatureVector) *Prediction {
	if !m.trained {
		return m.ruleBasedFallback(f)
	}

	primary := clamp(m.art.Primary.estimate(f), 0, 1000)
	secondary := clamp(m.art.Secondary.estimate(m.art.Scaler.transform(f)), 0, 1000)

	ensemble := primary*primaryWeight + secondary*secondaryWeight
	agreement := 1 - math.Abs(primary-secondary)/1000
	confidence := math.Max(minConfidence, agreement)

	return &Prediction{
		EnsembleScore: int(ensemble),
		Confidence:    confidence,
		ModelTag:      models.ModelEnsemble,
		Individual: map[string]float64{
			"primary":   primary,
			"secondary": secondary,
		},
	}
}

// estimate computes the linear estimate over the named features. Keys are
// visited in sorted order so the floating-point sum is reproducible.
func (e *estimatorParams) estimate(f FeatureVector) float64 {
	names := make([]string, 0, len(e.Weights))
	for name := range e.Weights {
		names = append(names, name)
	}
	sort.Strings(names)

	sum := e.Bias
	for _, name := range names {
		sum += e.Weights[name] * f[name]
	}
	return sum
}

func (s *scalerParams) transform(f FeatureVector) FeatureVector {
	scaled := make(FeatureVector, len(f))
	for name, v := range f {
		std := s.Std[name]
		if std == 0 {
			std = 1
		}
		scaled[name] = (v - s.Mean[name]) / std
	}
	return scaled
}

// ruleBasedFallback mirrors the five-signal structure of the rule engine but
// scores activity by transaction rate rather than raw count.
func (m *Model) ruleBasedFallback(f FeatureVector) *Prediction {
	walletAge := f["wallet_age_days"]
	txPerDay := f["tx_per_day"]
	liquidations := f["liquidation_count"]
	stablecoinPct := f["stablecoin_percentage"]
	stability := f["balance_stability_score"]

	var ageScore float64
	switch {
	case walletAge >= 730:
		ageScore = 200
	case walletAge >= 365:
		ageScore = 150 + (walletAge-365)*50/365
	default:
		ageScore = walletAge * 150 / 365
	}

	var activityScore float64
	switch {
	case txPerDay >= 1.0:
		activityScore = 200
	case txPerDay >= 0.5:
		activityScore = 150 + (txPerDay-0.5)*100
	case txPerDay >= 0.1:
		activityScore = 100 + (txPerDay-0.1)*125
	default:
		activityScore = txPerDay * 1000
	}

	liquidationScore := math.Max(0, 200-liquidations*50)

	var assetScore float64
	switch {
	case stablecoinPct >= 20 && stablecoinPct <= 60:
		assetScore = 200
	case stablecoinPct >= 10 && stablecoinPct <= 80:
		assetScore = 150
	default:
		assetScore = 100
	}

	total := ageScore + activityScore + liquidationScore + assetScore + stability*2

	return &Prediction{
		EnsembleScore: clampScore(int(total)),
		Confidence:    fallbackConfidence,
		ModelTag:      models.ModelRuleBasedFallback,
		Individual:    map[string]float64{"rule_based": clamp(total, 0, 1000)},
	}
}
