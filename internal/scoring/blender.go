package scoring

import (
	"math"

	"github.com/credo-protocol/credo-engine/internal/models"
)

// Blend weighting when a true ensemble prediction is available.
const (
	ensembleBlendWeight = 0.7
	ruleBlendWeight     = 0.3
)

// Blend combines the rule-based and predictive scores into the reported
// ScoreResult. A true ensemble prediction is blended 70/30 with the rule
// score; the fallback prediction already embeds rule-based logic and passes
// through unchanged. A nil prediction means the predictive component is
// disabled and the rule score stands alone.
func Blend(ruleScore int, subScores map[string]float64, pred *Prediction) models.ScoreResult {
	if pred == nil {
		return models.ScoreResult{
			Score:      clampScore(ruleScore),
			ModelType:  models.ModelRuleBased,
			Confidence: 1.0,
			SubScores:  subScores,
		}
	}

	score := pred.EnsembleScore
	if pred.ModelTag == models.ModelEnsemble {
		score = int(math.Round(float64(pred.EnsembleScore)*ensembleBlendWeight + float64(ruleScore)*ruleBlendWeight))
	}

	return models.ScoreResult{
		Score:      clampScore(score),
		ModelType:  pred.ModelTag,
		Confidence: pred.Confidence,
		SubScores:  subScores,
	}
}
