package retrieval

import (
	"github.com/caserag/ragengine/internal/storage/models"
)

// defaultDistribution is the strategy split used when a request carries
// none: 40% direct, 40% hybrid, 20% full-RAG.
var defaultDistribution = map[models.Strategy]float64{
	models.StrategyDirectLLM: 0.4,
	models.StrategyHybrid:    0.4,
	models.StrategyFullRAG:   0.2,
}

// strategyQuotas converts a weight distribution into integer result
// quotas that sum to exactly limit. Negative weights clamp to zero,
// weights are normalized so inconsistent inputs cannot push the
// aggregate past limit, and the integer remainder from flooring goes to
// the last strategy (full-RAG).
func strategyQuotas(distribution map[models.Strategy]float64, limit int) map[models.Strategy]int {
	if len(distribution) == 0 {
		distribution = defaultDistribution
	}

	strategies := models.Strategies()

	weights := make(map[models.Strategy]float64, len(strategies))
	var total float64
	for _, s := range strategies {
		w := distribution[s]
		if w < 0 {
			w = 0
		}
		weights[s] = w
		total += w
	}
	if total == 0 {
		weights = defaultDistribution
		total = 1
	}

	quotas := make(map[models.Strategy]int, len(strategies))
	assigned := 0
	for _, s := range strategies[:len(strategies)-1] {
		q := int(float64(limit) * weights[s] / total)
		quotas[s] = q
		assigned += q
	}

	last := strategies[len(strategies)-1]
	remainder := limit - assigned
	if remainder < 0 {
		remainder = 0
	}
	quotas[last] = remainder

	return quotas
}
