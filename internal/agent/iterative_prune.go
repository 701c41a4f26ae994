package agent

import (
	"sort"
	"strings"

	"github.com/arjunkori/codelens/internal/types"
)

// roundMetric is one round's entry in the agent's self-monitoring history,
// used by the trend-based stopping rules below.
type roundMetric struct {
	round      int
	confidence int
	lines      int
}

// confidenceGain is the confidence delta versus the previous round, or the
// round-1 confidence itself when there is no previous round.
func confidenceGain(history []roundMetric) int {
	if len(history) == 0 {
		return 0
	}
	if len(history) == 1 {
		return history[0].confidence
	}
	last := history[len(history)-1]
	prev := history[len(history)-2]
	return last.confidence - prev.confidence
}

// roi is confidence gained per line of additional context pulled in this
// round — the denominator floors at 1 so a zero-line round doesn't divide
// by zero or produce an infinite ROI.
func roi(history []roundMetric) float64 {
	if len(history) < 2 {
		return 0
	}
	last := history[len(history)-1]
	prev := history[len(history)-2]
	gain := last.confidence - prev.confidence
	linesAdded := last.lines - prev.lines
	if linesAdded < 1 {
		linesAdded = 1
	}
	return float64(gain) / float64(linesAdded)
}

// isLowPerformance applies the round's cost/benefit check: a round that lost
// confidence outright is always low-performance; one that gained little
// confidence relative to the lines it cost is low-performance only once its
// ROI falls under a threshold that itself tightens as the query gets harder
// or confidence gets closer to done.
func isLowPerformance(history []roundMetric, queryComplexity int) bool {
	if len(history) < 2 {
		return false
	}
	gain := confidenceGain(history)
	if gain < -1 {
		return true
	}
	const minConfidenceGain = 3
	if gain >= minConfidenceGain {
		return false
	}
	last := history[len(history)-1]
	complexityFactor := float64(queryComplexity) / 100.0
	confidenceFactor := float64(100-last.confidence) / 100.0
	minROI := 2.0 * complexityFactor * confidenceFactor
	return roi(history) < minROI
}

// lastTwoRoundsLowPerformance is the "two consecutive unproductive rounds"
// stopping rule.
func lastTwoRoundsLowPerformance(history []roundMetric, queryComplexity int) bool {
	if len(history) < 3 {
		return false
	}
	return isLowPerformance(history, queryComplexity) &&
		isLowPerformance(history[:len(history)-1], queryComplexity)
}

// confidenceHasConverged reports whether the last three rounds' confidences
// span fewer than 2 points — the agent has plateaued and more rounds won't
// move the needle.
func confidenceHasConverged(history []roundMetric) bool {
	if len(history) < 3 {
		return false
	}
	last3 := history[len(history)-3:]
	lo, hi := last3[0].confidence, last3[0].confidence
	for _, m := range last3[1:] {
		if m.confidence < lo {
			lo = m.confidence
		}
		if m.confidence > hi {
			hi = m.confidence
		}
	}
	return hi-lo < 2
}

// budgetTrendUnfavorable projects the average per-round line growth across
// remaining rounds and compares it against what's left of the budget,
// unless the most recent round actually lost confidence (in which case
// pruning harder, not stopping, is the better move).
func budgetTrendUnfavorable(history []roundMetric, remainingRounds, remainingBudget int) bool {
	if len(history) < 2 || remainingRounds <= 0 || remainingBudget <= 0 {
		return false
	}
	if confidenceGain(history) < 0 {
		return false
	}
	totalGrowth := 0
	for i := 1; i < len(history); i++ {
		totalGrowth += history[i].lines - history[i-1].lines
	}
	avgGrowth := float64(totalGrowth) / float64(len(history)-1)
	if avgGrowth <= 0 {
		return false
	}
	estimatedRemaining := avgGrowth * float64(remainingRounds)
	return estimatedRemaining > 1.5*float64(remainingBudget)
}

// efficiencyRating summarizes how economically the retrieval reached its
// final confidence, reported in the result metadata for observability.
func efficiencyRating(rounds, totalLines, lineBudget, confidence int) string {
	usage := 0.0
	if lineBudget > 0 {
		usage = float64(totalLines) / float64(lineBudget)
	}
	switch {
	case confidence >= 90 && usage < 0.5 && rounds <= 2:
		return "excellent"
	case confidence >= 85 && usage < 0.8:
		return "good"
	case confidence >= 70:
		return "acceptable"
	default:
		return "inefficient"
	}
}

// elementSource records how an element entered the gathered set, feeding
// smartPrune's source bonus.
type elementSource string

const (
	sourceBaseline elementSource = "baseline"
	sourceTool     elementSource = "tool"
	sourceGraph    elementSource = "graph"
)

// smartPrune scores each element on relevance, provenance, granularity, and
// size, then greedily keeps elements until the line budget is spent —
// always keeping the top-ranked element and at least minKeep regardless of
// budget, so a tight budget never empties the result set outright.
func smartPrune(elements []types.CodeElement, sources map[string]elementSource, lineBudget int) []types.CodeElement {
	const minKeep = 5
	if len(elements) <= minKeep {
		return elements
	}

	type scored struct {
		elem  types.CodeElement
		score float64
		lines int
	}

	ranked := make([]scored, 0, len(elements))
	for _, e := range elements {
		lines := e.EndLine - e.StartLine + 1
		if lines <= 0 {
			lines = len(strings.Split(e.Code, "\n"))
		}

		relevance := e.TotalScore
		if relevance == 0 {
			relevance = 0.5
		}

		sourceBonus := 0.0
		switch sources[e.ID] {
		case sourceTool:
			sourceBonus = 0.15
		case sourceGraph:
			sourceBonus = 0.05
		case sourceBaseline:
			sourceBonus = 0.1
		}

		typeBonus := 0.0
		granularityBonus := 0.0
		switch e.Type {
		case "file":
			typeBonus = 0.15
		case "class":
			typeBonus = 0.1
			granularityBonus = 0.05
		case "function":
			typeBonus = 0.05
			granularityBonus = 0.1
		}

		sizeScore := 1.0 - float64(lines)/200.0
		if sizeScore < 0 {
			sizeScore = 0
		}

		score := 0.4*relevance + sourceBonus + typeBonus + 0.2*sizeScore + granularityBonus
		ranked = append(ranked, scored{elem: e, score: score, lines: lines})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var kept []types.CodeElement
	totalLines := 0
	for i, r := range ranked {
		if i < minKeep || totalLines+r.lines <= lineBudget {
			kept = append(kept, r.elem)
			totalLines += r.lines
			continue
		}
		if i == 0 {
			kept = append(kept, r.elem)
			totalLines += r.lines
		}
	}
	return kept
}
