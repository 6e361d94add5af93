package riskengine

import (
	"fmt"
	"sort"
	"time"

	"github.com/collectflow/collectflow/pkg/models"
)

// buildRecommendations ranks suggested next actions for a customer from
// the behavioral and risk views. Urgent sorts first, confidence breaks
// ties within a priority.
func buildRecommendations(behavior models.BehaviorAnalysis, risk models.RiskAssessment, now time.Time) []models.Recommendation {
	var recs []models.Recommendation

	if len(behavior.PreferredContactTimes) > 0 {
		best := behavior.PreferredContactTimes[0]
		recs = append(recs, models.Recommendation{
			Priority:   models.HighPriority,
			Action:     "contact_via_best_window",
			Channel:    best.Channel,
			Confidence: best.ResponseRate,
			Reason: fmt.Sprintf("customer responds best on %s between %02d:00 and %02d:00",
				best.Day, best.HourStart, best.HourStart+4),
		})

		if !inPreferredWindow(behavior.PreferredContactTimes, now) {
			recs = append(recs, models.Recommendation{
				Priority:   models.MediumPriority,
				Action:     "wait_for_preferred_window",
				Confidence: 0.6,
				Reason:     "current time falls outside every preferred contact window",
			})
		}
	}

	recs = append(recs, strategyRecommendation(risk.CurrentRisk))

	for _, pattern := range behavior.Patterns {
		if pattern.Type == models.PatternLate && pattern.Frequency > 0.5 {
			recs = append(recs, models.Recommendation{
				Priority:   models.MediumPriority,
				Action:     "schedule_automated_reminders",
				Confidence: pattern.Confidence,
				Reason:     fmt.Sprintf("%.0f%% of payments arrive late", pattern.Frequency*100),
			})
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority.Rank() > recs[j].Priority.Rank()
		}
		return recs[i].Confidence > recs[j].Confidence
	})
	return recs
}

// inPreferredWindow reports whether now falls inside any preferred
// contact window.
func inPreferredWindow(windows []models.ContactWindow, now time.Time) bool {
	day, hour := now.Weekday(), now.Hour()
	for _, w := range windows {
		if w.Day == day && hour >= w.HourStart && hour < w.HourStart+4 {
			return true
		}
	}
	return false
}

func strategyRecommendation(level models.RiskLevel) models.Recommendation {
	switch level {
	case models.RiskCritical:
		return models.Recommendation{
			Priority:   models.UrgentPriority,
			Action:     "escalate_to_specialist",
			Confidence: 0.9,
			Reason:     "critical risk level",
		}
	case models.RiskHigh:
		return models.Recommendation{
			Priority:   models.HighPriority,
			Action:     "propose_payment_plan",
			Confidence: 0.75,
			Reason:     "high risk level",
		}
	case models.RiskMedium:
		return models.Recommendation{
			Priority:   models.MediumPriority,
			Action:     "send_formal_notice",
			Confidence: 0.6,
			Reason:     "medium risk level",
		}
	default:
		return models.Recommendation{
			Priority:   models.LowPriority,
			Action:     "maintain_standard_cadence",
			Confidence: 0.5,
			Reason:     "low risk level",
		}
	}
}
