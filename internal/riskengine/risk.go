package riskengine

import (
	"fmt"
	"math"
	"time"

	"github.com/collectflow/collectflow/pkg/models"
)

// Factor weights. The payment delay term overlaps the lateness term: it
// carries 30% of the payment-history weight on top of the full lateness
// contribution, so the effective weights sum to 1.12. The band thresholds
// below were tuned against this scoring, do not normalize it.
const (
	weightLateness   = 0.40
	weightDelay      = 0.12
	weightNonReply   = 0.20
	weightEscalation = 0.10
	weightAccountAge = 0.10
)

// assessRisk combines weighted behavioral factors into a 0-100 score and
// derives the level, prediction, and mitigation list from it.
func assessRisk(customer *models.Customer, payments []models.PaymentRecord, behavior models.BehaviorAnalysis, now time.Time) models.RiskAssessment {
	factors := riskFactors(customer, payments, behavior, now)

	score := 0.0
	for _, f := range factors {
		score += f.Value * f.Weight
	}
	score = math.Max(0, math.Min(100, score))

	level := riskLevel(score)
	return models.RiskAssessment{
		CurrentRisk: level,
		RiskScore:   score,
		Factors:     factors,
		Prediction:  predict(score, behavior),
		Mitigation:  mitigations(level, factors, behavior),
	}
}

func riskFactors(customer *models.Customer, payments []models.PaymentRecord, behavior models.BehaviorAnalysis, now time.Time) []models.RiskFactor {
	latenessRate := 0.0
	if len(payments) > 0 {
		late := 0
		for _, p := range payments {
			if p.Late() {
				late++
			}
		}
		latenessRate = float64(late) / float64(len(payments))
	}

	delayValue := math.Min(behavior.AveragePaymentDelay*2, 100)

	escalationValue := 10.0
	switch behavior.EscalationTendency {
	case models.TendencyHigh:
		escalationValue = 80
	case models.TendencyMedium:
		escalationValue = 40
	}

	ageMonths := now.Sub(customer.AccountCreatedAt).Hours() / 24 / 30
	ageValue := math.Max(0, (12-ageMonths)/12*100)

	return []models.RiskFactor{
		{
			Name:        "payment_lateness",
			Weight:      weightLateness,
			Positive:    true,
			Value:       latenessRate * 100,
			Description: fmt.Sprintf("%.0f%% of payments in the window were late", latenessRate*100),
		},
		{
			Name:        "payment_delay",
			Weight:      weightDelay,
			Positive:    true,
			Value:       delayValue,
			Description: fmt.Sprintf("average settlement delay of %.1f days", behavior.AveragePaymentDelay),
		},
		{
			Name:        "non_response",
			Weight:      weightNonReply,
			Positive:    true,
			Value:       (1 - behavior.ResponseRate) * 100,
			Description: fmt.Sprintf("customer responds to %.0f%% of outreach", behavior.ResponseRate*100),
		},
		{
			Name:        "escalation_tendency",
			Weight:      weightEscalation,
			Positive:    true,
			Value:       escalationValue,
			Description: fmt.Sprintf("%s tendency to escalate contacts", behavior.EscalationTendency),
		},
		{
			Name:        "account_age",
			Weight:      weightAccountAge,
			Positive:    true,
			Value:       ageValue,
			Description: fmt.Sprintf("account is %.0f months old", ageMonths),
		},
	}
}

// riskLevel bands a score. Boundary values belong to the higher band.
func riskLevel(score float64) models.RiskLevel {
	switch {
	case score >= 75:
		return models.RiskCritical
	case score >= 60:
		return models.RiskHigh
	case score >= 40:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func predict(score float64, behavior models.BehaviorAnalysis) models.RiskPrediction {
	likelihood := math.Max(0.1, 1-score/100) + behavior.ResponseRate*0.2
	if likelihood > 0.95 {
		likelihood = 0.95
	}

	multiplier := 0.1
	switch behavior.EscalationTendency {
	case models.TendencyHigh:
		multiplier = 0.8
	case models.TendencyMedium:
		multiplier = 0.4
	}
	escalation := (score / 100) * multiplier
	if escalation > 0.9 {
		escalation = 0.9
	}

	var difficulty models.CollectionDifficulty
	switch {
	case score < 30:
		difficulty = models.DifficultyEasy
	case score < 50:
		difficulty = models.DifficultyModerate
	case score < 75:
		difficulty = models.DifficultyDifficult
	default:
		difficulty = models.DifficultyVeryDifficult
	}

	days := int(math.Round(behavior.AveragePaymentDelay*(1+score/100) + score/10))

	return models.RiskPrediction{
		NextPaymentLikelihood:   likelihood,
		EscalationProbability:   escalation,
		CollectionDifficulty:    difficulty,
		EstimatedCollectionDays: days,
	}
}

// factorMitigations are the tailored suggestions embedded per factor name,
// applied when that factor's value exceeds 60.
var factorMitigations = map[string]string{
	"payment_lateness":    "Require payment confirmation before extending further terms",
	"payment_delay":       "Send reminders ahead of each due date",
	"non_response":        "Rotate to alternative contact channels",
	"escalation_tendency": "Route contacts through a senior agent",
	"account_age":         "Apply new-account verification before extending credit",
}

// mitigations assembles the deduplicated, ordered strategy list.
func mitigations(level models.RiskLevel, factors []models.RiskFactor, behavior models.BehaviorAnalysis) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	switch level {
	case models.RiskCritical:
		add("Escalate to a senior collection specialist")
		add("Document all interactions for potential legal action")
	case models.RiskHigh:
		add("Increase contact frequency")
		add("Offer payment plan options")
	case models.RiskMedium:
		add("Send a formal payment notice before further outreach")
	}

	for _, f := range factors {
		if f.Value > 60 {
			if s, ok := factorMitigations[f.Name]; ok {
				add(s)
			}
		}
	}

	if len(behavior.PreferredContactTimes) > 0 {
		w := behavior.PreferredContactTimes[0]
		add(fmt.Sprintf("Contact on %s between %02d:00 and %02d:00 via %s",
			w.Day, w.HourStart, w.HourStart+4, w.Channel))
	}
	if behavior.CommunicationStyle != models.StyleFormal {
		add(fmt.Sprintf("Adapt messaging to the customer's %s communication style", behavior.CommunicationStyle))
	}

	return out
}
