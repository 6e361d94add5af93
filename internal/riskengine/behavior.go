package riskengine

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/collectflow/collectflow/pkg/models"
)

const (
	minPatternRecords = 3
	minWindowAttempts = 2
	maxContactWindows = 5
)

// analyzeBehavior derives the statistical view of a customer from bounded
// payment and communication history. Empty history yields a neutral
// analysis rather than an error.
func analyzeBehavior(payments []models.PaymentRecord, contacts []models.ContactAttempt) models.BehaviorAnalysis {
	return models.BehaviorAnalysis{
		AveragePaymentDelay:   averageDelay(payments),
		Patterns:              detectPatterns(payments),
		ResponseRate:          responseRate(contacts),
		PreferredContactTimes: contactWindows(contacts),
		CommunicationStyle:    communicationStyle(contacts),
		EscalationTendency:    escalationTendency(contacts),
		SeasonalTrends:        seasonalTrends(payments),
	}
}

// averageDelay is the mean days-past-due over settled records.
func averageDelay(payments []models.PaymentRecord) float64 {
	var sum float64
	var paid int
	for _, p := range payments {
		if p.PaidDate == nil {
			continue
		}
		sum += p.DelayDays()
		paid++
	}
	if paid == 0 {
		return 0
	}
	return sum / float64(paid)
}

func matchesPattern(p models.PaymentRecord, pattern models.PatternType) bool {
	switch pattern {
	case models.PatternEarly:
		return p.PaidDate != nil && p.PaidDate.Before(p.DueDate)
	case models.PatternOnTime:
		return p.PaidDate != nil && !p.PaidDate.Before(p.DueDate) && p.DelayDays() <= 3
	case models.PatternLate:
		return p.Late()
	case models.PatternPartial:
		return p.Status == models.PaymentPartial
	}
	return false
}

// patternThreshold is the minimum frequency for a pattern to register.
// Positive patterns need a stronger showing than problem patterns.
func patternThreshold(pattern models.PatternType) float64 {
	if pattern == models.PatternEarly || pattern == models.PatternOnTime {
		return 0.3
	}
	return 0.2
}

// detectPatterns classifies the payment history into recurring behaviors.
// Requires at least minPatternRecords records.
func detectPatterns(payments []models.PaymentRecord) []models.PaymentPattern {
	if len(payments) < minPatternRecords {
		return nil
	}

	ordered := make([]models.PaymentRecord, len(payments))
	copy(ordered, payments)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].DueDate.Before(ordered[j].DueDate)
	})

	var patterns []models.PaymentPattern
	for _, pattern := range []models.PatternType{
		models.PatternEarly, models.PatternOnTime, models.PatternLate, models.PatternPartial,
	} {
		matches := 0
		for _, p := range ordered {
			if matchesPattern(p, pattern) {
				matches++
			}
		}
		frequency := float64(matches) / float64(len(ordered))
		if frequency <= patternThreshold(pattern) {
			continue
		}
		patterns = append(patterns, models.PaymentPattern{
			Type:       pattern,
			Frequency:  frequency,
			Confidence: math.Min(frequency*1.5, 1),
			Trend:      patternTrend(ordered, pattern),
		})
	}
	return patterns
}

// patternTrend compares the pattern's match rate in the later half of the
// history against the earlier half. For problem patterns (late, partial) a
// rising rate means the customer is getting worse, so the labels invert.
func patternTrend(ordered []models.PaymentRecord, pattern models.PatternType) models.Trend {
	half := len(ordered) / 2
	older, recent := ordered[:half], ordered[half:]

	rate := func(records []models.PaymentRecord) float64 {
		if len(records) == 0 {
			return 0
		}
		matches := 0
		for _, p := range records {
			if matchesPattern(p, pattern) {
				matches++
			}
		}
		return float64(matches) / float64(len(records))
	}

	olderRate, recentRate := rate(older), rate(recent)
	rising := recentRate > 1.2*olderRate && recentRate > 0
	falling := recentRate < 0.8*olderRate

	negative := pattern == models.PatternLate || pattern == models.PatternPartial
	switch {
	case rising && negative, falling && !negative:
		return models.TrendDeclining
	case rising && !negative, falling && negative:
		return models.TrendImproving
	default:
		return models.TrendStable
	}
}

// responseRate is the fraction of attempts the customer engaged with.
func responseRate(contacts []models.ContactAttempt) float64 {
	if len(contacts) == 0 {
		return 0
	}
	responded := 0
	for _, c := range contacts {
		if c.Responded() {
			responded++
		}
	}
	return float64(responded) / float64(len(contacts))
}

type windowKey struct {
	day     int
	hour    int
	channel string
}

// contactWindows buckets attempts by weekday, 4-hour slot, and channel,
// then returns the top buckets by response rate. Buckets need at least
// minWindowAttempts attempts to count.
func contactWindows(contacts []models.ContactAttempt) []models.ContactWindow {
	type tally struct {
		attempts  int
		responses int
	}
	buckets := make(map[windowKey]*tally)
	for _, c := range contacts {
		key := windowKey{
			day:     int(c.OccurredAt.Weekday()),
			hour:    (c.OccurredAt.Hour() / 4) * 4,
			channel: c.Channel,
		}
		t, ok := buckets[key]
		if !ok {
			t = &tally{}
			buckets[key] = t
		}
		t.attempts++
		if c.Responded() {
			t.responses++
		}
	}

	var windows []models.ContactWindow
	for key, t := range buckets {
		if t.attempts < minWindowAttempts {
			continue
		}
		windows = append(windows, models.ContactWindow{
			Day:          time.Weekday(key.day),
			HourStart:    key.hour,
			Channel:      key.channel,
			ResponseRate: float64(t.responses) / float64(t.attempts),
			Attempts:     t.attempts,
		})
	}

	sort.Slice(windows, func(i, j int) bool {
		if windows[i].ResponseRate != windows[j].ResponseRate {
			return windows[i].ResponseRate > windows[j].ResponseRate
		}
		if windows[i].Attempts != windows[j].Attempts {
			return windows[i].Attempts > windows[j].Attempts
		}
		if windows[i].Day != windows[j].Day {
			return windows[i].Day < windows[j].Day
		}
		return windows[i].HourStart < windows[j].HourStart
	})

	if len(windows) > maxContactWindows {
		windows = windows[:maxContactWindows]
	}
	return windows
}

var formalWords = []string{"dear", "sincerely", "regards", "kindly", "please", "appreciate"}
var casualWords = []string{"hey", "yeah", "thanks", "cool", "gonna", "ok"}

// communicationStyle classifies how the customer writes back, from keyword
// scoring of response text. No response text at all falls back to formal.
func communicationStyle(contacts []models.ContactAttempt) models.CommunicationStyle {
	formal, casual, direct, responses := 0, 0, 0, 0
	for _, c := range contacts {
		text := strings.TrimSpace(c.Response)
		if text == "" {
			continue
		}
		responses++
		lower := strings.ToLower(text)
		for _, w := range formalWords {
			if strings.Contains(lower, w) {
				formal++
			}
		}
		for _, w := range casualWords {
			if strings.Contains(lower, w) {
				casual++
			}
		}
		if len(text) < 50 {
			direct++
		}
	}

	switch {
	case responses == 0:
		return models.StyleFormal
	case direct*2 > responses && formal <= casual:
		return models.StyleDirect
	case formal > casual:
		return models.StyleFormal
	case casual > formal:
		return models.StyleCasual
	default:
		return models.StyleDiplomatic
	}
}

var escalationWords = []string{"manager", "lawyer", "dispute"}

// escalationTendency buckets how often contacts carry escalation signals.
func escalationTendency(contacts []models.ContactAttempt) models.EscalationTendency {
	if len(contacts) == 0 {
		return models.TendencyLow
	}
	flagged := 0
	for _, c := range contacts {
		if c.Escalated {
			flagged++
			continue
		}
		lower := strings.ToLower(c.Response)
		for _, w := range escalationWords {
			if strings.Contains(lower, w) {
				flagged++
				break
			}
		}
	}

	rate := float64(flagged) / float64(len(contacts))
	switch {
	case rate >= 0.3:
		return models.TendencyHigh
	case rate >= 0.1:
		return models.TendencyMedium
	default:
		return models.TendencyLow
	}
}

// seasonalTrends compares each calendar quarter's late-payment rate against
// the overall rate. Quarters with fewer than minPatternRecords data points
// are skipped.
func seasonalTrends(payments []models.PaymentRecord) []models.SeasonalTrend {
	if len(payments) == 0 {
		return nil
	}

	late := 0
	quarterTotal := [5]int{}
	quarterLate := [5]int{}
	for _, p := range payments {
		q := (int(p.DueDate.Month())-1)/3 + 1
		quarterTotal[q]++
		if p.Late() {
			late++
			quarterLate[q]++
		}
	}
	overall := float64(late) / float64(len(payments))

	var trends []models.SeasonalTrend
	for q := 1; q <= 4; q++ {
		if quarterTotal[q] < minPatternRecords {
			continue
		}
		rate := float64(quarterLate[q]) / float64(quarterTotal[q])
		trend := models.SeasonalTrend{Quarter: q, Classification: "same", DataPoints: quarterTotal[q]}
		switch {
		case rate > overall+0.1:
			trend.Classification = "worse"
			trend.RiskModifier = 0.1
		case rate < overall-0.1:
			trend.Classification = "better"
			trend.RiskModifier = -0.1
		}
		trends = append(trends, trend)
	}
	return trends
}
