package coordinator

import (
	"math"
	"sort"

	"github.com/collectflow/collectflow/pkg/models"
)

// kindMatches reports whether an agent of the given type can work a task of
// the given kind. The switch is exhaustive over the closed kind set; kinds
// outside it are accepted by any agent type.
func kindMatches(kind models.TaskKind, agentType models.AgentType) bool {
	switch kind {
	case models.TaskSendEmail:
		return agentType == models.EmailAgentType
	case models.TaskMakeCall:
		return agentType == models.PhoneAgentType
	case models.TaskSendSMS:
		return agentType == models.SMSAgentType
	case models.TaskResearchCustomer:
		return agentType == models.ResearchAgentType
	default:
		return true
	}
}

// available reports whether an agent can take on more work right now.
func available(agent *models.Agent) bool {
	switch agent.Status {
	case models.AgentIdle:
		return true
	case models.AgentActive:
		return agent.HasCapacity()
	default:
		return false
	}
}

// scoreAgent rates a candidate for a task. Success rate dominates, then
// responsiveness, then headroom; high-urgency work only grants the full
// priority bonus to agents with a strong satisfaction record.
func scoreAgent(agent *models.Agent, priority models.Priority) float64 {
	perf := agent.Performance

	successRate := float64(perf.TasksSuccessful) / math.Max(float64(perf.TasksCompleted), 1)
	speed := math.Max(0, (5000-perf.AverageResponseTime)/5000)
	headroom := 1 - agent.LoadRatio()

	bonus := 10.0
	if priority == models.HighPriority || priority == models.UrgentPriority {
		if perf.CustomerSatisfactionScore > 8 {
			bonus = 10.0
		} else {
			bonus = 5.0
		}
	}

	return 40*successRate + 30*speed + 20*headroom + bonus
}

// selectAgent picks the best-fit agent for a task, or nil when none
// qualifies. Candidates are scored in ascending ID order and ties keep the
// first-seen candidate, so the tie-break is the lowest agent ID regardless
// of map iteration order. Caller must hold the engine mutex.
func selectAgent(agents map[string]*models.Agent, task *models.Task) *models.Agent {
	ids := make([]string, 0, len(agents))
	for id, agent := range agents {
		if !available(agent) {
			continue
		}
		if !kindMatches(task.Kind, agent.Type) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)

	best := agents[ids[0]]
	bestScore := scoreAgent(best, task.Priority)
	for _, id := range ids[1:] {
		candidate := agents[id]
		if score := scoreAgent(candidate, task.Priority); score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best
}
