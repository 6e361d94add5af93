package dispatch

import (
	"context"

	"github.com/collectflow/collectflow/pkg/models"
)

// Dispatcher hands a classified task to its channel-specific executor.
type Dispatcher interface {
	Dispatch(ctx context.Context, task *models.Task) error
}

// TopicForKind routes a task kind to its executor topic suffix. Unrecognized
// kinds go to the generic notification sink.
func TopicForKind(kind models.TaskKind) string {
	switch kind {
	case models.TaskSendEmail:
		return "email"
	case models.TaskMakeCall:
		return "phone"
	case models.TaskSendSMS:
		return "sms"
	case models.TaskResearchCustomer:
		return "research"
	default:
		return "notifications"
	}
}
