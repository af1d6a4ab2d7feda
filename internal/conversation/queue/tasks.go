package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskConversationTurn = "conversation:turn"

// Queue names. Workers drain critical most aggressively; priority scoring
// only influences which queue a job lands in, so ordering is best-effort.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Priority cutoffs for queue selection.
const (
	criticalPriority = 50
	defaultPriority  = 20
)

// TurnPayload schedules processing of one conversation turn. Delivery is
// at-least-once; handlers must tolerate duplicates.
type TurnPayload struct {
	ConversationID string `json:"conversationId"`
	TurnNumber     int    `json:"turnNumber"`
}

func NewTurnTask(payload TurnPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConversationTurn, data), nil
}

func ParseTurnPayload(task *asynq.Task) (TurnPayload, error) {
	var payload TurnPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TurnPayload{}, err
	}
	return payload, nil
}

// QueueForPriority maps a lead priority score onto a queue name.
func QueueForPriority(priority int) string {
	switch {
	case priority >= criticalPriority:
		return QueueCritical
	case priority >= defaultPriority:
		return QueueDefault
	default:
		return QueueLow
	}
}
