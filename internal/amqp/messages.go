package amqp

import (
	"encoding/json"
	"time"

	"scontrini/internal/core"
)

// Event names carried on the expense event stream.
const (
	EventExpenseCreated = "expense.created"
	EventExpenseUpdated = "expense.updated"
	EventExpenseDeleted = "expense.deleted"
)

// ExpenseEventMessage is published after every successful expense write.
// It carries the full row snapshot so consumers need no read-back against
// the store.
type ExpenseEventMessage struct {
	Event     string       `json:"event"`
	Expense   core.Expense `json:"expense"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewExpenseEventMessage builds an event message for the given row.
func NewExpenseEventMessage(event string, e core.Expense) *ExpenseEventMessage {
	return &ExpenseEventMessage{
		Event:     event,
		Expense:   e,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventMessageFromJSON parses a message from JSON bytes.
func ExpenseEventMessageFromJSON(data []byte) (*ExpenseEventMessage, error) {
	var msg ExpenseEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
