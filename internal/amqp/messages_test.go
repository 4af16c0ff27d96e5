package amqp

import (
	"strings"
	"testing"

	"scontrini/internal/core"
)

func TestExpenseEventMessageRoundTrip(t *testing.T) {
	key := "receipts/abc/ricevuta.pdf"
	msg := NewExpenseEventMessage(EventExpenseUpdated, core.Expense{
		ID: 7, Title: "Spesa", Amount: 4200, FileURL: &key,
	})

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := ExpenseEventMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if got.Event != EventExpenseUpdated {
		t.Fatalf("event = %q", got.Event)
	}
	if got.Expense.ID != 7 || got.Expense.FileURL == nil || *got.Expense.FileURL != key {
		t.Fatalf("expense did not survive the round trip: %+v", got.Expense)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("timestamp missing")
	}
}

func TestExpenseEventMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := ExpenseEventMessageFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEventNames(t *testing.T) {
	for _, ev := range []string{EventExpenseCreated, EventExpenseUpdated, EventExpenseDeleted} {
		if !strings.HasPrefix(ev, "expense.") {
			t.Fatalf("event %q outside the expense namespace", ev)
		}
	}
}
