package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ryokushen/ledger-engine/ledger"
)

func TestBus_Subscribe_GlobPattern(t *testing.T) {
	// GIVEN: A subscriber on "transaction:*" and one on an exact name
	// WHEN: Different events are published
	// THEN: Each handler sees only the names its pattern matches

	bus := ledger.NewBus()

	var globbed, exact []string
	bus.Subscribe("transaction:*", func(e ledger.Event) {
		globbed = append(globbed, e.Name)
	})
	bus.Subscribe(ledger.EventTransactionDeleted, func(e ledger.Event) {
		exact = append(exact, e.Name)
	})

	bus.Publish(ledger.Event{Name: ledger.EventTransactionAdded})
	bus.Publish(ledger.Event{Name: ledger.EventTransactionDeleted})
	bus.Publish(ledger.Event{Name: "account:added"})

	assert.Equal(t, []string{ledger.EventTransactionAdded, ledger.EventTransactionDeleted}, globbed)
	assert.Equal(t, []string{ledger.EventTransactionDeleted}, exact)
}

func TestBus_Publish_CarriesPayload(t *testing.T) {
	bus := ledger.NewBus()

	var got any
	bus.Subscribe("transaction:added", func(e ledger.Event) { got = e.Payload })
	bus.Publish(ledger.Event{Name: ledger.EventTransactionAdded, Payload: "tx-1"})

	assert.Equal(t, "tx-1", got)
}
