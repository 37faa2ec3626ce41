package remote

import (
	"context"
	"time"
)

// Request types accepted by Submit. The engine depends only on this generic
// shape, never on a specific transport schema.
const (
	ReqTransactionSave    = "transaction.save"
	ReqStartingAmountSave = "startingamount.save"
	ReqBudgetSave         = "budget.save"
)

// SubmitResponse is the typed success result of a mutation. For creations the
// server assigns the permanent id; the client replaces its temporary id with
// it everywhere.
type SubmitResponse struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service is the transport boundary of the engine. Every mutation and fetch
// goes through this interface; tests and the offline path substitute mocks.
type Service interface {
	// Submit sends one mutation. Errors always distinguish at least
	// cancellation from true failures via KindOf.
	Submit(ctx context.Context, requestType string, payload any) (*SubmitResponse, error)

	// FetchMonth returns the full current contents of one calendar month.
	FetchMonth(ctx context.Context, year, month int) (*DeltaBatch, error)

	// FetchReference returns the reference entities (methods, categories,
	// tags, keywords, templates).
	FetchReference(ctx context.Context) (*DeltaBatch, error)

	// LongPoll blocks until a change newer than cursor exists, the server
	// times the poll out, or ctx is canceled. A nil batch with nil error
	// means "timed out with no changes, reconnect".
	LongPoll(ctx context.Context, cursor int64) (*DeltaBatch, error)
}
