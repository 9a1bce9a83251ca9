// Package queue defines message payloads exchanged over the message
// broker and the background consumer that turns row changes into
// cache invalidations.
package queue

// RowChangeQueueName is the durable queue row-change events travel on.
const RowChangeQueueName = "rowchange.events"

// RowChangeEvent is published whenever a handler mutates one of the
// watched tables. It carries enough information for consumers to
// invalidate caches or notify clients without querying the primary
// database.
type RowChangeEvent struct {
	Table      string   `json:"table"`       // habits, habit_completions, notes, couple_members
	Action     string   `json:"action"`      // insert, update, delete
	RowID      string   `json:"row_id"`      // primary key of the changed row
	UserIDs    []string `json:"user_ids"`    // accounts whose views the change touches
	OccurredAt string   `json:"occurred_at"` // RFC3339 UTC
}
