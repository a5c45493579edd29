package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finviz/internal/core"
)

// InvalidationMessage tells out-of-process subscribers that the transaction
// set changed. It carries no transaction data; consumers re-read the store.
type InvalidationMessage struct {
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvalidationMessage builds a message from a domain invalidation.
func NewInvalidationMessage(inv core.Invalidation) *InvalidationMessage {
	ts := inv.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &InvalidationMessage{
		Op:        string(inv.Op),
		ID:        inv.ID,
		Timestamp: ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvalidationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Invalidation converts the message back to the domain type.
func (m *InvalidationMessage) Invalidation() core.Invalidation {
	return core.Invalidation{Op: core.MutationOp(m.Op), ID: m.ID, At: m.Timestamp}
}

// InvalidationMessageFromJSON decodes a message and rejects unknown ops.
func InvalidationMessageFromJSON(data []byte) (*InvalidationMessage, error) {
	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch core.MutationOp(msg.Op) {
	case core.OpCreated, core.OpUpdated, core.OpDeleted:
	default:
		return nil, fmt.Errorf("unknown invalidation op %q", msg.Op)
	}
	return &msg, nil
}
