package core

import "time"

// MutationOp names the mutation that caused an invalidation.
type MutationOp string

const (
	OpCreated MutationOp = "create"
	OpUpdated MutationOp = "update"
	OpDeleted MutationOp = "delete"
)

// Invalidation tells subscribers that the transaction set changed and every
// derived view must be re-fetched. ID is informational only.
type Invalidation struct {
	Op MutationOp
	ID string
	At time.Time
}

// NewInvalidation stamps an invalidation with the current time.
func NewInvalidation(op MutationOp, id string) Invalidation {
	return Invalidation{Op: op, ID: id, At: time.Now().UTC()}
}
