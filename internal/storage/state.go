package storage

// PostingState tracks a transaction post through its lifecycle:
// Pending -> Running -> Committed | RolledBack.
type PostingState string

const (
	PostingPending    PostingState = "PENDING"
	PostingRunning    PostingState = "RUNNING"
	PostingCommitted  PostingState = "COMMITTED"
	PostingRolledBack PostingState = "ROLLED_BACK"
)
