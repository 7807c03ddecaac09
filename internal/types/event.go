package types

type SyncOp string

const (
	OpCreate SyncOp = "create"
	OpUpdate SyncOp = "update"
	OpRemove SyncOp = "remove"
	OpResync SyncOp = "resync"
)

// DriftEvent records an index write that failed after the primary store had
// already committed. Consumers use it to re-project the record.
type DriftEvent struct {
	ID        string `json:"id"`
	RecordID  string `json:"recordId"`
	Op        SyncOp `json:"op"`
	Version   int64  `json:"version"`
	Error     string `json:"error"`
	TimeStamp int64  `json:"ts_ms"`
}
