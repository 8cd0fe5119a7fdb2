package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MutationEntry is one pending write in the durable sync queue. Data is a
// point-in-time snapshot of the record taken at enqueue time.
type MutationEntry struct {
	ID        int64           `db:"id" json:"id"`
	TableName Table           `db:"table_name" json:"table_name"`
	RecordID  string          `db:"record_id" json:"record_id"`
	Operation Operation       `db:"operation" json:"operation"`
	Data      json.RawMessage `db:"data" json:"data"`
	CreatedAt int64           `db:"created_at" json:"created_at"`
	Synced    bool            `db:"synced" json:"synced"`
	Attempts  int             `db:"attempts" json:"attempts"`
	LastError string          `db:"last_error" json:"last_error,omitempty"`
}

// SQLTable returns the table name for MutationEntry. The usual TableName
// method is taken by the field of the same name.
func (MutationEntry) SQLTable() string {
	return "sync_queue"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (e *MutationEntry) CreatedAtTime() time.Time {
	return millisToTime(e.CreatedAt)
}

// Decode deserializes the snapshot into the payload type of the entry's
// table.
func (e *MutationEntry) Decode() (Payload, error) {
	return DecodePayload(e.TableName, e.Data)
}

// Payload is a record snapshot that can travel through the sync queue.
// The set of implementations is closed: *Workout, *NutritionLog and
// *BodyStat.
type Payload interface {
	// QueueTable is the queue stream the payload belongs to.
	QueueTable() Table
	// RecordID is the record's local id.
	RecordID() string
	isPayload()
}

func (*Workout) QueueTable() Table      { return TableWorkouts }
func (*NutritionLog) QueueTable() Table { return TableNutrition }
func (*BodyStat) QueueTable() Table     { return TableBodyStats }

func (w *Workout) RecordID() string      { return w.LocalID }
func (n *NutritionLog) RecordID() string { return n.LocalID }
func (b *BodyStat) RecordID() string     { return b.LocalID }

func (*Workout) isPayload()      {}
func (*NutritionLog) isPayload() {}
func (*BodyStat) isPayload()     {}

// EncodePayload serializes a snapshot for storage in the queue.
func EncodePayload(p Payload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.QueueTable(), err)
	}
	return data, nil
}

// DecodePayload deserializes a queue snapshot for the given table.
func DecodePayload(table Table, data []byte) (Payload, error) {
	var p Payload
	switch table {
	case TableWorkouts:
		p = &Workout{}
	case TableNutrition:
		p = &NutritionLog{}
	case TableBodyStats:
		p = &BodyStat{}
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty %s payload", table)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", table, err)
	}
	return p, nil
}
