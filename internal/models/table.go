// Package models provides data model definitions for the LifeLog sync core.
package models

import (
	"fmt"
	"time"
)

// Table names a syncable record stream. The values are the table_name
// strings stored in the mutation queue.
type Table string

const (
	TableWorkouts  Table = "workouts"
	TableNutrition Table = "nutrition"
	TableBodyStats Table = "body_stats"
)

// Tables lists every syncable table.
func Tables() []Table {
	return []Table{TableWorkouts, TableNutrition, TableBodyStats}
}

// ParseTable validates a queue table name.
func ParseTable(s string) (Table, error) {
	switch t := Table(s); t {
	case TableWorkouts, TableNutrition, TableBodyStats:
		return t, nil
	}
	return "", fmt.Errorf("unknown table %q", s)
}

// Operation is the kind of write a queue entry replays.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// ParseOperation validates a queue operation name.
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OpInsert, OpUpdate, OpDelete:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// DateLayout is the calendar-date format used by record date fields.
const DateLayout = "2006-01-02"

// NowMillis returns the current time as unix milliseconds, the resolution
// of every stored timestamp.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
