package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Run is one processing run of a recording
type Run struct {
	ID        uuid.UUID
	Source    string // Log path, or the day file when split by day
	StartTime time.Time
}

type metadataData struct {
	RunID           uuid.UUID
	DeviceID        int64
	SessionID       int64
	LoggingStart    sql.NullFloat64
	LoggingEnd      sql.NullFloat64
	LastClear       sql.NullFloat64
	LastChange      sql.NullFloat64
	Capacity        int64
	SamplingRate    int64
	FirmwareVersion int64
}

type annotationData struct {
	Name  string
	Value string
	Time  sql.NullFloat64
}

type bucketData struct {
	WidthMs   int64
	Baselined bool
	Index     int64
	Epoch     float64
	Count     int64
	Stats     [16]sql.NullFloat64
}
