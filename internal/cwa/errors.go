package cwa

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedLog is returned when a section starts with an unknown tag. Decoding stops.
	ErrMalformedLog = errors.New("malformed log")

	// ErrTruncatedLog is returned when a section cannot supply its fixed-size payload
	ErrTruncatedLog = errors.New("truncated log")

	// ErrBlockRejected wraps every per-block validation failure. Rejected blocks are
	// skipped and counted, they never abort decoding.
	ErrBlockRejected = errors.New("block rejected")
)

// RejectReason classifies why an AX block was skipped
type RejectReason int

const (
	RejectPacketLength RejectReason = iota
	RejectTimestamp
	RejectChecksum
	RejectSession
	RejectAxes
	RejectFormat
	RejectSampleCount
)

var rejectReasonNames = map[RejectReason]string{
	RejectPacketLength: "packet-length",
	RejectTimestamp:    "timestamp",
	RejectChecksum:     "checksum",
	RejectSession:      "session",
	RejectAxes:         "axes",
	RejectFormat:       "format",
	RejectSampleCount:  "sample-count",
}

func (r RejectReason) String() string {
	if name, ok := rejectReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// RejectError describes a single rejected block
type RejectError struct {
	Reason   RejectReason
	Sequence uint32
	msg      string
}

func newRejectError(reason RejectReason, sequence uint32, format string, args ...any) *RejectError {
	return &RejectError{
		Reason:   reason,
		Sequence: sequence,
		msg:      fmt.Sprintf(format, args...),
	}
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: block %d: %s", ErrBlockRejected, e.Sequence, e.msg)
}

func (e *RejectError) Unwrap() error {
	return ErrBlockRejected
}
