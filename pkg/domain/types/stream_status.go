package types

import "fmt"

// StreamStatus represents the lifecycle status of a stream record
type StreamStatus string

const (
	StreamStatusPending   StreamStatus = "pending"
	StreamStatusStreaming StreamStatus = "streaming"
	StreamStatusComplete  StreamStatus = "complete"
	StreamStatusErrored   StreamStatus = "errored"
)

// AllStreamStatuses returns all valid stream statuses
func AllStreamStatuses() []StreamStatus {
	return []StreamStatus{
		StreamStatusPending,
		StreamStatusStreaming,
		StreamStatusComplete,
		StreamStatusErrored,
	}
}

// IsValid checks if the stream status is valid
func (s StreamStatus) IsValid() bool {
	switch s {
	case StreamStatusPending,
		StreamStatusStreaming,
		StreamStatusComplete,
		StreamStatusErrored:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is complete or errored.
// Once terminal, the record's text is immutable.
func (s StreamStatus) IsTerminal() bool {
	return s == StreamStatusComplete || s == StreamStatusErrored
}

// Normalize returns the status, treating empty as StreamStatusPending.
func (s StreamStatus) Normalize() StreamStatus {
	if s == "" {
		return StreamStatusPending
	}
	return s
}

// String returns the string representation of the stream status
func (s StreamStatus) String() string {
	return string(s)
}

// ParseStreamStatus parses a string into a StreamStatus
func ParseStreamStatus(s string) (StreamStatus, error) {
	status := StreamStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid stream status: %s", s)
	}
	return status, nil
}
