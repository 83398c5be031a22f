package cache

import (
	"fmt"
	"time"
)

// Status is the lifecycle status of a cache entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

var statusNames = [...]string{"idle", "loading", "success", "error"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("cache: unknown status %q", text)
}

// State is a snapshot of one cache entry.
type State struct {
	Data           any
	Err            error
	Status         Status
	DataUpdatedAt  time.Time
	ErrorUpdatedAt time.Time
	FetchCount     int
	IsFetching     bool
	Invalidated    bool
}

// HasData reports whether the entry ever resolved successfully.
func (s State) HasData() bool { return !s.DataUpdatedAt.IsZero() }

// IsStale reports whether the entry needs a fetch at now given staleTime.
func (s State) IsStale(now time.Time, staleTime time.Duration) bool {
	if s.Invalidated || !s.HasData() {
		return true
	}
	return now.Sub(s.DataUpdatedAt) >= staleTime
}
