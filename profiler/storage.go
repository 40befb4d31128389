package profiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrProfileNotFound is returned when no profile has the token.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrUnsupportedDSN is returned by OpenStorage for unknown schemes.
	ErrUnsupportedDSN = errors.New("unsupported profiler storage DSN")
)

// Storage persists profiles.
type Storage interface {
	// Find returns the summaries matching c, newest first.
	Find(ctx context.Context, c Criteria) ([]Summary, error)
	Read(ctx context.Context, token string) (*Profile, error)
	Write(ctx context.Context, p *Profile) error
	Purge(ctx context.Context) error
}

// DefaultLimit bounds Find when Criteria.Limit is not set.
const DefaultLimit = 10

// Criteria filters stored profiles. Zero fields match everything.
type Criteria struct {
	IP         string
	URL        string // substring
	Method     string
	StatusCode int
	Start, End time.Time
	Limit      int
}

// Matches reports whether s satisfies c.
func (c Criteria) Matches(s Summary) bool {
	switch {
	case c.IP != "" && !strings.Contains(s.IP, c.IP):
		return false
	case c.URL != "" && !strings.Contains(s.URL, c.URL):
		return false
	case c.Method != "" && !strings.EqualFold(s.Method, c.Method):
		return false
	case c.StatusCode != 0 && s.StatusCode != c.StatusCode:
		return false
	case !c.Start.IsZero() && s.Time.Before(c.Start):
		return false
	case !c.End.IsZero() && s.Time.After(c.End):
		return false
	}
	return true
}

func (c Criteria) limit() int {
	if c.Limit <= 0 {
		return DefaultLimit
	}
	return c.Limit
}

// OpenStorage opens the storage described by dsn:
//
//	file:/var/cache/profiler    JSON files plus a CSV index
//	sqlite:/var/cache/prof.db   a SQLite database
func OpenStorage(dsn string) (Storage, error) {
	scheme, path, ok := strings.Cut(dsn, ":")
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, dsn)
	}
	switch scheme {
	case "file":
		return NewFileStorage(path)
	case "sqlite":
		return OpenSQLiteStorage(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, dsn)
	}
}
