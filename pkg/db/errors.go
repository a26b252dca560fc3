package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDatabaseTimeout is reported when the query timer fires before the driver answers.
	ErrDatabaseTimeout = errors.New("database query timeout")
	// ErrTransientNetwork marks connection-level failures that are worth retrying.
	ErrTransientNetwork = errors.New("failed to fetch from database")
	// ErrMockMode is returned by strict calls made while no database is configured.
	ErrMockMode = errors.New("database not configured, running in mock mode")
)

// Kind classifies a failed query
type Kind int

const (
	KindNone Kind = iota
	KindTimeout
	KindTransient
	KindPermanent
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// QueryError is what strict-mode callers observe when a statement fails
type QueryError struct {
	Query string
	Kind  Kind
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed (%s): %v", e.Query, e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// transientMessages are substrings of driver errors that indicate a network-level problem
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"unexpected eof",
	"failed to fetch",
	"network is unreachable",
}

// Classify maps a driver or executor error onto a Kind
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}

	// pgconn reports a context that was already cancelled as a timeout wrapping Canceled.
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrDatabaseTimeout), errors.Is(err, context.DeadlineExceeded), pgconn.Timeout(err):
		return KindTimeout
	case errors.Is(err, ErrTransientNetwork):
		return KindTransient
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return KindPermanent
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, s := range transientMessages {
		if strings.Contains(msg, s) {
			return KindTransient
		}
	}
	return KindPermanent
}

// retryableMessages is the allow-list used by the retrier. Anything else is permanent.
var retryableMessages = []string{"timeout", "failed to fetch"}

// IsRetryable reports whether err carries one of the retryable message fragments
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// newQueryError wraps err so that its message always carries the retryable fragment
// matching its kind.
func newQueryError(query string, err error) *QueryError {
	kind := Classify(err)
	wrapped := err
	switch kind {
	case KindTimeout:
		if !errors.Is(err, ErrDatabaseTimeout) {
			wrapped = fmt.Errorf("%w: %w", ErrDatabaseTimeout, err)
		}
	case KindTransient:
		if !errors.Is(err, ErrTransientNetwork) {
			wrapped = fmt.Errorf("%w: %w", ErrTransientNetwork, err)
		}
	}
	return &QueryError{Query: query, Kind: kind, Err: wrapped}
}
