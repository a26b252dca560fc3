package errors

import (
	goerrors "errors"
	"fmt"
	"io"

	"github.com/AliciaSchep/posdash/pkg/dashboard"
	"github.com/AliciaSchep/posdash/pkg/db"
)

// UserError formats user-facing error messages consistently
func UserError(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "❌ %s\n", fmt.Sprintf(format, args...))
}

// UserWarning formats user-facing warning messages consistently
func UserWarning(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "⚠️  %s\n", fmt.Sprintf(format, args...))
}

// UserInfo formats user-facing info messages consistently
func UserInfo(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "ℹ️  %s\n", fmt.Sprintf(format, args...))
}

// DatabaseError reports a failed database operation without the raw driver error
func DatabaseError(w io.Writer, operation string, err error) {
	fmt.Fprintf(w, "❌ Database %s failed: %s\n", operation, UserMessage(err))
}

// UserMessage turns a data-layer error into text that is safe to show to a user.
// Driver messages never pass through; parameter errors do since they describe the
// caller's own input.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case goerrors.Is(err, dashboard.ErrMissingParameter):
		return err.Error()
	case goerrors.Is(err, db.ErrMockMode):
		return "no database is configured, set DATABASE_URL to connect"
	case goerrors.Is(err, dashboard.ErrNotConnected):
		return "the database is not reachable right now, please try again shortly"
	}

	switch db.Classify(err) {
	case db.KindTimeout:
		return "the database took too long to respond, please try again"
	case db.KindTransient:
		return "could not reach the database, check the connection and try again"
	case db.KindCanceled:
		return "the request was cancelled"
	default:
		return "the database could not complete the request"
	}
}
