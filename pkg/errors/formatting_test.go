package errors

import (
	"bytes"
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/AliciaSchep/posdash/pkg/dashboard"
	"github.com/AliciaSchep/posdash/pkg/db"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"missing parameter", fmt.Errorf("%w: userId must be a positive integer", dashboard.ErrMissingParameter), "missing parameter: userId must be a positive integer"},
		{"mock mode", &db.QueryError{Query: "insert", Kind: db.KindPermanent, Err: db.ErrMockMode}, "no database is configured, set DATABASE_URL to connect"},
		{"not connected", dashboard.ErrNotConnected, "the database is not reachable right now, please try again shortly"},
		{"timeout", fmt.Errorf("%w after 20s", db.ErrDatabaseTimeout), "the database took too long to respond, please try again"},
		{"network", goerrors.New("dial tcp 10.1.1.1:5432: connect: connection refused"), "could not reach the database, check the connection and try again"},
		{"canceled", context.Canceled, "the request was cancelled"},
		{"constraint", &pgconn.PgError{Code: "23503", Message: `insert or update on table "sale_items" violates foreign key constraint`}, "the database could not complete the request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestUserMessage_HidesDriverText(t *testing.T) {
	err := &pgconn.PgError{Code: "42P01", Message: `relation "sales" does not exist`}
	assert.NotContains(t, UserMessage(err), "relation")
}

func TestPrinters(t *testing.T) {
	var buf bytes.Buffer

	UserError(&buf, "bad %s", "input")
	UserWarning(&buf, "careful")
	UserInfo(&buf, "%d tables", 8)
	DatabaseError(&buf, "bootstrap", db.ErrDatabaseTimeout)

	assert.Equal(t,
		"❌ bad input\n"+
			"⚠️  careful\n"+
			"ℹ️  8 tables\n"+
			"❌ Database bootstrap failed: the database took too long to respond, please try again\n",
		buf.String())
}

func TestDatabaseError_HidesDriverText(t *testing.T) {
	var buf bytes.Buffer
	DatabaseError(&buf, "dashboard summary", &pgconn.PgError{Code: "42P01", Message: `relation "sales" does not exist`})

	assert.Equal(t, "❌ Database dashboard summary failed: the database could not complete the request\n", buf.String())
}
