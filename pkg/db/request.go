package db

import "time"

const (
	// DefaultQueryTimeout bounds ordinary reads and writes
	DefaultQueryTimeout = 20 * time.Second
	// DefaultHealthTimeout bounds the SELECT 1 probe
	DefaultHealthTimeout = 5 * time.Second
)

// QueryRequest is a named, parameterized statement. Positional parameters are bound by
// the driver ($1, $2, ...); callers never splice input into SQL.
type QueryRequest struct {
	Name    string
	SQL     string
	Args    []any
	Timeout time.Duration
}

// NewQuery builds a request with the executor's default timeout
func NewQuery(name, sql string, args ...any) QueryRequest {
	return QueryRequest{Name: name, SQL: sql, Args: args}
}

// WithTimeout returns a copy of r with its own timeout
func (r QueryRequest) WithTimeout(d time.Duration) QueryRequest {
	r.Timeout = d
	return r
}

// Row maps column names to scalar values as decoded by the driver
type Row map[string]any

// Status tags a Result
type Status int

const (
	// StatusOK means the statement ran and returned at least one row
	StatusOK Status = iota
	// StatusEmpty means no data is available: either zero rows or a suppressed failure
	StatusEmpty
	// StatusErr means the statement failed and the caller asked to see it
	StatusErr
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusErr:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one statement
type Result struct {
	Status Status
	Rows   []Row
	Err    error
}

// Kind returns the failure classification, KindNone for OK and Empty results
// that did not suppress an error.
func (r Result) Kind() Kind {
	return Classify(r.Err)
}

// Lenient collapses the result into rows, turning a failure into an empty sequence
func (r Result) Lenient() []Row {
	if r.Status == StatusOK {
		return r.Rows
	}
	return []Row{}
}

// Strict returns the rows or the failure
func (r Result) Strict() ([]Row, error) {
	if r.Status == StatusErr {
		return nil, r.Err
	}
	return r.Lenient(), nil
}

func okResult(rows []Row) Result {
	if len(rows) == 0 {
		return Result{Status: StatusEmpty, Rows: []Row{}}
	}
	return Result{Status: StatusOK, Rows: rows}
}
