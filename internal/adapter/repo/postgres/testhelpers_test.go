package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

// rowStub implements pgx.Row
type rowStub struct{ scan func(dest ...any) error }

func (r rowStub) Scan(dest ...any) error { return r.scan(dest...) }

// rowsStub implements pgx.Rows over a list of scan funcs, one per row.
type rowsStub struct {
	scans []func(dest ...any) error
	i     int
}

func (r *rowsStub) Next() bool                                   { r.i++; return r.i <= len(r.scans) }
func (r *rowsStub) Scan(dest ...any) error                       { return r.scans[r.i-1](dest...) }
func (r *rowsStub) Close()                                       {}
func (r *rowsStub) Err() error                                   { return nil }
func (r *rowsStub) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *rowsStub) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rowsStub) Values() ([]any, error)                       { return nil, nil }
func (r *rowsStub) RawValues() [][]byte                          { return nil }
func (r *rowsStub) Conn() *pgx.Conn                              { return nil }

// scanTaskRow plays back t through the repo's 15-column task scan. The dest
// order mirrors the taskColumns constant.
func scanTaskRow(t domain.Task) func(dest ...any) error {
	return func(dest ...any) error {
		if len(dest) != 15 {
			return errors.New("unexpected dest count")
		}
		opts, err := json.Marshal(t.Options)
		if err != nil {
			return err
		}
		if t.Options == nil {
			opts = []byte(`{}`)
		}
		*dest[0].(*string) = t.ID
		*dest[1].(*string) = t.UserID
		*dest[2].(*string) = t.FileName
		*dest[3].(*string) = t.FilePath
		*dest[4].(*string) = t.Backend
		*dest[5].(*[]byte) = opts
		*dest[6].(*int) = t.Priority
		*dest[7].(*domain.TaskStatus) = t.Status
		*dest[8].(*string) = t.WorkerID
		*dest[9].(*int) = t.RetryCount
		*dest[10].(*string) = t.ResultPath
		*dest[11].(*string) = t.ErrorMessage
		*dest[12].(*time.Time) = t.CreatedAt
		*dest[13].(**time.Time) = t.StartedAt
		*dest[14].(**time.Time) = t.CompletedAt
		return nil
	}
}

// poolStub implements postgres.PgxPool for tests. It records the last
// statement and arguments and plays back configured results.
type poolStub struct {
	execErr  error
	execTag  pgconn.CommandTag
	row      rowStub
	rows     *rowsStub
	queryErr error

	lastSQL  string
	lastArgs []any
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.lastSQL, p.lastArgs = sql, args
	return p.execTag, p.execErr
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.lastSQL, p.lastArgs = sql, args
	if p.row.scan == nil {
		return rowStub{scan: func(_ ...any) error { return errors.New("no row configured") }}
	}
	return p.row
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.lastSQL, p.lastArgs = sql, args
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	if p.rows == nil {
		return &rowsStub{}, nil
	}
	return p.rows, nil
}
