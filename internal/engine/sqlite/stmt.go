package sqlite

import (
	"context"
	"database/sql/driver"
	"fmt"
	"io"

	"github.com/zcourts/dqlite/internal/engine"
	"github.com/zcourts/dqlite/internal/gwproto"
)

// stmt is the sqlite-backed engine.Stmt.
type stmt struct {
	raw    driver.Stmt
	params int

	bound []driver.NamedValue

	rows         driver.Rows
	cols         []string
	current      []driver.Value
	lastInsertID int64
	rowsAffected int64
}

func newStmt(raw driver.Stmt) *stmt {
	return &stmt{raw: raw, params: raw.NumInput()}
}

func (s *stmt) ParamCount() int {
	return s.params
}

func (s *stmt) Bind(values []gwproto.Value) error {
	bound := make([]driver.NamedValue, len(values))
	for i, v := range values {
		cv, err := driver.DefaultParameterConverter.ConvertValue(v.Data)
		if err != nil {
			return engine.NewError(gwproto.ErrCodeError, fmt.Sprintf("bind parameter %d: %v", i+1, err))
		}
		bound[i] = driver.NamedValue{Ordinal: i + 1, Name: v.Name, Value: cv}
	}
	if err := s.Reset(); err != nil {
		return err
	}
	s.bound = bound
	return nil
}

func (s *stmt) Exec(ctx context.Context) (int64, int64, error) {
	var result driver.Result
	var err error

	if ec, ok := s.raw.(driver.StmtExecContext); ok {
		result, err = ec.ExecContext(ctx, s.bound)
	} else {
		result, err = s.raw.Exec(valuesOf(s.bound))
	}
	if err != nil {
		return 0, 0, engine.NewError(gwproto.ErrCodeError, err.Error())
	}

	lastID, _ := result.LastInsertId()
	affected, _ := result.RowsAffected()
	s.lastInsertID, s.rowsAffected = lastID, affected
	return lastID, affected, nil
}

func (s *stmt) Step(ctx context.Context) (engine.StepResult, error) {
	if s.rows == nil {
		var rows driver.Rows
		var err error
		if qc, ok := s.raw.(driver.StmtQueryContext); ok {
			rows, err = qc.QueryContext(ctx, s.bound)
		} else {
			rows, err = s.raw.Query(valuesOf(s.bound))
		}
		if err != nil {
			return engine.StepDone, engine.NewError(gwproto.ErrCodeError, err.Error())
		}
		s.rows = rows
		s.cols = rows.Columns()
	}

	dest := make([]driver.Value, len(s.cols))
	if err := s.rows.Next(dest); err != nil {
		if err == io.EOF {
			return engine.StepDone, nil
		}
		return engine.StepDone, engine.NewError(gwproto.ErrCodeError, err.Error())
	}

	s.current = dest
	return engine.StepRow, nil
}

func (s *stmt) Row() gwproto.Row {
	row := make(gwproto.Row, len(s.current))
	for i, v := range s.current {
		row[i] = v
	}
	return row
}

func (s *stmt) Reset() error {
	if s.rows != nil {
		err := s.rows.Close()
		s.rows = nil
		s.cols = nil
		s.current = nil
		if err != nil {
			return engine.NewError(gwproto.ErrCodeError, err.Error())
		}
	}
	s.bound = nil
	return nil
}

func (s *stmt) Finalize() error {
	_ = s.Reset()
	if err := s.raw.Close(); err != nil {
		return engine.NewError(gwproto.ErrCodeError, err.Error())
	}
	return nil
}

func valuesOf(named []driver.NamedValue) []driver.Value {
	vals := make([]driver.Value, len(named))
	for i, n := range named {
		vals[i] = n.Value
	}
	return vals
}
