package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is a log-friendly view of an error chain. Postgres fields are filled
// from whichever driver produced the error.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Chain      []string
	Postgres   *PostgresFields
}

type PostgresFields struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error(), Postgres: postgresFields(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// Fields flattens the dump into logger fields under error_* and pg_* keys.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if pg := d.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_message"] = pg.Message
		for key, value := range map[string]string{
			"pg_constraint": pg.Constraint,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_detail":     pg.Detail,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}

func postgresFields(err error) *PostgresFields {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PostgresFields{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PostgresFields{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
