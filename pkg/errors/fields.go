package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// pgDetail is the subset of a Postgres error worth logging.
type pgDetail struct {
	Code       string
	Message    string
	Detail     string
	Table      string
	Constraint string
}

// postgresDetail finds a driver error in err's chain. Both pgx and lib/pq are
// checked because goose talks to the database through lib/pq.
func postgresDetail(err error) (pgDetail, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgDetail{
			Code:       pgxErr.Code,
			Message:    pgxErr.Message,
			Detail:     pgxErr.Detail,
			Table:      pgxErr.TableName,
			Constraint: pgxErr.ConstraintName,
		}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pgDetail{
			Code:       string(pqErr.Code),
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
			Table:      pqErr.Table,
			Constraint: pqErr.Constraint,
		}, true
	}
	return pgDetail{}, false
}

// LogFields flattens err into structured log fields: its message, code, the
// unwrap chain and any Postgres diagnostics found along it.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields["error_chain"] = chain

	if pg, ok := postgresDetail(err); ok {
		fields["pg_code"] = pg.Code
		fields["pg_message"] = pg.Message
		if pg.Detail != "" {
			fields["pg_detail"] = pg.Detail
		}
		if pg.Table != "" {
			fields["pg_table"] = pg.Table
		}
		if pg.Constraint != "" {
			fields["pg_constraint"] = pg.Constraint
		}
	}
	return fields
}
