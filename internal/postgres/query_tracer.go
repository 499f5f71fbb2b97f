package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/membership/internal/logger"
	"github.com/flexprice/membership/internal/metrics"
)

// slowQueryThreshold promotes a statement log line from debug to warn
const slowQueryThreshold = 250 * time.Millisecond

// tracedQuerier logs and times every statement issued against q
type tracedQuerier struct {
	Querier
	logger *logger.Logger
	txID   string
}

func newTracedQuerier(q Querier, logger *logger.Logger, txID string) *tracedQuerier {
	return &tracedQuerier{Querier: q, logger: logger, txID: txID}
}

// trace returns the completion callback for one statement
func (tq *tracedQuerier) trace(query string) func(error) {
	start := time.Now()
	return func(err error) {
		elapsed := time.Since(start)
		kind := statementKind(query)

		// a missing row is an answer, not a failure
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
		}
		metrics.ObserveDBQuery(kind, tq.txID != "", err, elapsed)

		fields := []interface{}{
			"kind", kind,
			"duration_ms", elapsed.Milliseconds(),
		}
		if tq.txID != "" {
			fields = append(fields, "tx_id", tq.txID)
		}

		switch {
		case err != nil:
			tq.logger.Errorw("postgres statement failed", append(fields, "query", compact(query), "error", err)...)
		case elapsed >= slowQueryThreshold:
			tq.logger.Warnw("slow postgres statement", append(fields, "query", compact(query))...)
		default:
			tq.logger.Debugw("postgres statement", fields...)
		}
	}
}

func (tq *tracedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	done := tq.trace(query)
	result, err := tq.Querier.ExecContext(ctx, query, args...)
	done(err)
	return result, err
}

func (tq *tracedQuerier) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	done := tq.trace(query)
	result, err := tq.Querier.NamedExecContext(ctx, query, arg)
	done(err)
	return result, err
}

func (tq *tracedQuerier) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	done := tq.trace(query)
	err := tq.Querier.GetContext(ctx, dest, query, args...)
	done(err)
	return err
}

func (tq *tracedQuerier) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	done := tq.trace(query)
	err := tq.Querier.SelectContext(ctx, dest, query, args...)
	done(err)
	return err
}

// statementKind is the leading SQL verb, lowercased
func statementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}

// compact collapses the whitespace of a multi-line statement for logging
func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
