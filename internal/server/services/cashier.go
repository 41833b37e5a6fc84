package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/varejo/internal/logging"
	"github.com/dmitrijs2005/varejo/internal/records"
	"github.com/dmitrijs2005/varejo/internal/session"
	"github.com/dmitrijs2005/varejo/internal/timex"
)

// Cash register states and columns.
const (
	CashierTable        = "caixa"
	CashierStatusOpen   = "aberto"
	CashierStatusClosed = "fechado"
)

// RecordStore is the part of RecordService the cashier job drives.
type RecordStore interface {
	List(ctx context.Context, sess session.Context, table string) ([]records.Record, error)
	Update(ctx context.Context, sess session.Context, table, key string, values records.Record, opts UpdateOptions) (records.Record, error)
}

// CashierJob closes cash sessions left open past the end of their day.
type CashierJob struct {
	records  RecordStore
	interval time.Duration
	loc      *time.Location
	logger   logging.Logger
	now      func() time.Time
}

func NewCashierJob(rs RecordStore, interval time.Duration, loc *time.Location, logger logging.Logger) *CashierJob {
	return &CashierJob{
		records:  rs,
		interval: interval,
		loc:      loc,
		logger:   logger.With("module", "cashier"),
		now:      time.Now,
	}
}

// Run checks once immediately and then every interval until ctx is done.
// Ticks never overlap: a slow check delays the next one.
func (j *CashierJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if _, err := j.Tick(ctx); err != nil && ctx.Err() == nil {
			j.logger.Error(ctx, "cashier check failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick closes every open session opened before today and returns how many
// were closed. Failures on single rows are logged and skipped.
func (j *CashierJob) Tick(ctx context.Context) (int, error) {
	sess := session.System()
	rows, err := j.records.List(ctx, sess, CashierTable)
	if err != nil {
		return 0, err
	}

	now := j.now()
	today := timex.StartOfDay(now, j.loc)

	closed := 0
	for _, row := range rows {
		if row.String("status") != CashierStatusOpen {
			continue
		}
		openedAt, err := time.Parse(time.RFC3339Nano, row.String("aberto_em"))
		if err != nil {
			j.logger.Warn(ctx, "cash session without valid aberto_em", "id", row.String(records.KeyField), "error", err)
			continue
		}
		if !openedAt.Before(today) {
			continue
		}

		id := row.String(records.KeyField)
		_, err = j.records.Update(ctx, sess, CashierTable, id, records.Record{
			"status":                CashierStatusClosed,
			"fechado_em":            now.UTC().Format(time.RFC3339Nano),
			"fechamento_automatico": true,
		}, UpdateOptions{})
		if err != nil {
			j.logger.Error(ctx, "auto-close failed", "id", id, "error", err)
			continue
		}
		closed++
		j.logger.Info(ctx, "cash session closed automatically", "id", id, "aberto_em", openedAt)
	}
	return closed, nil
}
