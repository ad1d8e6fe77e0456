// Package journal persists simulated fills and settlements in an embedded
// analytical database so a finished run can be inspected with plain SQL.
package journal

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/astra-lab/astra-trading/internal/logger"
	"github.com/astra-lab/astra-trading/internal/types"
	"github.com/astra-lab/astra-trading/pkg/errors"
)

// Journal records every simulated entry and settlement.
type Journal struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// Report aggregates a finished run.
type Report struct {
	Entries     int
	Gains       int
	Losses      int
	TotalCredit float64
	TotalDebit  float64
	BestSymbol  string
	WorstSymbol string
}

// New opens an in-memory journal and creates its schema.
func New(log *logger.Logger) (*Journal, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalFailed, "failed to open journal database", err)
	}

	j := &Journal{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := j.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return j, nil
}

func (j *Journal) initialize() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			entry_id TEXT PRIMARY KEY,
			symbol TEXT,
			price DOUBLE,
			quantity DOUBLE,
			debit DOUBLE,
			gain_price DOUBLE,
			loss_price DOUBLE,
			recorded_at TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to create entries table", err)
	}

	_, err = j.db.Exec(`
		CREATE TABLE IF NOT EXISTS settlements (
			settlement_id TEXT PRIMARY KEY,
			symbol TEXT,
			price DOUBLE,
			credit DOUBLE,
			outcome TEXT,
			recorded_at TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to create settlements table", err)
	}

	return nil
}

// RecordEntry journals an opened position.
func (j *Journal) RecordEntry(order types.Order, debit float64) error {
	_, err := j.sq.
		Insert("entries").
		Columns("entry_id", "symbol", "price", "quantity", "debit", "gain_price", "loss_price", "recorded_at").
		Values(uuid.New().String(), order.Symbol, order.EntryPrice, order.Quantity,
			debit, order.GainPrice, order.LossPrice, time.Now()).
		RunWith(j.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeJournalFailed, err, "failed to journal entry for %s", order.Symbol)
	}

	return nil
}

// RecordSettlement journals a closed position.
func (j *Journal) RecordSettlement(symbol string, price, credit float64, outcome types.SettlementOutcome) error {
	_, err := j.sq.
		Insert("settlements").
		Columns("settlement_id", "symbol", "price", "credit", "outcome", "recorded_at").
		Values(uuid.New().String(), symbol, price, credit, string(outcome), time.Now()).
		RunWith(j.db).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeJournalFailed, err, "failed to journal settlement for %s", symbol)
	}

	return nil
}

// Summarize aggregates the journaled run.
func (j *Journal) Summarize() (Report, error) {
	var report Report

	row := j.db.QueryRow(`SELECT count(*), coalesce(sum(debit), 0) FROM entries`)
	if err := row.Scan(&report.Entries, &report.TotalDebit); err != nil {
		return Report{}, errors.Wrap(errors.ErrCodeJournalFailed, "failed to aggregate entries", err)
	}

	row = j.db.QueryRow(`
		SELECT
			count(*) FILTER (WHERE outcome = ?),
			count(*) FILTER (WHERE outcome = ?),
			coalesce(sum(credit), 0)
		FROM settlements
	`, string(types.SettlementGain), string(types.SettlementLoss))
	if err := row.Scan(&report.Gains, &report.Losses, &report.TotalCredit); err != nil {
		return Report{}, errors.Wrap(errors.ErrCodeJournalFailed, "failed to aggregate settlements", err)
	}

	best, err := j.extremeSymbol("DESC")
	if err != nil {
		return Report{}, err
	}

	worst, err := j.extremeSymbol("ASC")
	if err != nil {
		return Report{}, err
	}

	report.BestSymbol = best
	report.WorstSymbol = worst

	return report, nil
}

// extremeSymbol returns the symbol with the highest (DESC) or lowest (ASC)
// settled credit. Empty when nothing settled yet.
func (j *Journal) extremeSymbol(direction string) (string, error) {
	query := `
		SELECT symbol FROM settlements
		GROUP BY symbol
		ORDER BY sum(credit) ` + direction + `
		LIMIT 1
	`

	var symbol string

	err := j.db.QueryRow(query).Scan(&symbol)
	if err == sql.ErrNoRows {
		return "", nil
	}

	if err != nil {
		return "", errors.Wrap(errors.ErrCodeJournalFailed, "failed to rank symbols", err)
	}

	return symbol, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
