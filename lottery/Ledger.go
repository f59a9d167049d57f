package lottery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bigfishlaker/points-lotto/config"
	"github.com/bigfishlaker/points-lotto/model"
	"github.com/bigfishlaker/points-lotto/utils"

	"github.com/jackc/pgx/v5"
)

// DBTX is the slice of pgxpool.Pool the ledger needs; pgxmock satisfies it in
// tests.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger owns the daily_winners table. All writes go through RecordIfAbsent;
// the UNIQUE constraint on drawing_date is the exactly-once guarantee and
// holds across processes.
type Ledger struct {
	db DBTX
}

func NewLedger(db DBTX) *Ledger {
	return &Ledger{db: db}
}

const drawingColumns = `id, winner_username, winner_points, drawing_date, selected_at, is_current, total_eligible, seed_material, random_seed, selection_hash, snapshot_id`

func scanDrawing(row pgx.Row) (*model.Drawing, error) {
	d := model.Drawing{}
	var drawingDate time.Time
	err := row.Scan(&d.Id, &d.Username, &d.Points, &drawingDate, &d.SelectedAt, &d.IsCurrent,
		&d.TotalEligible, &d.SeedMaterial, &d.RandomSeed, &d.SelectionHash, &d.SnapshotId)
	if err != nil {
		return nil, err
	}
	d.DrawingDate = drawingDate.Format("2006-01-02")
	return &d, nil
}

// RecordIfAbsent inserts the drawing for its cycle unless one already exists,
// in which case the existing row is returned untouched with inserted=false.
// Insert and current-flag handover happen in one transaction; a concurrent
// insert losing the race is absorbed through the unique-violation path.
func (l *Ledger) RecordIfAbsent(ctx context.Context, d *model.Drawing) (*model.Drawing, bool, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: begin ledger transaction: %v", ErrStorage, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				utils.LogMessage(utils.CRITICAL, fmt.Sprintf("RecordIfAbsent: unable to rollback transaction, date:%s, err:%v", d.DrawingDate, rbErr), config.ServiceName)
			}
		}
	}()

	existing, err := scanDrawing(tx.QueryRow(ctx,
		`select `+drawingColumns+` from daily_winners where drawing_date = $1`, d.DrawingDate))
	if err == nil {
		if err = tx.Commit(context.Background()); err != nil {
			return nil, false, fmt.Errorf("%w: commit ledger transaction: %v", ErrStorage, err)
		}
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("%w: check existing drawing: %v", ErrStorage, err)
	}

	_, err = tx.Exec(ctx, `update daily_winners set is_current = false where is_current = true`)
	if err != nil {
		return nil, false, fmt.Errorf("%w: clear current drawing: %v", ErrStorage, err)
	}

	err = tx.QueryRow(ctx,
		`insert into daily_winners (winner_username, winner_points, drawing_date, is_current, total_eligible, seed_material, random_seed, selection_hash, snapshot_id)
		values ($1, $2, $3, true, $4, $5, $6, $7, $8) returning id, selected_at`,
		d.Username, d.Points, d.DrawingDate, d.TotalEligible, d.SeedMaterial, d.RandomSeed, d.SelectionHash, d.SnapshotId).
		Scan(&d.Id, &d.SelectedAt)
	if err != nil {
		if ok, _ := utils.IsErrDuplicate(err); ok {
			// Lost the race against another caller; hand back their row.
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				utils.LogMessage(utils.CRITICAL, fmt.Sprintf("RecordIfAbsent: unable to rollback after duplicate, date:%s, err:%v", d.DrawingDate, rbErr), config.ServiceName)
			}
			winner, raceErr := l.WinnerForDate(ctx, d.DrawingDate)
			if raceErr != nil {
				return nil, false, raceErr
			}
			err = nil
			return winner, false, nil
		}
		return nil, false, fmt.Errorf("%w: insert drawing: %v", ErrStorage, err)
	}
	d.IsCurrent = true

	if err = tx.Commit(context.Background()); err != nil {
		return nil, false, fmt.Errorf("%w: commit ledger transaction: %v", ErrStorage, err)
	}
	return d, true, nil
}

// CurrentWinner returns the drawing flagged current, or nil when none exists
// yet.
func (l *Ledger) CurrentWinner(ctx context.Context) (*model.Drawing, error) {
	d, err := scanDrawing(l.db.QueryRow(ctx,
		`select `+drawingColumns+` from daily_winners where is_current = true order by selected_at desc limit 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load current winner: %v", ErrStorage, err)
	}
	return d, nil
}

// WinnerForDate returns the drawing recorded for one cycle, or nil.
func (l *Ledger) WinnerForDate(ctx context.Context, drawingDate string) (*model.Drawing, error) {
	d, err := scanDrawing(l.db.QueryRow(ctx,
		`select `+drawingColumns+` from daily_winners where drawing_date = $1`, drawingDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load winner for %s: %v", ErrStorage, drawingDate, err)
	}
	return d, nil
}

// AllWinners returns the full drawing history, oldest first.
func (l *Ledger) AllWinners(ctx context.Context) ([]model.Drawing, error) {
	rows, err := l.db.Query(ctx,
		`select `+drawingColumns+` from daily_winners order by selected_at asc`)
	if err != nil {
		return nil, fmt.Errorf("%w: load winner history: %v", ErrStorage, err)
	}
	defer rows.Close()

	winners := []model.Drawing{}
	for rows.Next() {
		d, err := scanDrawing(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan winner history: %v", ErrStorage, err)
		}
		winners = append(winners, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read winner history: %v", ErrStorage, err)
	}
	return winners, nil
}
