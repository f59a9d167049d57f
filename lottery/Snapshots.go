package lottery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bigfishlaker/points-lotto/config"
	"github.com/bigfishlaker/points-lotto/model"
	"github.com/bigfishlaker/points-lotto/pointsmarket"
	"github.com/bigfishlaker/points-lotto/utils"

	"github.com/jackc/pgx/v5"
)

// Reference is the snapshot the current cycle is diffed against: the one
// recorded with the latest drawing. Baseline is set for the very first cycle,
// before any drawing exists.
type Reference struct {
	SnapshotId int
	Entries    map[string]int64
	Baseline   bool
}

// FetchAndPersist pulls the full leaderboard and stores it as a new immutable
// snapshot. A second fetch on the same date inserts another snapshot row;
// existing rows are never overwritten. Returns the snapshot and the
// username -> points map it captured.
func FetchAndPersist(ctx context.Context, db DBTX, client *pointsmarket.Client, drawDate string) (*model.Snapshot, map[string]int64, error) {
	users, err := client.Leaderboard(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if len(users) == 0 {
		return nil, nil, ErrEmptyLeaderboard
	}
	fetchedAt := time.Now()

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: begin snapshot transaction: %v", ErrStorage, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				utils.LogMessage(utils.CRITICAL, fmt.Sprintf("FetchAndPersist: unable to rollback transaction, err:%v", rbErr), config.ServiceName)
			}
		}
	}()

	snapshot := &model.Snapshot{
		SnapshotDate:  drawDate,
		FetchedAt:     fetchedAt,
		TotalAccounts: len(users),
	}
	err = tx.QueryRow(ctx,
		`insert into snapshots (snapshot_date, fetched_at, total_accounts) values ($1, $2, $3) returning id, created_at`,
		drawDate, fetchedAt, len(users)).
		Scan(&snapshot.Id, &snapshot.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: insert snapshot: %v", ErrStorage, err)
	}

	points := make(map[string]int64, len(users))
	for _, user := range users {
		if _, seen := points[user.Username]; seen {
			continue
		}
		points[user.Username] = user.TotalPoints
		_, err = tx.Exec(ctx,
			`insert into snapshot_entries (snapshot_id, username, total_points, rank) values ($1, $2, $3, $4)`,
			snapshot.Id, user.Username, user.TotalPoints, user.Rank)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: insert snapshot entry for %s: %v", ErrStorage, user.Username, err)
		}
	}

	if err = tx.Commit(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("%w: commit snapshot: %v", ErrStorage, err)
	}
	return snapshot, points, nil
}

// ReferenceSnapshot loads the snapshot published by the latest recorded
// drawing. When no drawing carries a snapshot yet the baseline sentinel is
// returned and the gain rule is not applied.
func ReferenceSnapshot(ctx context.Context, db DBTX) (*Reference, error) {
	var snapshotId int
	err := db.QueryRow(ctx,
		`select snapshot_id from daily_winners where snapshot_id is not null order by selected_at desc limit 1`).
		Scan(&snapshotId)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &Reference{Baseline: true}, nil
		}
		return nil, fmt.Errorf("%w: load reference snapshot id: %v", ErrStorage, err)
	}

	rows, err := db.Query(ctx,
		`select username, total_points from snapshot_entries where snapshot_id = $1`, snapshotId)
	if err != nil {
		return nil, fmt.Errorf("%w: load reference snapshot entries: %v", ErrStorage, err)
	}
	defer rows.Close()

	entries := make(map[string]int64)
	for rows.Next() {
		var username string
		var totalPoints int64
		if err := rows.Scan(&username, &totalPoints); err != nil {
			return nil, fmt.Errorf("%w: scan reference snapshot entry: %v", ErrStorage, err)
		}
		entries[username] = totalPoints
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read reference snapshot entries: %v", ErrStorage, err)
	}
	return &Reference{SnapshotId: snapshotId, Entries: entries}, nil
}
