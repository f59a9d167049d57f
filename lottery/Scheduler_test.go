package lottery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigfishlaker/points-lotto/pointsmarket"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func testScheduler() *Scheduler {
	return &Scheduler{
		location:      time.UTC,
		drawHour:      0,
		drawMinute:    5,
		windowMinutes: 5,
		state:         StateIdle,
	}
}

func TestInWindow(t *testing.T) {
	a := assert.New(t)
	s := testScheduler()

	tests := []struct {
		description string
		now         time.Time
		expected    bool
	}{
		{"before window", time.Date(2026, 8, 29, 0, 4, 59, 0, time.UTC), false},
		{"window opens", time.Date(2026, 8, 29, 0, 5, 0, 0, time.UTC), true},
		{"inside window", time.Date(2026, 8, 29, 0, 7, 30, 0, time.UTC), true},
		{"last second", time.Date(2026, 8, 29, 0, 9, 59, 0, time.UTC), true},
		{"window closed", time.Date(2026, 8, 29, 0, 10, 0, 0, time.UTC), false},
		{"midday", time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC), false},
	}
	for _, test := range tests {
		a.Equal(test.expected, s.inWindow(test.now), test.description)
	}
}

func TestNextDrawTime(t *testing.T) {
	a := assert.New(t)
	s := testScheduler()

	beforeWindow := time.Date(2026, 8, 29, 0, 1, 0, 0, time.UTC)
	a.Equal(time.Date(2026, 8, 29, 0, 5, 0, 0, time.UTC), s.NextDrawTime(beforeWindow))

	atOpen := time.Date(2026, 8, 29, 0, 5, 0, 0, time.UTC)
	a.Equal(time.Date(2026, 8, 30, 0, 5, 0, 0, time.UTC), s.NextDrawTime(atOpen))

	evening := time.Date(2026, 8, 29, 22, 0, 0, 0, time.UTC)
	a.Equal(time.Date(2026, 8, 30, 0, 5, 0, 0, time.UTC), s.NextDrawTime(evening))
}

func TestSchedulerStateReporting(t *testing.T) {
	a := assert.New(t)
	s := testScheduler()

	state, lastError := s.State()
	a.Equal(StateIdle, state)
	a.Empty(lastError)

	s.setState(StateFetching)
	state, _ = s.State()
	a.Equal(StateFetching, state)

	s.setError(ErrEmptyLeaderboard)
	s.finish(StateIdle, "2026-08-29", false)
	state, lastError = s.State()
	a.Equal(StateIdle, state)
	a.Equal(ErrEmptyLeaderboard.Error(), lastError)
	a.Empty(s.lastRun, "failed cycles must not latch")

	s.finish(StateSkipped, "2026-08-29", true)
	a.Equal("2026-08-29", s.lastRun)
}

func TestRunDrawingSkipsWhenNothingQualifies(t *testing.T) {
	a := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"leaderboard": [{"username": "idle_account", "points": 0, "rank": 1}]}`))
	}))
	defer server.Close()
	viper.Set("pointsmarket.base_url", server.URL)
	defer viper.Set("pointsmarket.base_url", "")

	mock, err := pgxmock.NewPool()
	a.NoError(err)
	defer mock.Close()

	// No winner yet for the cycle.
	mock.ExpectQuery(`select (.+) from daily_winners where drawing_date`).
		WithArgs("2026-08-29").
		WillReturnError(pgx.ErrNoRows)
	// The snapshot is still captured and persisted.
	mock.ExpectBegin()
	mock.ExpectQuery(`insert into snapshots`).
		WithArgs("2026-08-29", pgxmock.AnyArg(), 1).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).
			AddRow(11, time.Date(2026, 8, 29, 0, 5, 30, 0, time.UTC)))
	mock.ExpectExec(`insert into snapshot_entries`).
		WithArgs(11, "idle_account", int64(0), 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	// First cycle ever, so the reference is the baseline sentinel.
	mock.ExpectQuery(`select snapshot_id from daily_winners`).
		WillReturnError(pgx.ErrNoRows)
	// No daily_winners insert is expected past this point.

	s := &Scheduler{
		db:       mock,
		ledger:   NewLedger(mock),
		client:   pointsmarket.NewClient(),
		location: time.UTC,
		state:    StateIdle,
	}
	drawing, inserted, err := s.RunDrawing(context.Background(), "2026-08-29")
	a.Nil(drawing)
	a.False(inserted)
	a.ErrorIs(err, ErrNoQualifiedCandidates)

	state, _ := s.State()
	a.Equal(StateSkipped, state)
	a.Equal("2026-08-29", s.lastRun, "skipped cycles latch until the date rolls over")
	a.NoError(mock.ExpectationsWereMet())
}

func TestRunDrawingRejectsConcurrentCalls(t *testing.T) {
	a := assert.New(t)
	s := testScheduler()

	s.runMu.Lock()
	defer s.runMu.Unlock()
	drawing, inserted, err := s.RunDrawing(context.Background(), "2026-08-29")
	a.Nil(drawing)
	a.False(inserted)
	a.ErrorIs(err, ErrSelectionInProgress)
}
