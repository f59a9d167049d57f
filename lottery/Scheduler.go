package lottery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bigfishlaker/points-lotto/config"
	"github.com/bigfishlaker/points-lotto/model"
	"github.com/bigfishlaker/points-lotto/pointsmarket"
	"github.com/bigfishlaker/points-lotto/utils"

	"github.com/spf13/viper"
)

const (
	StateIdle       = "idle"
	StateFetching   = "fetching"
	StateEvaluating = "evaluating"
	StateSelecting  = "selecting"
	StateRecorded   = "recorded"
	StateSkipped    = "skipped"
)

// Scheduler runs the drawing once per day inside a short trigger window.
// RunDrawing is also the path behind the manual trigger endpoint, so scheduled
// and manual runs share all locking and idempotency behavior.
type Scheduler struct {
	db     DBTX
	ledger *Ledger
	client *pointsmarket.Client

	location      *time.Location
	drawHour      int
	drawMinute    int
	windowMinutes int
	tick          time.Duration

	// runMu serializes drawings in this process; mu guards the small status
	// fields so State stays readable mid-drawing.
	runMu     sync.Mutex
	mu        sync.Mutex
	state     string
	lastError string
	lastRun   string // drawing date of the last completed or skipped cycle
}

func NewScheduler(db DBTX, ledger *Ledger, client *pointsmarket.Client) *Scheduler {
	viper.SetDefault("lottery.draw_hour", 0)
	viper.SetDefault("lottery.draw_minute", 5)
	viper.SetDefault("lottery.window_minutes", 5)
	viper.SetDefault("lottery.tick_seconds", 60)
	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		utils.LogMessage(utils.CRITICAL, fmt.Sprintf("invalid timezone %s, falling back to UTC, err:%v", config.Timezone, err), config.ServiceName)
		location = time.UTC
	}
	return &Scheduler{
		db:            db,
		ledger:        ledger,
		client:        client,
		location:      location,
		drawHour:      viper.GetInt("lottery.draw_hour"),
		drawMinute:    viper.GetInt("lottery.draw_minute"),
		windowMinutes: viper.GetInt("lottery.window_minutes"),
		tick:          time.Duration(viper.GetInt("lottery.tick_seconds")) * time.Second,
		state:         StateIdle,
	}
}

// Run ticks until ctx is cancelled. Each tick inside the trigger window
// attempts the day's drawing; a cycle that already ran latches until the date
// rolls over. Upstream failures do not latch, so the next tick inside the
// window retries.
func (s *Scheduler) Run(ctx context.Context) {
	utils.LogMessage(utils.INFO, fmt.Sprintf("scheduler started, window %02d:%02d +%dm %s",
		s.drawHour, s.drawMinute, s.windowMinutes, s.location.String()), config.ServiceName)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	s.tickOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			utils.LogMessage(utils.INFO, "scheduler stopped", config.ServiceName)
			return
		case <-ticker.C:
			s.tickOnce(ctx)
		}
	}
}

func (s *Scheduler) tickOnce(ctx context.Context) {
	now := time.Now().In(s.location)
	if !s.inWindow(now) {
		return
	}
	drawDate := now.Format("2006-01-02")
	s.mu.Lock()
	latched := s.lastRun == drawDate
	s.mu.Unlock()
	if latched {
		return
	}
	if _, _, err := s.RunDrawing(ctx, drawDate); err != nil {
		if errors.Is(err, ErrSelectionInProgress) || errors.Is(err, ErrNoQualifiedCandidates) || errors.Is(err, ErrEmptyLeaderboard) {
			return
		}
		utils.LogMessage(utils.ERROR, fmt.Sprintf("scheduled drawing failed, date:%s, err:%v", drawDate, err), config.ServiceName)
	}
}

func (s *Scheduler) inWindow(now time.Time) bool {
	open := time.Date(now.Year(), now.Month(), now.Day(), s.drawHour, s.drawMinute, 0, 0, now.Location())
	end := open.Add(time.Duration(s.windowMinutes) * time.Minute)
	return !now.Before(open) && now.Before(end)
}

// CurrentCycleDate returns today's drawing date in the scheduler timezone.
func (s *Scheduler) CurrentCycleDate() string {
	return time.Now().In(s.location).Format("2006-01-02")
}

// NextDrawTime returns the next window opening after now.
func (s *Scheduler) NextDrawTime(now time.Time) time.Time {
	now = now.In(s.location)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.drawHour, s.drawMinute, 0, 0, s.location)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// State reports the current phase and the last error, for the status endpoint.
func (s *Scheduler) State() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.lastError
}

func (s *Scheduler) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) setError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

func (s *Scheduler) finish(state, drawDate string, latch bool) {
	s.mu.Lock()
	s.state = state
	if latch {
		s.lastRun = drawDate
	}
	s.mu.Unlock()
}

// RunDrawing executes one full cycle for drawDate: snapshot the leaderboard,
// qualify by point gain against the reference snapshot, select and record the
// winner. Safe to call concurrently; one caller wins the mutex and the rest
// get ErrSelectionInProgress, while the daily_winners unique constraint covers
// other processes. Returns the drawing if one exists afterwards, and whether
// this call created it.
func (s *Scheduler) RunDrawing(ctx context.Context, drawDate string) (*model.Drawing, bool, error) {
	if !s.runMu.TryLock() {
		return nil, false, ErrSelectionInProgress
	}
	defer s.runMu.Unlock()
	s.mu.Lock()
	s.state = StateFetching
	s.lastError = ""
	s.mu.Unlock()

	// Fast path, no snapshot traffic when the cycle already ran.
	if existing, err := s.ledger.WinnerForDate(ctx, drawDate); err != nil {
		s.setError(err)
		s.finish(StateIdle, drawDate, false)
		return nil, false, err
	} else if existing != nil {
		s.finish(StateRecorded, drawDate, true)
		return existing, false, nil
	}

	snapshot, current, err := FetchAndPersist(ctx, s.db, s.client, drawDate)
	if err != nil {
		s.setError(err)
		// An empty leaderboard is a data fault that will not heal within the
		// window, so the cycle is abandoned; unreachable upstream is retried
		// on the next tick.
		if errors.Is(err, ErrEmptyLeaderboard) {
			utils.LogMessage(utils.WARNING, fmt.Sprintf("empty leaderboard, skipping drawing, date:%s", drawDate), config.ServiceName)
			s.finish(StateSkipped, drawDate, true)
			return nil, false, err
		}
		s.finish(StateIdle, drawDate, false)
		return nil, false, err
	}

	s.setState(StateEvaluating)
	reference, err := ReferenceSnapshot(ctx, s.db)
	if err != nil {
		s.setError(err)
		s.finish(StateIdle, drawDate, false)
		return nil, false, err
	}
	qualified := ComputeQualified(current, reference)

	s.setState(StateSelecting)
	selection, err := SelectWinner(qualified, drawDate, snapshot.FetchedAt)
	if errors.Is(err, ErrNoQualifiedCandidates) {
		utils.LogMessage(utils.WARNING, fmt.Sprintf("no qualified accounts, skipping drawing, date:%s", drawDate), config.ServiceName)
		s.finish(StateSkipped, drawDate, true)
		return nil, false, err
	}
	if err != nil {
		s.setError(err)
		s.finish(StateIdle, drawDate, false)
		return nil, false, err
	}

	// Recording gets its own bounded context so shutdown cannot cut the
	// transaction short once a winner is chosen.
	recordCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	drawing := &model.Drawing{
		Username:      selection.Winner.Username,
		Points:        selection.Winner.TotalPoints,
		DrawingDate:   drawDate,
		TotalEligible: selection.TotalEligible,
		SeedMaterial:  selection.SeedMaterial,
		RandomSeed:    selection.RandomSeed,
		SelectionHash: selection.SelectionHash,
		SnapshotId:    &snapshot.Id,
	}
	recorded, inserted, err := s.ledger.RecordIfAbsent(recordCtx, drawing)
	if err != nil {
		s.setError(err)
		s.finish(StateIdle, drawDate, false)
		return nil, false, err
	}
	if inserted {
		utils.LogMessage(utils.INFO, fmt.Sprintf("drawing recorded, date:%s, winner:%s, eligible:%d, seed:%d",
			drawDate, recorded.Username, recorded.TotalEligible, recorded.RandomSeed), config.ServiceName)
	} else {
		utils.LogMessage(utils.INFO, fmt.Sprintf("drawing already recorded elsewhere, date:%s, winner:%s", drawDate, recorded.Username), config.ServiceName)
	}
	s.invalidateCache(recordCtx)
	s.finish(StateRecorded, drawDate, true)
	return recorded, inserted, nil
}

func (s *Scheduler) invalidateCache(ctx context.Context) {
	if config.Redis == nil {
		return
	}
	if err := config.Redis.Del(ctx, utils.CacheKeyCurrentWinner, utils.CacheKeyQualified).Err(); err != nil {
		utils.LogMessage(utils.WARNING, fmt.Sprintf("unable to invalidate winner cache, err:%v", err), config.ServiceName)
	}
}
