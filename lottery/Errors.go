package lottery

import "errors"

var (
	// ErrUpstreamUnavailable wraps any network, timeout or parse failure
	// talking to PointsMarket. Never fatal; the next tick retries.
	ErrUpstreamUnavailable = errors.New("pointsmarket unavailable")

	// ErrEmptyLeaderboard means the fetch succeeded but zero valid accounts
	// came back. Treated as a data fault, not a valid empty state.
	ErrEmptyLeaderboard = errors.New("leaderboard returned no valid accounts")

	// ErrNoQualifiedCandidates means the cycle is skipped: no drawing is
	// recorded and the previous winner stays current.
	ErrNoQualifiedCandidates = errors.New("no qualified candidates")

	// ErrSelectionInProgress is returned when a manual trigger races an
	// in-flight tick of the same process. The ledger's unique constraint
	// remains the authoritative cross-process guard.
	ErrSelectionInProgress = errors.New("a selection is already in progress")

	// ErrStorage wraps snapshot/ledger transaction failures.
	ErrStorage = errors.New("storage failure")
)
