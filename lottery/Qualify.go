package lottery

import "github.com/bigfishlaker/points-lotto/model"

// ComputeQualified applies the 24-hour qualification rule to every account in
// the current capture:
//
//   - accounts below 1 point never qualify, whatever their gain;
//   - on the very first cycle (baseline reference) every account with at
//     least 1 point qualifies and gain is not checked;
//   - otherwise an account qualifies when it gained at least 1 point since
//     the reference snapshot. An account absent from the reference counts as
//     having had 0 points, so a new entrant with 1+ points qualifies.
//
// Returns the empty set when nothing qualifies; callers skip the cycle.
func ComputeQualified(current map[string]int64, reference *Reference) []model.Candidate {
	qualified := make([]model.Candidate, 0, len(current))
	for username, points := range current {
		if points < 1 {
			continue
		}
		if reference.Baseline {
			qualified = append(qualified, model.Candidate{Username: username, TotalPoints: points, Gain: points})
			continue
		}
		gain := points - reference.Entries[username]
		if gain >= 1 {
			qualified = append(qualified, model.Candidate{Username: username, TotalPoints: points, Gain: gain})
		}
	}
	return qualified
}
