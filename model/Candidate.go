package model

// LeaderboardUser is one account as returned by the PointsMarket API.
type LeaderboardUser struct {
	Username     string   `json:"username"`
	TotalPoints  int64    `json:"total_points"`
	Rank         int      `json:"rank"`
	Upvotes      int      `json:"upvotes"`
	Downvotes    int      `json:"downvotes"`
	Transactions int      `json:"transactions"`
	Badges       []string `json:"badges"`
}

// Candidate is an account eligible for the current cycle's drawing, with the
// gain computed against the reference snapshot. Candidates are transient and
// never persisted.
type Candidate struct {
	Username    string `json:"username"`
	TotalPoints int64  `json:"total_points"`
	Gain        int64  `json:"gain"`
	Rank        int    `json:"rank,omitempty"`
}
