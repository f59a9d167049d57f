package pointsmarket

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bigfishlaker/points-lotto/model"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
)

// Client reads the public PointsMarket leaderboard API. The upstream is
// untrusted: individual accounts with missing or malformed fields are
// dropped, never the whole response.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient() *Client {
	baseURL := viper.GetString("pointsmarket.base_url")
	if baseURL == "" {
		baseURL = "https://www.pointsmarket.io"
	}
	timeout := viper.GetInt("pointsmarket.timeout_seconds")
	if timeout <= 0 {
		timeout = 10
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}
}

type leaderboardResponse struct {
	Leaderboard []leaderboardEntry `json:"leaderboard"`
}

type leaderboardEntry struct {
	Username       string          `json:"username"`
	Points         json.RawMessage `json:"points"`
	Rank           int             `json:"rank"`
	Transactions   int             `json:"transactions"`
	CommunityScore struct {
		Upvotes   int `json:"upvotes"`
		Downvotes int `json:"downvotes"`
	} `json:"community_score"`
	Badges []struct {
		BadgeName string `json:"badge_name"`
	} `json:"badges"`
}

// parsePoints reads the points field of one account. The field is decoded
// per-account so one bad record never rejects the whole leaderboard; a
// missing, non-numeric or fractional value fails only its own entry.
func parsePoints(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var points int64
	if err := json.Unmarshal(raw, &points); err == nil {
		return points, true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if points, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
			return points, true
		}
	}
	return 0, false
}

// Leaderboard fetches the full ranked account list. Accounts without a
// username or a usable points field are skipped.
func (c *Client) Leaderboard(ctx context.Context) ([]model.LeaderboardUser, error) {
	url := c.baseURL + "/api/leaderboard"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "points-lotto/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leaderboard request returned HTTP %d", resp.StatusCode)
	}

	var payload leaderboardResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding leaderboard response: %w", err)
	}

	users := make([]model.LeaderboardUser, 0, len(payload.Leaderboard))
	for i, entry := range payload.Leaderboard {
		points, ok := parsePoints(entry.Points)
		if entry.Username == "" || !ok || points < 0 {
			continue
		}
		rank := entry.Rank
		if rank == 0 {
			rank = i + 1
		}
		badges := make([]string, 0, len(entry.Badges))
		for _, b := range entry.Badges {
			badges = append(badges, b.BadgeName)
		}
		users = append(users, model.LeaderboardUser{
			Username:     entry.Username,
			TotalPoints:  points,
			Rank:         rank,
			Upvotes:      entry.CommunityScore.Upvotes,
			Downvotes:    entry.CommunityScore.Downvotes,
			Transactions: entry.Transactions,
			Badges:       badges,
		})
	}
	return users, nil
}

// UserTransactions fetches the recent transaction history for one account.
// Used by the qualification-check endpoint to show what earned the points.
func (c *Client) UserTransactions(ctx context.Context, username string) ([]Transaction, error) {
	url := fmt.Sprintf("%s/api/user/%s/transactions", c.baseURL, username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "points-lotto/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transactions request returned HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding transactions response: %w", err)
	}
	return payload.Transactions, nil
}

type Transaction struct {
	Description string `json:"description"`
	TweetId     string `json:"tweet_id"`
	CreatedAt   string `json:"created_at"`
	Points      int64  `json:"points"`
	Type        string `json:"type"`
}
