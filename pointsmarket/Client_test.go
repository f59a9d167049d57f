package pointsmarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testClient(server *httptest.Server) *Client {
	return &Client{
		baseURL: server.URL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func TestLeaderboardSkipsMalformedEntries(t *testing.T) {
	a := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.Equal("/api/leaderboard", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"leaderboard": [
			{"username": "alice", "points": 150, "rank": 1, "transactions": 12, "community_score": {"upvotes": 30, "downvotes": 2}, "badges": [{"badge_name": "early_bird"}]},
			{"username": "", "points": 999},
			{"username": "no_points"},
			{"username": "weird", "points": "not-a-number"},
			{"username": "fractional", "points": 12.5},
			{"username": "null_points", "points": null},
			{"username": "negative", "points": -5},
			{"username": "stringy", "points": "42"},
			{"username": "bob", "points": 90}
		]}`))
	}))
	defer server.Close()

	users, err := testClient(server).Leaderboard(context.Background())
	a.NoError(err)
	a.Len(users, 3)
	a.Equal("alice", users[0].Username)
	a.Equal(int64(150), users[0].TotalPoints)
	a.Equal(1, users[0].Rank)
	a.Equal(30, users[0].Upvotes)
	a.Equal([]string{"early_bird"}, users[0].Badges)
	a.Equal("stringy", users[1].Username)
	a.Equal(int64(42), users[1].TotalPoints, "quoted integers are accepted")
	a.Equal("bob", users[2].Username)
	a.Equal(9, users[2].Rank, "missing rank falls back to list position")
}

func TestLeaderboardUpstreamError(t *testing.T) {
	a := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	users, err := testClient(server).Leaderboard(context.Background())
	a.Error(err)
	a.Nil(users)
}

func TestLeaderboardInvalidJson(t *testing.T) {
	a := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"leaderboard": [`))
	}))
	defer server.Close()

	_, err := testClient(server).Leaderboard(context.Background())
	a.Error(err)
}

func TestLeaderboardEmpty(t *testing.T) {
	a := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"leaderboard": []}`))
	}))
	defer server.Close()

	users, err := testClient(server).Leaderboard(context.Background())
	a.NoError(err)
	a.Empty(users)
}

func TestUserTransactions(t *testing.T) {
	a := assert.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.Equal("/api/user/alice/transactions", r.URL.Path)
		w.Write([]byte(`{"transactions": [
			{"description": "Tweet engagement", "tweet_id": "184930", "points": 5, "type": "earn", "created_at": "2026-08-28T14:00:00Z"}
		]}`))
	}))
	defer server.Close()

	transactions, err := testClient(server).UserTransactions(context.Background(), "alice")
	a.NoError(err)
	a.Len(transactions, 1)
	a.Equal(int64(5), transactions[0].Points)
	a.Equal("earn", transactions[0].Type)
}
