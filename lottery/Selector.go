package lottery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/bigfishlaker/points-lotto/model"
)

// Selection is the outcome of one draw with everything needed to replay it:
// the exact string that was hashed into the seed, the numeric seed, and the
// verification hash over seed + winner.
type Selection struct {
	Winner        model.Candidate
	SeedMaterial  string
	RandomSeed    int64
	SelectionHash string
	TotalEligible int
}

const seedModulus = 1000000

// SelectWinner draws one winner from the qualified set. The draw is a pure
// function of (drawDate, fetchedAt, qualified set): candidates are ordered by
// username ascending, the seed material is hashed with SHA-256, the first 8
// hex characters reduced modulo 1,000,000 seed the index draw. Re-running
// with the same inputs always yields the same winner and hash.
func SelectWinner(qualified []model.Candidate, drawDate string, fetchedAt time.Time) (*Selection, error) {
	if len(qualified) == 0 {
		return nil, ErrNoQualifiedCandidates
	}

	ordered := make([]model.Candidate, len(qualified))
	copy(ordered, qualified)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Username < ordered[j].Username
	})

	seedMaterial := fmt.Sprintf("%s%s%d", drawDate, fetchedAt.Format("2006-01-02T15:04:05"), len(ordered))
	sum := sha256.Sum256([]byte(seedMaterial))
	digest := hex.EncodeToString(sum[:])
	parsed, err := strconv.ParseInt(digest[:8], 16, 64)
	if err != nil {
		return nil, fmt.Errorf("deriving seed from %q: %w", seedMaterial, err)
	}
	seed := parsed % seedModulus

	index := rand.New(rand.NewSource(seed)).Intn(len(ordered))
	winner := ordered[index]

	verification := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d%d", drawDate, winner.Username, winner.TotalPoints, seed)))

	return &Selection{
		Winner:        winner,
		SeedMaterial:  seedMaterial,
		RandomSeed:    seed,
		SelectionHash: hex.EncodeToString(verification[:])[:16],
		TotalEligible: len(ordered),
	}, nil
}
