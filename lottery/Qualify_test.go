package lottery

import (
	"testing"

	"github.com/bigfishlaker/points-lotto/model"

	"github.com/stretchr/testify/assert"
)

func candidateGains(candidates []model.Candidate) map[string]int64 {
	gains := map[string]int64{}
	for _, candidate := range candidates {
		gains[candidate.Username] = candidate.Gain
	}
	return gains
}

func TestComputeQualifiedGainRule(t *testing.T) {
	a := assert.New(t)
	reference := &Reference{Entries: map[string]int64{
		"alice": 145,
		"bob":   90,
		"carol": 288,
		"dave":  50,
	}}
	current := map[string]int64{
		"alice": 150, // +5
		"bob":   90,  // no gain
		"carol": 300, // +12
		"dave":  45,  // lost points
	}

	qualified := ComputeQualified(current, reference)
	gains := candidateGains(qualified)
	a.Len(qualified, 2)
	a.Equal(int64(5), gains["alice"])
	a.Equal(int64(12), gains["carol"])
	a.NotContains(gains, "bob")
	a.NotContains(gains, "dave")
}

func TestComputeQualifiedPointsFloor(t *testing.T) {
	a := assert.New(t)
	reference := &Reference{Entries: map[string]int64{"broke": -10}}
	current := map[string]int64{
		"broke": 0, // gained 10 but still below 1 point
		"zero":  0,
	}

	qualified := ComputeQualified(current, reference)
	a.Empty(qualified)
}

func TestComputeQualifiedNewAccount(t *testing.T) {
	a := assert.New(t)
	reference := &Reference{Entries: map[string]int64{"veteran": 500}}
	current := map[string]int64{
		"veteran":  500,
		"newcomer": 1, // absent from reference, counts from 0
	}

	qualified := ComputeQualified(current, reference)
	gains := candidateGains(qualified)
	a.Len(qualified, 1)
	a.Equal(int64(1), gains["newcomer"])
}

func TestComputeQualifiedBaseline(t *testing.T) {
	a := assert.New(t)
	reference := &Reference{Baseline: true}
	current := map[string]int64{
		"alice": 150,
		"bob":   1,
		"zero":  0,
	}

	qualified := ComputeQualified(current, reference)
	gains := candidateGains(qualified)
	a.Len(qualified, 2)
	a.Equal(int64(150), gains["alice"])
	a.Equal(int64(1), gains["bob"])
	a.NotContains(gains, "zero")
}

func TestComputeQualifiedEmptyCurrent(t *testing.T) {
	a := assert.New(t)
	qualified := ComputeQualified(map[string]int64{}, &Reference{Baseline: true})
	a.Empty(qualified)
}
