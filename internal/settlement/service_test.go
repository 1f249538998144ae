package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"bullpen/internal/achievements"
	"bullpen/internal/ranking"
)

// stubEvaluator fails for the users in failFor and records everyone it
// successfully evaluated.
type stubEvaluator struct {
	failFor   map[string]bool
	evaluated []string
}

func (s *stubEvaluator) BuildFacts(_ context.Context, penID string, seasonID *string, userID string, rank int, _ time.Time) (achievements.MemberFacts, error) {
	if s.failFor[userID] {
		return achievements.MemberFacts{}, errors.New("facts query failed")
	}
	return achievements.MemberFacts{UserID: userID, BullPenID: penID, SeasonID: seasonID, Rank: rank}, nil
}

func (s *stubEvaluator) EvaluateMember(_ context.Context, f achievements.MemberFacts) (int, error) {
	s.evaluated = append(s.evaluated, f.UserID)
	return 0, nil
}

func (s *stubEvaluator) StarsInPen(context.Context, string, string) (int, error) {
	return 0, nil
}

func TestEvaluateMembersIsolatesFailures(t *testing.T) {
	ev := &stubEvaluator{failFor: map[string]bool{"u2": true}}
	ranked := []ranking.Entry{
		{UserID: "u1"},
		{UserID: "u2"},
		{UserID: "u3"},
	}

	failed := evaluateMembers(context.Background(), ev, zap.NewNop(), "pen1", nil, ranked, time.Now())

	assert.Equal(t, 1, failed)
	// u2's failure never blocks the members after it
	assert.Equal(t, []string{"u1", "u3"}, ev.evaluated)
}

func TestEvaluateMembersPassesFinalRank(t *testing.T) {
	var gotRanks []int
	ev := &rankRecorder{ranks: &gotRanks}
	ranked := []ranking.Entry{{UserID: "a"}, {UserID: "b"}, {UserID: "c"}}

	failed := evaluateMembers(context.Background(), ev, zap.NewNop(), "pen1", nil, ranked, time.Now())

	assert.Zero(t, failed)
	assert.Equal(t, []int{1, 2, 3}, gotRanks)
}

type rankRecorder struct {
	ranks *[]int
}

func (r *rankRecorder) BuildFacts(_ context.Context, penID string, seasonID *string, userID string, rank int, _ time.Time) (achievements.MemberFacts, error) {
	*r.ranks = append(*r.ranks, rank)
	return achievements.MemberFacts{UserID: userID, BullPenID: penID, SeasonID: seasonID, Rank: rank}, nil
}

func (r *rankRecorder) EvaluateMember(context.Context, achievements.MemberFacts) (int, error) {
	return 0, nil
}

func (r *rankRecorder) StarsInPen(context.Context, string, string) (int, error) {
	return 0, nil
}
