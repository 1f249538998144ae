package achievements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findAward(awards []Award, reason string) (Award, bool) {
	for _, a := range awards {
		if a.ReasonCode == reason {
			return a, true
		}
	}
	return Award{}, false
}

func TestFirstRoomJoin(t *testing.T) {
	awards := EvaluateRules(MemberFacts{UserID: "u1", BullPenID: "p1", Rank: 5, RoomsPlayed: 1})
	a, ok := findAward(awards, ReasonFirstRoomJoin)
	require.True(t, ok)
	assert.Equal(t, 1, a.Stars)

	awards = EvaluateRules(MemberFacts{UserID: "u1", BullPenID: "p1", Rank: 5, RoomsPlayed: 2})
	_, ok = findAward(awards, ReasonFirstRoomJoin)
	assert.False(t, ok)
}

func TestRoomFirstPlaceIsPenScoped(t *testing.T) {
	awards := EvaluateRules(MemberFacts{UserID: "u1", BullPenID: "p1", Rank: 1, RoomsPlayed: 3})
	a, ok := findAward(awards, ReasonRoomFirstPlace)
	require.True(t, ok)
	assert.Equal(t, 3, a.Stars)
	require.NotNil(t, a.BullPenID)
	assert.Equal(t, "p1", *a.BullPenID)
}

func TestThreeConsecutiveWins(t *testing.T) {
	awards := EvaluateRules(MemberFacts{BullPenID: "p1", Rank: 1, RoomsPlayed: 3, ConsecutiveWins: 2})
	_, ok := findAward(awards, ReasonThreeWinsStreak)
	assert.False(t, ok)

	awards = EvaluateRules(MemberFacts{BullPenID: "p1", Rank: 1, RoomsPlayed: 3, ConsecutiveWins: 3})
	a, ok := findAward(awards, ReasonThreeWinsStreak)
	require.True(t, ok)
	assert.Equal(t, 5, a.Stars)
}

func TestRoomsPlayedMilestonesPickHighest(t *testing.T) {
	cases := []struct {
		played int
		reason string
		stars  int
	}{
		{10, ReasonRoomsPlayed10, 2},
		{49, ReasonRoomsPlayed10, 2},
		{50, ReasonRoomsPlayed50, 3},
		{100, ReasonRoomsPlayed100, 5},
		{250, ReasonRoomsPlayed100, 5},
	}
	for _, tc := range cases {
		awards := EvaluateRules(MemberFacts{BullPenID: "p1", Rank: 4, RoomsPlayed: tc.played})
		a, ok := findAward(awards, tc.reason)
		require.True(t, ok, "played=%d", tc.played)
		assert.Equal(t, tc.stars, a.Stars)
	}
	awards := EvaluateRules(MemberFacts{BullPenID: "p1", Rank: 4, RoomsPlayed: 100})
	_, ok := findAward(awards, ReasonRoomsPlayed50)
	assert.False(t, ok, "only the highest milestone fires")
}

func TestSeasonTopPercentileNeedsSeason(t *testing.T) {
	season := "s1"
	awards := EvaluateRules(MemberFacts{BullPenID: "p1", Rank: 2, RoomsPlayed: 5, SeasonID: &season, SeasonAvgPct: 8})
	a, ok := findAward(awards, ReasonSeasonTopPercentile)
	require.True(t, ok)
	require.NotNil(t, a.SeasonID)
	assert.Equal(t, "s1", *a.SeasonID)

	// no season, no award even with a great percentile
	awards = EvaluateRules(MemberFacts{BullPenID: "p1", Rank: 2, RoomsPlayed: 5, SeasonAvgPct: 8})
	_, ok = findAward(awards, ReasonSeasonTopPercentile)
	assert.False(t, ok)

	// 11th percentile misses the cut
	awards = EvaluateRules(MemberFacts{BullPenID: "p1", Rank: 2, RoomsPlayed: 5, SeasonID: &season, SeasonAvgPct: 11})
	_, ok = findAward(awards, ReasonSeasonTopPercentile)
	assert.False(t, ok)
}

func TestActivityStreak(t *testing.T) {
	awards := EvaluateRules(MemberFacts{BullPenID: "p1", Rank: 3, RoomsPlayed: 2, ActivityStreakDays: 6})
	_, ok := findAward(awards, ReasonActivityStreak)
	assert.False(t, ok)

	awards = EvaluateRules(MemberFacts{BullPenID: "p1", Rank: 3, RoomsPlayed: 2, ActivityStreakDays: 7})
	_, ok = findAward(awards, ReasonActivityStreak)
	assert.True(t, ok)
}

func TestCampaignActionsAggregate(t *testing.T) {
	awards := EvaluateRules(MemberFacts{
		BullPenID:       "p1",
		Rank:            6,
		RoomsPlayed:     2,
		CampaignActions: []string{"SHARE_INVITE", "LINK_BROKER"},
	})
	a, ok := findAward(awards, ReasonCampaignAction)
	require.True(t, ok)
	assert.Equal(t, 2, a.Stars)
}

func TestCountStreak(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	day := func(offset int) time.Time {
		return time.Date(2026, 3, 10+offset, 0, 0, 0, 0, time.UTC)
	}

	assert.Equal(t, 0, countStreak(nil, now))
	// traded today and the two days before
	assert.Equal(t, 3, countStreak([]time.Time{day(0), day(-1), day(-2)}, now))
	// gap breaks the streak
	assert.Equal(t, 2, countStreak([]time.Time{day(0), day(-1), day(-3)}, now))
	// last trade yesterday keeps the streak alive
	assert.Equal(t, 1, countStreak([]time.Time{day(-1), day(-3)}, now))
	// stale history counts for nothing
	assert.Equal(t, 0, countStreak([]time.Time{day(-2), day(-3)}, now))
}
