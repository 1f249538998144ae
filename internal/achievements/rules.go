package achievements

// Reason codes for star events. The (user, reason, pen/season) tuple
// is the award's idempotency key, so codes are stable identifiers.
const (
	ReasonFirstRoomJoin       = "FIRST_ROOM_JOIN"
	ReasonRoomFirstPlace      = "ROOM_FIRST_PLACE"
	ReasonThreeWinsStreak     = "THREE_CONSECUTIVE_WINS"
	ReasonRoomsPlayed10       = "ROOMS_PLAYED_10"
	ReasonRoomsPlayed50       = "ROOMS_PLAYED_50"
	ReasonRoomsPlayed100      = "ROOMS_PLAYED_100"
	ReasonSeasonTopPercentile = "SEASON_TOP_PERCENTILE"
	ReasonActivityStreak      = "ACTIVITY_STREAK_7D"
	ReasonCampaignAction      = "CAMPAIGN_ACTION"
)

// MemberFacts is the evaluation snapshot for one member at settlement
// time. The room being settled is already counted in RoomsPlayed and,
// when Rank is 1, in ConsecutiveWins.
type MemberFacts struct {
	UserID             string
	BullPenID          string
	SeasonID           *string
	Rank               int
	RoomsPlayed        int
	ConsecutiveWins    int
	SeasonAvgPct       float64 // average finishing percentile this season, lower is better
	ActivityStreakDays int
	CampaignActions    []string
}

// Award is one rule match. Scope pointers carry over to the star
// event so repeatable awards stay distinct per room or season.
type Award struct {
	ReasonCode string
	Stars      int
	BullPenID  *string
	SeasonID   *string
}

// EvaluateRules returns every award the facts justify. Idempotency is
// not this function's concern: the store drops duplicates on insert.
func EvaluateRules(f MemberFacts) []Award {
	var awards []Award
	pen := f.BullPenID

	if f.RoomsPlayed == 1 {
		awards = append(awards, Award{ReasonCode: ReasonFirstRoomJoin, Stars: 1})
	}
	if f.Rank == 1 {
		awards = append(awards, Award{ReasonCode: ReasonRoomFirstPlace, Stars: 3, BullPenID: &pen})
	}
	if f.ConsecutiveWins >= 3 {
		awards = append(awards, Award{ReasonCode: ReasonThreeWinsStreak, Stars: 5, BullPenID: &pen})
	}
	switch {
	case f.RoomsPlayed >= 100:
		awards = append(awards, Award{ReasonCode: ReasonRoomsPlayed100, Stars: 5})
	case f.RoomsPlayed >= 50:
		awards = append(awards, Award{ReasonCode: ReasonRoomsPlayed50, Stars: 3})
	case f.RoomsPlayed >= 10:
		awards = append(awards, Award{ReasonCode: ReasonRoomsPlayed10, Stars: 2})
	}
	if f.SeasonID != nil && f.SeasonAvgPct > 0 && f.SeasonAvgPct <= 10 {
		awards = append(awards, Award{ReasonCode: ReasonSeasonTopPercentile, Stars: 4, SeasonID: f.SeasonID})
	}
	if f.ActivityStreakDays >= 7 {
		awards = append(awards, Award{ReasonCode: ReasonActivityStreak, Stars: 2, BullPenID: &pen})
	}
	// one aggregate award per settlement so the idempotency tuple
	// stays unique within the room
	if n := len(f.CampaignActions); n > 0 {
		awards = append(awards, Award{ReasonCode: ReasonCampaignAction, Stars: n, BullPenID: &pen})
	}
	return awards
}
