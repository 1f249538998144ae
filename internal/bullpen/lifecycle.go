package bullpen

import (
	"errors"

	"bullpen/internal/types"
)

var (
	ErrInvalidStateTransition = errors.New(types.CodeInvalidStateTransition)
	ErrNotFound               = errors.New("BULL_PEN_NOT_FOUND")
	ErrNotHost                = errors.New("NOT_HOST")
	ErrNotEditable            = errors.New("ROOM_NOT_EDITABLE")
	ErrRoomNotJoinable        = errors.New("ROOM_NOT_JOINABLE")
	ErrRoomFull               = errors.New(types.CodeRoomFull)
	ErrAlreadyMember          = errors.New("ALREADY_MEMBER")
	ErrMemberNotFound         = errors.New("MEMBER_NOT_FOUND")
	ErrMemberNotPending       = errors.New("MEMBER_NOT_PENDING")
	ErrHostCannotLeave        = errors.New(types.CodeHostCannotLeave)
)

var stateOrder = map[types.RoomState]int{
	types.RoomStateDraft:     0,
	types.RoomStateScheduled: 1,
	types.RoomStateActive:    2,
	types.RoomStateCompleted: 3,
	types.RoomStateArchived:  4,
}

// IsValidTransition allows exactly one step forward in the linear
// lifecycle. completed -> archived is already one step, so no special
// case is needed beyond rejecting everything else.
func IsValidTransition(from, to types.RoomState) bool {
	fromIdx, ok := stateOrder[from]
	if !ok {
		return false
	}
	toIdx, ok := stateOrder[to]
	if !ok {
		return false
	}
	return toIdx == fromIdx+1
}

// Tradable reports whether orders are accepted in the given state.
func Tradable(state types.RoomState) bool {
	switch state {
	case types.RoomStateDraft, types.RoomStateScheduled, types.RoomStateActive:
		return true
	}
	return false
}

// Editable reports whether economic parameters may still change.
func Editable(state types.RoomState) bool {
	return state == types.RoomStateDraft || state == types.RoomStateScheduled
}

// Joinable reports whether new players may buy in.
func Joinable(state types.RoomState) bool {
	return state == types.RoomStateScheduled || state == types.RoomStateActive
}
