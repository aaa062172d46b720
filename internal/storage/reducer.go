package storage

import (
	"time"

	"haikuslam/internal/domain"
)

// Reducer computes the next state of a round for each store operation. Stores
// call it between reading and writing a round inside their atomic unit, so the
// rules are checked against the state that is actually written. Player actions
// first catch the round up to now, so a passed deadline closes the stage before
// the action is judged.
type Reducer struct {
	Settings domain.Settings
}

// Write records a poem and advances the round when it completes the stage.
func (r Reducer) Write(s domain.Snapshot, playerID, poem string, now time.Time) (domain.Snapshot, bool, error) {
	s, caught := domain.Advance(s, now, r.Settings)
	err := domain.Check(
		func() error { return domain.HasRightToWrite(playerID, s) },
		func() error { return domain.IsValidPoem(poem, r.Settings) },
	)
	if err != nil {
		return s, false, err
	}
	next, transitions := domain.Advance(s.WithPoem(playerID, poem, now), now, r.Settings)
	return next, len(caught)+len(transitions) > 0, nil
}

// Vote records a vote and closes voting when it is the last one due.
func (r Reducer) Vote(s domain.Snapshot, voterID, targetID string, now time.Time) (domain.Snapshot, bool, error) {
	s, caught := domain.Advance(s, now, r.Settings)
	if err := domain.HasRightToVote(voterID, s, targetID); err != nil {
		return s, false, err
	}
	next, transitions := domain.Advance(s.WithVote(voterID, targetID), now, r.Settings)
	return next, len(caught)+len(transitions) > 0, nil
}

// Progress advances a round whose stage is due.
func (r Reducer) Progress(s domain.Snapshot, now time.Time) (domain.Snapshot, bool) {
	next, transitions := domain.Advance(s, now, r.Settings)
	return next, len(transitions) > 0
}

// Clone links a completed round to a fresh one picked by pickerID.
func (r Reducer) Clone(s domain.Snapshot, pickerID, topic, seedPoem string, now time.Time) (prev, next domain.Snapshot, err error) {
	s, _ = domain.Advance(s, now, r.Settings)
	err = domain.Check(
		func() error { return domain.HasRightToSubmitTopic(pickerID, s) },
		func() error { return domain.IsValidPoem(seedPoem, r.Settings) },
	)
	if err != nil {
		return s, domain.Snapshot{}, err
	}
	prev, next = domain.CloneRound(s, pickerID, topic, seedPoem, now, r.Settings)
	return prev, next, nil
}

// Remove drops a player. A round that is still in play is re-evaluated since
// the departure may complete its stage.
func (r Reducer) Remove(s domain.Snapshot, playerID string, now time.Time) (domain.Snapshot, error) {
	if err := domain.IsValidPlayer(playerID, s); err != nil {
		return s, err
	}
	next, _ := s.WithoutPlayer(playerID, now, r.Settings)
	next, _ = domain.Advance(next, now, r.Settings)
	return next, nil
}
