package domain

import "time"

// Due reports whether the round should advance at now and why. It only looks at
// the stage, who has written or voted, and the deadline.
func Due(s Snapshot, now time.Time) (Reason, bool) {
	switch s.Stage {
	case StageWrite:
		if s.AllWritten() {
			return ReasonAllWritten, true
		}
	case StageVote:
		if s.AllVoted() {
			return ReasonAllVoted, true
		}
	default:
		return "", false
	}

	if s.Expired(now) {
		return ReasonDeadline, true
	}
	return "", false
}

// Step performs at most one stage transition. It returns the input unchanged and
// a nil transition when nothing is due.
func Step(s Snapshot, now time.Time, settings Settings) (Snapshot, *Transition) {
	reason, ok := Due(s, now)
	if !ok {
		return s, nil
	}

	next := s.Clone()
	switch s.Stage {
	case StageWrite:
		for _, p := range next.Players {
			if !next.HasWritten(p.ID) {
				next.Poems[p.ID] = NoPoem
			}
		}
		next.Stage = StageVote
		next.Deadline = now.Add(settings.VoteWindow)
	case StageVote:
		closeVoting(&next, now, settings)
	}

	t := NewTransition(s.GameID, s.Stage, next.Stage, reason, now)
	return next, &t
}

// Advance applies Step until nothing more is due. A round moves at most from
// Write through Vote to completion in one call.
func Advance(s Snapshot, now time.Time, settings Settings) (Snapshot, []Transition) {
	var transitions []Transition
	for {
		next, t := Step(s, now, settings)
		if t == nil {
			return s, transitions
		}
		transitions = append(transitions, *t)
		s = next
	}
}

// closeVoting tallies the votes, credits scores and hands the topic to the winner
func closeVoting(s *Snapshot, now time.Time, settings Settings) {
	tally := CountVotes(*s)

	reachedGoal := false
	for i := range s.Players {
		s.Players[i].Score += tally.VotesFor(s.Players[i].ID)
		if settings.WinningScore > 0 && s.Players[i].Score >= settings.WinningScore {
			reachedGoal = true
		}
	}

	s.WinnerID = tally.WinnerID
	if tally.WinnerID != "" {
		s.TopicPickerID = tally.WinnerID
	}

	s.Stage = StageResults
	if reachedGoal {
		s.Stage = StageWinner
	}
	s.Deadline = now
}

// WithPoem records a poem for a player. Rewriting keeps the first submission
// time so edits do not lose tie-breaks.
func (s Snapshot) WithPoem(playerID, text string, now time.Time) Snapshot {
	next := s.Clone()
	submitted := now
	if prev, ok := s.Poems[playerID]; ok && prev.IsReal() {
		submitted = prev.SubmittedAt
	}
	next.Poems[playerID] = Poem{Text: NormalizePoem(text), SubmittedAt: submitted}
	return next
}

// WithVote records a vote, replacing any earlier vote by the same player
func (s Snapshot) WithVote(voterID, targetID string) Snapshot {
	next := s.Clone()
	next.Votes[voterID] = targetID
	return next
}

// WithoutPlayer removes a player along with their poem and every vote cast by or
// for them. The topic picker role passes to the next seat. A round left with
// fewer than MinPlayers is abandoned.
func (s Snapshot) WithoutPlayer(playerID string, now time.Time, settings Settings) (Snapshot, *Transition) {
	seat := s.seat(playerID)
	if seat < 0 {
		return s, nil
	}

	next := s.Clone()
	next.Players = append(next.Players[:seat], next.Players[seat+1:]...)
	delete(next.Poems, playerID)
	delete(next.Votes, playerID)
	for voter, target := range next.Votes {
		if target == playerID {
			delete(next.Votes, voter)
		}
	}

	if next.TopicPickerID == playerID && len(next.Players) > 0 {
		next.TopicPickerID = next.Players[seat%len(next.Players)].ID
	}
	if next.WinnerID == playerID {
		next.WinnerID = ""
	}

	if s.Stage != StageAbandoned && len(next.Players) < settings.MinPlayers {
		next.Stage = StageAbandoned
		t := NewTransition(s.GameID, s.Stage, StageAbandoned, ReasonTooFewPlayers, now)
		return next, &t
	}
	return next, nil
}

// Abandon marks the round abandoned. It is a no-op on an abandoned round.
func (s Snapshot) Abandon(now time.Time) (Snapshot, *Transition) {
	if s.Stage == StageAbandoned {
		return s, nil
	}
	next := s.Clone()
	next.Stage = StageAbandoned
	t := NewTransition(s.GameID, s.Stage, StageAbandoned, ReasonAbandoned, now)
	return next, &t
}
