package domain

// Stage represents where a round is in its lifecycle
type Stage string

const (
	StageWrite     Stage = "Write"     // Players writing poems on the topic
	StageVote      Stage = "Vote"      // Everyone votes for a poem other than their own
	StageResults   Stage = "Results"   // Round complete, votes revealed
	StageWinner    Stage = "Winner"    // Round complete and someone reached the winning score
	StageAbandoned Stage = "Abandoned" // Not enough players left, terminal for the round
)

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// IsValid reports whether s is a known stage
func (s Stage) IsValid() bool {
	switch s {
	case StageWrite, StageVote, StageResults, StageWinner, StageAbandoned:
		return true
	}
	return false
}

// RoundOver returns true if the round has concluded and a new topic may be submitted
func (s Stage) RoundOver() bool {
	return s == StageResults || s == StageWinner
}

// Revealed returns true if authorship is visible to every player at this stage
func (s Stage) Revealed() bool {
	return s == StageResults || s == StageWinner || s == StageAbandoned
}

// CanTransitionTo checks if a transition from current stage to target stage is valid.
// Results and Winner have no successor within the same round: the next round is a
// new game.
func (s Stage) CanTransitionTo(target Stage) bool {
	if target == StageAbandoned {
		return s != StageAbandoned
	}

	validTransitions := map[Stage][]Stage{
		StageWrite: {StageVote},
		StageVote:  {StageResults, StageWinner},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, stage := range allowed {
		if stage == target {
			return true
		}
	}
	return false
}
