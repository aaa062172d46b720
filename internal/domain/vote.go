package domain

// VoteResult represents the votes one player's poem received in a round
type VoteResult struct {
	PlayerID  string   `json:"playerId"`
	VoteCount int      `json:"voteCount"`
	VotedBy   []string `json:"votedBy"` // voter ids in seat order
}

// Tally is the outcome of counting a round's votes
type Tally struct {
	Results  []VoteResult `json:"results"` // seat order
	WinnerID string       `json:"winnerId,omitempty"`
	Tied     []string     `json:"tied,omitempty"` // everyone sharing the top count, winner first
}

// CountVotes tallies votes by target. The most voted poem wins; ties go to the
// earliest submitted poem, then to the earlier seat. Nobody wins a round
// without votes.
func CountVotes(s Snapshot) Tally {
	voteCounts := make(map[string]int)
	voters := make(map[string][]string)

	// walk voters in seat order so VotedBy is stable
	for _, voter := range s.Players {
		target, ok := s.Votes[voter.ID]
		if !ok || !s.HasRealPoem(target) {
			continue
		}
		voteCounts[target]++
		voters[target] = append(voters[target], voter.ID)
	}

	tally := Tally{Results: make([]VoteResult, 0, len(s.Players))}
	maxVotes := 0
	for _, p := range s.Players {
		count := voteCounts[p.ID]
		tally.Results = append(tally.Results, VoteResult{
			PlayerID:  p.ID,
			VoteCount: count,
			VotedBy:   voters[p.ID],
		})
		if count > maxVotes {
			maxVotes = count
		}
	}
	if maxVotes == 0 {
		return tally
	}

	for _, r := range tally.Results {
		if r.VoteCount != maxVotes {
			continue
		}
		if tally.WinnerID == "" || s.submittedBefore(r.PlayerID, tally.WinnerID) {
			tally.WinnerID = r.PlayerID
		}
	}

	tally.Tied = append(tally.Tied, tally.WinnerID)
	for _, r := range tally.Results {
		if r.VoteCount == maxVotes && r.PlayerID != tally.WinnerID {
			tally.Tied = append(tally.Tied, r.PlayerID)
		}
	}
	if len(tally.Tied) == 1 {
		tally.Tied = nil
	}

	return tally
}

// VotesFor returns how many votes the player's poem received
func (t Tally) VotesFor(playerID string) int {
	for _, r := range t.Results {
		if r.PlayerID == playerID {
			return r.VoteCount
		}
	}
	return 0
}

// submittedBefore reports whether a's poem came strictly before b's.
// Candidates are visited in seat order, so equal times keep the earlier seat.
func (s Snapshot) submittedBefore(a, b string) bool {
	return s.Poems[a].SubmittedAt.Before(s.Poems[b].SubmittedAt)
}
