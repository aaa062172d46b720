package domain

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the state of one round of a game at one point in time.
// It is handled as a value: every change produces a new Snapshot via Clone.
type Snapshot struct {
	GameID        string            `json:"gameId"`
	Name          string            `json:"name,omitempty"`
	Round         int               `json:"round"`
	PrevID        string            `json:"prevId,omitempty"`
	NextID        string            `json:"nextId,omitempty"`
	Stage         Stage             `json:"stage"`
	Players       []Player          `json:"players"` // seat order
	TopicPickerID string            `json:"topicPickerId"`
	Topic         string            `json:"topic"`
	SeedPoem      string            `json:"seedPoem"`
	Poems         map[string]Poem   `json:"poems"`
	Votes         map[string]string `json:"votes"` // voter -> target
	WinnerID      string            `json:"winnerId,omitempty"`
	Salt          string            `json:"-"`
	Deadline      time.Time         `json:"deadline"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// NewRoundParams describes the first round of a new game
type NewRoundParams struct {
	Creator  string
	Topic    string
	SeedPoem string
	Players  []Player // seat order, creator included
	Now      time.Time
}

// NewGame creates the first round of a game. The creator picks the topic and
// their seed poem is entered as their own poem.
func NewGame(p NewRoundParams, settings Settings) Snapshot {
	players := make([]Player, len(p.Players))
	copy(players, p.Players)
	for i := range players {
		players[i].Score = 0
	}

	seed := NormalizePoem(p.SeedPoem)
	return Snapshot{
		GameID:        uuid.NewString(),
		Round:         1,
		Stage:         StageWrite,
		Players:       players,
		TopicPickerID: p.Creator,
		Topic:         p.Topic,
		SeedPoem:      seed,
		Poems:         map[string]Poem{p.Creator: {Text: seed, SubmittedAt: p.Now}},
		Votes:         make(map[string]string),
		Salt:          uuid.NewString(),
		Deadline:      p.Now.Add(settings.WriteWindow),
		CreatedAt:     p.Now,
	}
}

// CloneRound spawns the next round from a completed one. The surviving players
// carry over with picker as the new topic picker. The returned previous round has
// NextID set to the new round's id.
func CloneRound(prev Snapshot, picker, topic, seedPoem string, now time.Time, settings Settings) (Snapshot, Snapshot) {
	players := make([]Player, len(prev.Players))
	copy(players, prev.Players)
	if prev.Stage == StageWinner {
		// a winner ends the match, the next round starts from zero
		for i := range players {
			players[i].Score = 0
		}
	}

	seed := NormalizePoem(seedPoem)
	next := Snapshot{
		GameID:        uuid.NewString(),
		Name:          prev.Name,
		Round:         prev.Round + 1,
		PrevID:        prev.GameID,
		Stage:         StageWrite,
		Players:       players,
		TopicPickerID: picker,
		Topic:         topic,
		SeedPoem:      seed,
		Poems:         map[string]Poem{picker: {Text: seed, SubmittedAt: now}},
		Votes:         make(map[string]string),
		Salt:          uuid.NewString(),
		Deadline:      now.Add(settings.WriteWindow),
		CreatedAt:     now,
	}

	linked := prev.Clone()
	linked.NextID = next.GameID
	return linked, next
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Players = make([]Player, len(s.Players))
	copy(c.Players, s.Players)
	c.Poems = make(map[string]Poem, len(s.Poems))
	for id, p := range s.Poems {
		c.Poems[id] = p
	}
	c.Votes = make(map[string]string, len(s.Votes))
	for voter, target := range s.Votes {
		c.Votes[voter] = target
	}
	return c
}

// IsPlaying returns true if the given player is in this round
func (s Snapshot) IsPlaying(playerID string) bool {
	return s.seat(playerID) >= 0
}

// GetPlayer returns a player by ID
func (s Snapshot) GetPlayer(playerID string) (Player, bool) {
	if i := s.seat(playerID); i >= 0 {
		return s.Players[i], true
	}
	return Player{}, false
}

// PlayerIDs returns the player ids in seat order
func (s Snapshot) PlayerIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

// HasWritten returns true if the player has a poem entry, real or NoPoem
func (s Snapshot) HasWritten(playerID string) bool {
	_, ok := s.Poems[playerID]
	return ok
}

// HasRealPoem returns true if the player submitted an actual poem
func (s Snapshot) HasRealPoem(playerID string) bool {
	p, ok := s.Poems[playerID]
	return ok && p.IsReal() && s.IsPlaying(playerID)
}

// HasVoted returns true if the player has cast a vote this round
func (s Snapshot) HasVoted(playerID string) bool {
	_, ok := s.Votes[playerID]
	return ok
}

// CanVote returns true if some other player's poem is available to vote for
func (s Snapshot) CanVote(playerID string) bool {
	for _, p := range s.Players {
		if p.ID != playerID && s.HasRealPoem(p.ID) {
			return true
		}
	}
	return false
}

// AllWritten returns true if every player has a poem entry
func (s Snapshot) AllWritten() bool {
	for _, p := range s.Players {
		if !s.HasWritten(p.ID) {
			return false
		}
	}
	return true
}

// AllVoted returns true if every player who has something to vote for has voted
func (s Snapshot) AllVoted() bool {
	for _, p := range s.Players {
		if s.CanVote(p.ID) && !s.HasVoted(p.ID) {
			return false
		}
	}
	return true
}

// Expired returns true once the stage deadline has passed
func (s Snapshot) Expired(now time.Time) bool {
	return !s.Deadline.IsZero() && !now.Before(s.Deadline)
}

func (s Snapshot) seat(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}
