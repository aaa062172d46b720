package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Ballot is a poem as offered for voting, without its author
type Ballot struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Mine bool   `json:"mine"`
}

// PlayerView is one player as seen by the viewer. Poem, ballot and vote are
// only filled in for the viewer's own entry until the round is revealed.
type PlayerView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Me          bool   `json:"me"`
	Score       int    `json:"score"`
	TopicPicker bool   `json:"topicPicker"`
	HasWritten  bool   `json:"hasWritten"`
	HasVoted    bool   `json:"hasVoted"`

	Poem       string `json:"poem,omitempty"`
	NoPoem     bool   `json:"noPoem,omitempty"`
	BallotID   string `json:"ballotId,omitempty"`
	Vote       string `json:"vote,omitempty"` // ballot id voted for
	RoundVotes int    `json:"roundVotes,omitempty"`
	Winner     bool   `json:"winner,omitempty"`
}

// View is a snapshot prepared for one player
type View struct {
	GameID        string       `json:"gameId"`
	Name          string       `json:"name,omitempty"`
	Round         int          `json:"round"`
	PrevID        string       `json:"prevId,omitempty"`
	NextID        string       `json:"nextId,omitempty"`
	Stage         Stage        `json:"stage"`
	Topic         string       `json:"topic"`
	TopicPickerID string       `json:"topicPickerId"`
	Deadline      time.Time    `json:"deadline"`
	Players       []PlayerView `json:"players"`
	Ballots       []Ballot     `json:"ballots"`
	ActionItem    bool         `json:"actionItem"`
}

// Anonymize builds the viewer's view of a snapshot. Before the round is revealed
// no poem or vote is attributed to anyone but the viewer.
func Anonymize(s Snapshot, viewer string) View {
	revealed := s.Stage.Revealed()

	var tally Tally
	if revealed {
		tally = CountVotes(s)
	}

	v := View{
		GameID:        s.GameID,
		Name:          s.Name,
		Round:         s.Round,
		PrevID:        s.PrevID,
		NextID:        s.NextID,
		Stage:         s.Stage,
		Topic:         s.Topic,
		TopicPickerID: s.TopicPickerID,
		Deadline:      s.Deadline,
		Players:       make([]PlayerView, 0, len(s.Players)),
		Ballots:       make([]Ballot, 0, len(s.Poems)),
		ActionItem:    actionItem(s, viewer),
	}

	for _, p := range s.Players {
		me := p.ID == viewer
		pv := PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			Me:          me,
			Score:       p.Score,
			TopicPicker: p.ID == s.TopicPickerID,
			HasWritten:  s.HasWritten(p.ID),
			HasVoted:    s.HasVoted(p.ID),
		}

		if me || revealed {
			if poem, ok := s.Poems[p.ID]; ok {
				if poem.IsReal() {
					pv.Poem = poem.Text
					pv.BallotID = BallotID(s, p.ID)
				} else {
					pv.NoPoem = true
				}
			}
			if target, ok := s.Votes[p.ID]; ok {
				pv.Vote = BallotID(s, target)
			}
		}
		if revealed {
			pv.RoundVotes = tally.VotesFor(p.ID)
			pv.Winner = p.ID == s.WinnerID
		}

		v.Players = append(v.Players, pv)

		// other poems stay private while players are still writing
		if s.HasRealPoem(p.ID) && (me || s.Stage != StageWrite) {
			v.Ballots = append(v.Ballots, Ballot{
				ID:   BallotID(s, p.ID),
				Text: s.Poems[p.ID].Text,
				Mine: me,
			})
		}
	}

	sort.Slice(v.Ballots, func(i, j int) bool {
		return v.Ballots[i].ID < v.Ballots[j].ID
	})

	return v
}

// BallotID returns the opaque id under which a player's poem is offered for
// voting. It is derived from the round's private salt so it cannot be linked to
// the author from anything in the view.
func BallotID(s Snapshot, playerID string) string {
	ns, err := uuid.Parse(s.Salt)
	if err != nil {
		ns = uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.GameID))
	}
	return uuid.NewSHA1(ns, []byte(playerID)).String()
}

// ResolveBallot maps a ballot id back to the author of the poem
func ResolveBallot(s Snapshot, ballotID string) (string, bool) {
	for _, p := range s.Players {
		if s.HasRealPoem(p.ID) && BallotID(s, p.ID) == ballotID {
			return p.ID, true
		}
	}
	return "", false
}

// actionItem reports whether the viewer currently owes the round an action
func actionItem(s Snapshot, viewer string) bool {
	if !s.IsPlaying(viewer) {
		return false
	}
	switch s.Stage {
	case StageWrite:
		return !s.HasWritten(viewer)
	case StageVote:
		return s.CanVote(viewer) && !s.HasVoted(viewer)
	case StageResults, StageWinner:
		return s.TopicPickerID == viewer && s.NextID == ""
	}
	return false
}
