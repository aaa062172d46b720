package domain

import "fmt"

// Check evaluates rules in order and returns the first rejection
func Check(rules ...func() error) error {
	for _, rule := range rules {
		if err := rule(); err != nil {
			return err
		}
	}
	return nil
}

// IsValidPlayer requires the actor to be in the round
func IsValidPlayer(actor string, s Snapshot) error {
	if !s.IsPlaying(actor) {
		return &Rejection{
			Kind:     KindNotAParticipant,
			GameID:   s.GameID,
			PlayerID: actor,
			Detail:   fmt.Sprintf("player %s is not in this game", actor),
		}
	}
	return nil
}

// IsNotAbandoned requires the round to still be playable
func IsNotAbandoned(s Snapshot) error {
	if s.Stage == StageAbandoned {
		return &Rejection{
			Kind:   KindGameAbandoned,
			GameID: s.GameID,
			Stage:  s.Stage,
			Detail: "abandoned game, not enough players",
		}
	}
	return nil
}

// HasRightToWrite requires a playing participant during the write stage
func HasRightToWrite(actor string, s Snapshot) error {
	return Check(
		func() error { return IsValidPlayer(actor, s) },
		func() error { return IsNotAbandoned(s) },
		func() error { return requireStage(actor, s, "write a poem", StageWrite) },
	)
}

// HasRightToVote requires a playing participant during the vote stage, voting
// for someone else's real poem
func HasRightToVote(actor string, s Snapshot, target string) error {
	return Check(
		func() error { return IsValidPlayer(actor, s) },
		func() error { return IsNotAbandoned(s) },
		func() error { return requireStage(actor, s, "vote", StageVote) },
		func() error {
			if !s.HasRealPoem(target) {
				return &Rejection{
					Kind:     KindInvalidVoteTarget,
					GameID:   s.GameID,
					PlayerID: actor,
					Stage:    s.Stage,
					Target:   target,
					Detail:   "invalid vote, player has no poem",
				}
			}
			if target == actor {
				return &Rejection{
					Kind:     KindInvalidVoteTarget,
					GameID:   s.GameID,
					PlayerID: actor,
					Stage:    s.Stage,
					Target:   target,
					Detail:   "cannot vote for your own poem",
				}
			}
			return nil
		},
	)
}

// HasRightToSubmitTopic requires the topic picker of a completed round
func HasRightToSubmitTopic(actor string, s Snapshot) error {
	return Check(
		func() error { return IsValidPlayer(actor, s) },
		func() error { return IsNotAbandoned(s) },
		func() error {
			if s.TopicPickerID != actor {
				return &Rejection{
					Kind:     KindNotTopicPicker,
					GameID:   s.GameID,
					PlayerID: actor,
					Stage:    s.Stage,
					Detail:   fmt.Sprintf("player %s is not the topic picker", actor),
				}
			}
			return nil
		},
		func() error { return requireStage(actor, s, "submit a topic", StageResults, StageWinner) },
		func() error {
			// the next round already exists
			if s.NextID != "" {
				return &Rejection{
					Kind:     KindWrongStage,
					GameID:   s.GameID,
					PlayerID: actor,
					Stage:    s.Stage,
					Detail:   "next round already started",
				}
			}
			return nil
		},
	)
}

// HasValidPlayerSet requires enough players and no duplicates
func HasValidPlayerSet(ids []string, settings Settings) error {
	if len(ids) < settings.MinPlayers {
		return &Rejection{
			Kind:   KindTooFewPlayers,
			Detail: fmt.Sprintf("not enough players: %d of %d", len(ids), settings.MinPlayers),
		}
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return &Rejection{
				Kind:     KindDuplicatePlayers,
				PlayerID: id,
				Detail:   fmt.Sprintf("player %s invited more than once", id),
			}
		}
		seen[id] = true
	}
	return nil
}

// IsValidPoem requires the normalized poem to reach the minimum length
func IsValidPoem(text string, settings Settings) error {
	if n := PoemLength(text); n < settings.MinPoemLength {
		return &Rejection{
			Kind:   KindPoemTooShort,
			Detail: fmt.Sprintf("haiku is too short: %d of %d characters", n, settings.MinPoemLength),
		}
	}
	return nil
}

func requireStage(actor string, s Snapshot, action string, allowed ...Stage) error {
	for _, stage := range allowed {
		if s.Stage == stage {
			return nil
		}
	}
	return &Rejection{
		Kind:     KindWrongStage,
		GameID:   s.GameID,
		PlayerID: actor,
		Stage:    s.Stage,
		Detail:   fmt.Sprintf("cannot %s in stage %s", action, s.Stage),
	}
}
