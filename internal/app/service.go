// Package app is the request layer of the game server. It checks who is
// acting, serializes work per game and turns stored rounds into per-player
// views.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"haikuslam/internal/domain"
	"haikuslam/internal/identity"
	"haikuslam/internal/storage"
)

// DefaultSweepConcurrency bounds how many games one list request advances at once
const DefaultSweepConcurrency = 4

// Service runs player actions against the store
type Service struct {
	store     storage.Store
	directory *identity.Directory
	hub       *Hub
	settings  domain.Settings
	logger    *slog.Logger
	tracer    trace.Tracer

	SweepConcurrency int
	Now              func() time.Time
}

// NewService creates a service
func NewService(store storage.Store, directory *identity.Directory, hub *Hub, settings domain.Settings, logger *slog.Logger) *Service {
	return &Service{
		store:            store,
		directory:        directory,
		hub:              hub,
		settings:         settings,
		logger:           logger,
		tracer:           otel.Tracer("haikuslam/app"),
		SweepConcurrency: DefaultSweepConcurrency,
		Now:              time.Now,
	}
}

// NewGameRequest describes a game to create
type NewGameRequest struct {
	Topic    string
	SeedPoem string
	Contacts []identity.Contact
}

// Stats summarizes server state
type Stats struct {
	Games       int `json:"games"`
	ActiveLocks int `json:"activeLocks"`
}

// Login verifies a login token and returns the user with their entitlements
func (s *Service) Login(ctx context.Context, token string) (domain.User, domain.Entitlements, error) {
	ctx, span := s.tracer.Start(ctx, "app.Login")
	user, ent, err := s.login(ctx, token)
	endSpan(span, err)
	return user, ent, err
}

func (s *Service) login(ctx context.Context, token string) (domain.User, domain.Entitlements, error) {
	user, err := s.directory.Login(ctx, token)
	if err != nil {
		return domain.User{}, domain.Entitlements{}, err
	}
	ent, err := s.store.Entitlements(ctx, user.ID)
	if err != nil {
		return domain.User{}, domain.Entitlements{}, err
	}
	s.logger.Info("player logged in", "playerID", user.ID)
	return user, ent, nil
}

// Authenticate resolves a bearer token to a registered user
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	return s.directory.Authenticate(ctx, token)
}

// CreateGame starts a game between creator and the resolved contacts. The
// creator picks the first topic.
func (s *Service) CreateGame(ctx context.Context, creator domain.User, req NewGameRequest) (domain.View, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateGame",
		trace.WithAttributes(attribute.Int("game.invites", len(req.Contacts))))
	view, err := s.createGame(ctx, creator, req)
	if err == nil {
		span.SetAttributes(attribute.String("game.id", view.GameID))
	}
	endSpan(span, err)
	return view, err
}

func (s *Service) createGame(ctx context.Context, creator domain.User, req NewGameRequest) (domain.View, error) {
	if err := domain.IsValidPoem(req.SeedPoem, s.settings); err != nil {
		return domain.View{}, err
	}

	players := []domain.Player{{ID: creator.ID, Name: creator.Name}}
	for _, r := range s.directory.ResolveContacts(ctx, req.Contacts) {
		if r.Err != nil {
			return domain.View{}, r.Err
		}
		players = append(players, domain.Player{ID: r.PlayerID, Name: r.Name})
	}

	ids := make([]string, 0, len(players))
	for _, p := range players {
		ids = append(ids, p.ID)
	}
	if err := domain.HasValidPlayerSet(ids, s.settings); err != nil {
		return domain.View{}, err
	}

	snap := domain.NewGame(domain.NewRoundParams{
		Creator:  creator.ID,
		Topic:    strings.TrimSpace(req.Topic),
		SeedPoem: req.SeedPoem,
		Players:  players,
		Now:      s.Now(),
	}, s.settings)
	if err := s.store.CreateGame(ctx, snap); err != nil {
		return domain.View{}, err
	}

	s.logger.Info("game created", "gameID", snap.GameID, "playerID", creator.ID, "players", len(players))
	return domain.Anonymize(snap, creator.ID), nil
}

// Game returns one round as seen by playerID, advancing it first if due
func (s *Service) Game(ctx context.Context, playerID, gameID string) (domain.View, error) {
	ctx, span := s.tracer.Start(ctx, "app.Game", trace.WithAttributes(attribute.String("game.id", gameID)))
	view, err := s.game(ctx, playerID, gameID)
	endSpan(span, err)
	return view, err
}

func (s *Service) game(ctx context.Context, playerID, gameID string) (domain.View, error) {
	snap, err := s.store.Snapshot(ctx, gameID)
	if err != nil {
		return domain.View{}, err
	}
	if err := domain.IsValidPlayer(playerID, snap); err != nil {
		return domain.View{}, err
	}
	snap = s.Progress(ctx, playerID, []domain.Snapshot{snap})[0]
	return domain.Anonymize(snap, playerID), nil
}

// ListGames returns the player's games, advancing those whose stage is due
func (s *Service) ListGames(ctx context.Context, playerID string) ([]domain.View, domain.Entitlements, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListGames")
	views, ent, err := s.listGames(ctx, playerID)
	span.SetAttributes(attribute.Int("game.count", len(views)))
	endSpan(span, err)
	return views, ent, err
}

func (s *Service) listGames(ctx context.Context, playerID string) ([]domain.View, domain.Entitlements, error) {
	snaps, ent, err := s.store.ListGames(ctx, playerID)
	if err != nil {
		return nil, domain.Entitlements{}, err
	}

	snaps = s.Progress(ctx, playerID, snaps)
	views := make([]domain.View, 0, len(snaps))
	for _, snap := range snaps {
		views = append(views, domain.Anonymize(snap, playerID))
	}
	return views, ent, nil
}

// Write submits or replaces the player's poem
func (s *Service) Write(ctx context.Context, playerID, gameID, poem string) (domain.View, error) {
	return s.act(ctx, "app.Write", playerID, gameID, func(ctx context.Context, now time.Time) (*domain.Snapshot, error) {
		return s.store.ApplyWrite(ctx, gameID, playerID, poem, now)
	})
}

// Vote casts the player's vote for the poem behind ballotID
func (s *Service) Vote(ctx context.Context, playerID, gameID, ballotID string) (domain.View, error) {
	return s.act(ctx, "app.Vote", playerID, gameID, func(ctx context.Context, now time.Time) (*domain.Snapshot, error) {
		snap, err := s.store.Snapshot(ctx, gameID)
		if err != nil {
			return nil, err
		}
		if target, ok := domain.ResolveBallot(snap, ballotID); ok {
			return s.store.ApplyVote(ctx, gameID, playerID, target, now)
		}

		// An empty target fails only after the participant and stage rules.
		_, err = s.store.ApplyVote(ctx, gameID, playerID, "", now)
		if err != nil && !errors.Is(err, domain.ErrInvalidVoteTarget) {
			return nil, err
		}
		return nil, &domain.Rejection{
			Kind:     domain.KindInvalidVoteTarget,
			GameID:   gameID,
			PlayerID: playerID,
			Stage:    snap.Stage,
			Target:   ballotID,
			Detail:   "unknown ballot",
		}
	})
}

// SubmitTopic starts the next round with the player as topic picker and
// returns the new round
func (s *Service) SubmitTopic(ctx context.Context, playerID, gameID, topic, seedPoem string) (domain.View, error) {
	ctx, span := s.tracer.Start(ctx, "app.SubmitTopic", trace.WithAttributes(attribute.String("game.id", gameID)))
	var next domain.Snapshot
	err := s.hub.WithGame(gameID, func() error {
		var err error
		next, err = s.store.CloneRound(ctx, gameID, playerID, strings.TrimSpace(topic), seedPoem, s.Now())
		return err
	})
	if err != nil {
		endSpan(span, err)
		return domain.View{}, err
	}
	span.SetAttributes(attribute.String("game.next_id", next.GameID), attribute.Int("game.round", next.Round))
	endSpan(span, nil)

	s.logger.Info("round started", "gameID", next.GameID, "prevID", gameID, "playerID", playerID, "round", next.Round)
	return domain.Anonymize(next, playerID), nil
}

// Remove takes the player out of a round
func (s *Service) Remove(ctx context.Context, playerID, gameID string) (domain.View, error) {
	ctx, span := s.tracer.Start(ctx, "app.Remove", trace.WithAttributes(attribute.String("game.id", gameID)))
	var snap domain.Snapshot
	err := s.hub.WithGame(gameID, func() error {
		var err error
		snap, err = s.store.RemovePlayer(ctx, gameID, playerID, s.Now())
		return err
	})
	endSpan(span, err)
	if err != nil {
		return domain.View{}, err
	}

	s.logger.Info("player removed", "gameID", gameID, "playerID", playerID, "stage", snap.Stage)
	return domain.Anonymize(snap, playerID), nil
}

// Rename sets the display name of a round
func (s *Service) Rename(ctx context.Context, playerID, gameID, name string) (domain.View, error) {
	ctx, span := s.tracer.Start(ctx, "app.Rename", trace.WithAttributes(attribute.String("game.id", gameID)))
	var snap domain.Snapshot
	err := s.hub.WithGame(gameID, func() error {
		current, err := s.store.Snapshot(ctx, gameID)
		if err != nil {
			return err
		}
		if err := domain.IsValidPlayer(playerID, current); err != nil {
			return err
		}
		if err := s.store.RenameGame(ctx, gameID, name); err != nil {
			return err
		}
		snap, err = s.store.Snapshot(ctx, gameID)
		return err
	})
	endSpan(span, err)
	if err != nil {
		return domain.View{}, err
	}
	return domain.Anonymize(snap, playerID), nil
}

// Stats reports the number of stored rounds and tracked game locks
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	n, err := s.store.CountGames(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Games: n, ActiveLocks: s.hub.Count()}, nil
}

// act runs apply under the game lock and returns the player's view of the
// stored result
func (s *Service) act(ctx context.Context, op, playerID, gameID string, apply func(context.Context, time.Time) (*domain.Snapshot, error)) (domain.View, error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("game.id", gameID)))
	var snap domain.Snapshot
	err := s.hub.WithGame(gameID, func() error {
		advanced, err := apply(ctx, s.Now())
		if err != nil {
			return err
		}
		if advanced != nil {
			s.logger.Info("round advanced", "gameID", gameID, "playerID", playerID, "stage", advanced.Stage)
			snap = *advanced
			return nil
		}
		snap, err = s.store.Snapshot(ctx, gameID)
		return err
	})
	if err == nil {
		span.SetAttributes(attribute.String("game.stage", snap.Stage.String()))
	}
	endSpan(span, err)
	if err != nil {
		return domain.View{}, err
	}
	return domain.Anonymize(snap, playerID), nil
}

// endSpan records err on span and ends it. Rejections are expected outcomes and
// do not mark the span as failed.
func endSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		return
	}
	if r, ok := domain.AsRejection(err); ok {
		span.SetAttributes(attribute.String("rejection.kind", string(r.Kind)))
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, fmt.Sprint(err))
}
