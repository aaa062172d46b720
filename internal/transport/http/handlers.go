package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"haikuslam/internal/app"
	"haikuslam/internal/domain"
	"haikuslam/internal/identity"
	"haikuslam/internal/transport"
)

const (
	maxBodySize = 64 << 10
	qrSize      = 320
)

// Response is a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LoginRequest is the body of POST /api/v1/login
type LoginRequest struct {
	Token string `json:"token"`
}

// LoginResponse is the response for login
type LoginResponse struct {
	User         domain.User         `json:"user"`
	Entitlements domain.Entitlements `json:"entitlements"`
}

// CreateGameRequest is the body of POST /api/v1/games. Contact lists are
// comma separated.
type CreateGameRequest struct {
	Topic       string `json:"topic"`
	Haiku       string `json:"haiku"`
	FacebookIDs string `json:"facebook_ids"`
	Emails      string `json:"emails"`
	PlayerIDs   string `json:"player_ids"`
}

// GameListResponse is the response for listing games
type GameListResponse struct {
	Games        []domain.View       `json:"games"`
	Entitlements domain.Entitlements `json:"entitlements"`
}

// PoemRequest is the body of PUT /api/v1/games/:id/poem
type PoemRequest struct {
	Poem string `json:"poem"`
}

// VoteRequest is the body of PUT /api/v1/games/:id/vote
type VoteRequest struct {
	BallotID string `json:"ballotId"`
}

// TopicRequest is the body of PUT /api/v1/games/:id/topic
type TopicRequest struct {
	Topic string `json:"topic"`
	Haiku string `json:"haiku"`
}

// RenameRequest is the body of PUT /api/v1/games/:id/name
type RenameRequest struct {
	Name string `json:"name"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	Games       int `json:"games"`
	ActiveLocks int `json:"activeLocks"`
}

// handleLogin handles POST /api/v1/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		req.Token = bearerToken(r)
	}

	user, ent, err := s.service.Login(r.Context(), req.Token)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendSuccess(w, &LoginResponse{User: user, Entitlements: ent})
}

// handleCreateGame handles POST /api/v1/games
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req CreateGameRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, err := s.service.CreateGame(r.Context(), user, app.NewGameRequest{
		Topic:    req.Topic,
		SeedPoem: req.Haiku,
		Contacts: identity.ParseContacts(req.FacebookIDs, req.Emails, req.PlayerIDs),
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendStatus(w, http.StatusCreated, view)
}

// handleListGames handles GET /api/v1/games
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	games, ent, err := s.service.ListGames(r.Context(), user.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendSuccess(w, &GameListResponse{Games: games, Entitlements: ent})
}

// handleGetGame handles GET /api/v1/games/:id
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	view, err := s.service.Game(r.Context(), user.ID, ps.ByName("id"))
	s.reply(w, view, err)
}

// handleWrite handles PUT /api/v1/games/:id/poem
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req PoemRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, err := s.service.Write(r.Context(), user.ID, ps.ByName("id"), req.Poem)
	s.reply(w, view, err)
}

// handleVote handles PUT /api/v1/games/:id/vote
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req VoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.BallotID) == "" {
		s.sendError(w, http.StatusBadRequest, transport.CodeInvalidMessage, "ballotId is required")
		return
	}

	view, err := s.service.Vote(r.Context(), user.ID, ps.ByName("id"), req.BallotID)
	s.reply(w, view, err)
}

// handleTopic handles PUT /api/v1/games/:id/topic
func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req TopicRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, err := s.service.SubmitTopic(r.Context(), user.ID, ps.ByName("id"), req.Topic, req.Haiku)
	s.reply(w, view, err)
}

// handleRename handles PUT /api/v1/games/:id/name
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req RenameRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, err := s.service.Rename(r.Context(), user.ID, ps.ByName("id"), req.Name)
	s.reply(w, view, err)
}

// handleLeave handles DELETE /api/v1/games/:id/players/me
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	view, err := s.service.Remove(r.Context(), user.ID, ps.ByName("id"))
	s.reply(w, view, err)
}

// handleInviteQR handles GET /api/v1/me/invite.png. The QR code encodes a
// link carrying the caller's invite code.
func (s *Server) handleInviteQR(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	png, err := qrcode.Encode(s.inviteLink(r, user.ID), qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Error("invite qr failed", "playerID", user.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, transport.CodeInternalError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendSuccess(w, &StatsResponse{
		Games:       stats.Games,
		ActiveLocks: stats.ActiveLocks,
	})
}

// inviteLink builds the public link for an invite code
func (s *Server) inviteLink(r *http.Request, code string) string {
	base := strings.TrimRight(s.config.Server.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/invite/" + code
}

// authenticate resolves the bearer token to a registered user or writes a 401
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, err := s.service.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		s.fail(w, err)
		return domain.User{}, false
	}
	return user, true
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.sendError(w, http.StatusBadRequest, transport.CodeInvalidMessage, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) reply(w http.ResponseWriter, view domain.View, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	s.sendSuccess(w, view)
}

// fail maps err onto the error envelope
func (s *Server) fail(w http.ResponseWriter, err error) {
	f := transport.Classify(err)
	if f.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.sendError(w, f.Status, f.Code, f.Message)
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data any) {
	s.sendStatus(w, http.StatusOK, data)
}

func (s *Server) sendStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
