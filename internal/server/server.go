package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"dyfl-backend/internal/api"
	"dyfl-backend/internal/config"
	"dyfl-backend/internal/constants"
	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/middleware"
	"dyfl-backend/internal/repository"
	"dyfl-backend/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

type Server struct {
	users    *service.UserService
	friends  *service.FriendService
	players  *service.PlayerService
	registry *prometheus.Registry
	port     string
	logger   zerolog.Logger
}

func NewServer(
	cfg *config.Config,
	users *service.UserService,
	friends *service.FriendService,
	players *service.PlayerService,
	registry *prometheus.Registry,
	logger zerolog.Logger,
) *Server {
	return &Server{
		users:    users,
		friends:  friends,
		players:  players,
		registry: registry,
		port:     cfg.ServerPort,
		logger:   logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("POST /api/users", s.createUser)
	mux.HandleFunc("DELETE /api/users", s.deleteUser)
	mux.HandleFunc("GET /api/friends", s.listFriends)
	mux.HandleFunc("GET /api/friends/stats", s.friendStats)
	mux.HandleFunc("POST /api/friends", s.addFriend)
	mux.HandleFunc("DELETE /api/friends", s.removeFriends)
	mux.HandleFunc("GET /api/players/{riotId}/history", s.playerHistory)
	mux.HandleFunc("POST /api/notifications/push/register", s.registerPush)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	return middleware.RequestID(s.logger)(middleware.Recover(s.logger)(c.Handler(mux)))
}

// HTTPServer builds the listener-bound server; the caller owns its lifecycle.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	user, err := s.users.RegisterPushToken(ctx, req.DeviceID, req.PushToken)
	if err != nil {
		s.fail(w, r, err, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, toUser(user))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	deviceID := middleware.DeviceID(r)
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required (X-Device-ID header or query)")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
	defer cancel()

	if err := s.users.Delete(ctx, deviceID); err != nil {
		s.fail(w, r, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFriends(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r, "")
	if !ok {
		return
	}
	views, err := s.friends.List(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, err, "failed to list friends")
		return
	}

	out := make([]friendResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toFriend(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) friendStats(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r, "")
	if !ok {
		return
	}
	stats, err := s.friends.Stats(r.Context(), user.ID)
	if err != nil {
		s.fail(w, r, err, "failed to compute friend stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) addFriend(w http.ResponseWriter, r *http.Request) {
	var req addFriendRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.RiotID == "" {
		writeError(w, http.StatusBadRequest, "riotId is required")
		return
	}
	user, ok := s.user(w, r, req.DeviceID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	view, err := s.friends.Add(ctx, user.ID, req.RiotID)
	if err != nil {
		s.fail(w, r, err, "failed to add friend")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "friend added: " + req.RiotID,
		"friend":  toFriend(*view),
	})
}

func (s *Server) removeFriends(w http.ResponseWriter, r *http.Request) {
	var req removeFriendsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.RiotIDs) == 0 {
		writeError(w, http.StatusBadRequest, "riotIds must be a non-empty array")
		return
	}
	user, ok := s.user(w, r, req.DeviceID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	batch := s.friends.RemoveBatch(ctx, user.ID, req.RiotIDs, req.Force)
	resp := removeFriendsResponse{
		Total:        len(req.RiotIDs),
		SuccessCount: batch.Successful,
		FailedCount:  batch.Failed,
		Results:      make([]removalResult, 0, len(batch.Results)),
	}
	for _, res := range batch.Results {
		item := removalResult{RiotID: res.DisplayID, Status: "success"}
		if res.Err != nil {
			item.Status = "error"
			item.Message = res.Err.Error()
		}
		resp.Results = append(resp.Results, item)
	}

	status := http.StatusOK
	if batch.Partial {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

func (s *Server) playerHistory(w http.ResponseWriter, r *http.Request) {
	riotID := r.PathValue("riotId")
	if domain.IsInvalidIdentifierFormat(riotID) {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidIdentifierFormat.Error())
		return
	}

	history, err := s.players.History(r.Context(), riotID)
	if err != nil {
		s.fail(w, r, err, "failed to load rank history")
		return
	}
	out := make([]historyResponse, 0, len(history))
	for _, h := range history {
		out = append(out, toHistory(h))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) registerPush(w http.ResponseWriter, r *http.Request) {
	var req pushRegisterRequest
	if !s.decode(w, r, &req) {
		return
	}
	deviceID := r.Header.Get(middleware.DeviceIDHeader)
	if deviceID == "" || req.Token == "" {
		writeError(w, http.StatusBadRequest, "X-Device-ID header and token are required")
		return
	}

	user, err := s.users.RegisterPushToken(r.Context(), deviceID, req.Token)
	if err != nil {
		s.fail(w, r, err, "failed to register push token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": toUser(user)})
}

// user resolves the caller, creating it on first contact. bodyDeviceID takes
// precedence over the header and query parameter.
func (s *Server) user(w http.ResponseWriter, r *http.Request, bodyDeviceID string) (*domain.User, bool) {
	deviceID := bodyDeviceID
	if deviceID == "" {
		deviceID = middleware.DeviceID(r)
	}
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "deviceId is required (body, X-Device-ID header or query)")
		return nil, false
	}

	user, err := s.users.GetOrCreate(r.Context(), deviceID)
	if err != nil {
		s.fail(w, r, err, "failed to resolve user")
		return nil, false
	}
	return user, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg(msg)
		writeError(w, status, msg)
		return
	}
	logger.Debug().Err(err).Msg(msg)
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifierFormat),
		errors.Is(err, service.ErrAlreadyFriend),
		errors.Is(err, service.ErrMissingDeviceID),
		errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrFriendNotFound),
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, api.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInvalidAccountID):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
