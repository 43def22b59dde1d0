package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/DoyleJ11/party-board-backend/internal/engine"
	"github.com/DoyleJ11/party-board-backend/internal/history"
	"github.com/DoyleJ11/party-board-backend/internal/hub"
	"github.com/DoyleJ11/party-board-backend/internal/minigame"
	"github.com/DoyleJ11/party-board-backend/internal/replica"
	"github.com/DoyleJ11/party-board-backend/internal/session"
	"github.com/DoyleJ11/party-board-backend/pkg/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const HostTokenHeader = "X-Host-Token"

type ctxKey struct{}

// History is the read side of the game archive.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

// statusFor maps engine and session errors onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrWrongPhase),
		errors.Is(err, engine.ErrSessionFull),
		errors.Is(err, engine.ErrNoPlayers),
		errors.Is(err, engine.ErrGameAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidSetting),
		errors.Is(err, engine.ErrNotSimulated),
		errors.Is(err, engine.ErrUnknownPlayer):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func CreateRoom(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.Create(r.Context())
		if err != nil {
			log.Error("create room", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "failed to create room")
			return
		}
		writeJSON(w, http.StatusCreated, types.CreateRoomResponse{Code: s.Code(), HostToken: s.HostToken()})
	}
}

// loadRoom resolves {code} and stores the session on the request context.
func loadRoom(h *hub.Hub) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := h.Get(r.Context(), chi.URLParam(r, "code"))
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "directory unavailable")
				return
			}
			if s == nil {
				writeError(w, http.StatusNotFound, "room not found")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
		})
	}
}

func roomFrom(r *http.Request) *session.Session {
	return r.Context().Value(ctxKey{}).(*session.Session)
}

// requireHost rejects requests that do not carry the room's host token.
func requireHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HostTokenHeader) != roomFrom(r).HostToken() {
			writeError(w, http.StatusForbidden, "host token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetRoom(w http.ResponseWriter, r *http.Request) {
	writeView(w, r, roomFrom(r))
}

func writeView(w http.ResponseWriter, r *http.Request, s *session.Session) {
	v, err := s.View(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, replica.HostView(v.State, v.Version, v.Code, v.Links))
}

func DeleteRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.Remove(r.Context(), roomFrom(r).Code()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// hostCommand builds a handler that runs one engine command and answers
// with the resulting host view.
func hostCommand(build func(r *http.Request) (engine.Command, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := build(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s := roomFrom(r)
		if err := s.Do(r.Context(), cmd); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeView(w, r, s)
	}
}

func fixed(t engine.CommandType) func(*http.Request) (engine.Command, error) {
	return func(*http.Request) (engine.Command, error) {
		return engine.Command{Type: t}, nil
	}
}

type difficultyRequest struct {
	Difficulty string `json:"difficulty"`
}

// setDifficulty takes an optional body; without one the difficulty cycles.
func setDifficulty(r *http.Request) (engine.Command, error) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil {
		return engine.Command{}, errors.New("bad slot")
	}
	var body difficultyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return engine.Command{}, errors.New("bad json")
		}
	}
	return engine.Command{Type: engine.CmdSetDifficulty, Slot: slot, Difficulty: minigame.Difficulty(body.Difficulty)}, nil
}

type settingsRequest struct {
	RoundLimit *int    `json:"roundLimit"`
	Mode       *string `json:"mode"`
}

// UpdateSettings applies round limit and mode in one request.
func UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	s := roomFrom(r)
	if body.RoundLimit != nil {
		if err := s.Do(r.Context(), engine.Command{Type: engine.CmdSetRoundLimit, RoundLimit: *body.RoundLimit}); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}
	if body.Mode != nil {
		if err := s.Do(r.Context(), engine.Command{Type: engine.CmdSetMode, Mode: engine.GameMode(*body.Mode)}); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}
	writeView(w, r, s)
}

func RecentGames(hist History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 1 || n > 100 {
				writeError(w, http.StatusBadRequest, "limit must be 1..100")
				return
			}
			limit = n
		}
		records, err := hist.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history unavailable")
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
