package httpapi

import (
	"net/http"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/engine"
	"github.com/DoyleJ11/party-board-backend/internal/hub"
	"github.com/DoyleJ11/party-board-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Options struct {
	Logger *zap.Logger
	WS     ws.Config
	// History is optional; without it /history is not mounted.
	History History
}

func SetupRoutes(h *hub.Hub, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.WS.Logger == nil {
		opts.WS.Logger = log
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Post("/rooms", CreateRoom(h, log))
	r.Get("/ws/{code}", ws.Handler(h, opts.WS))
	if opts.History != nil {
		r.Get("/history", RecentGames(opts.History))
	}

	r.Route("/rooms/{code}", func(r chi.Router) {
		r.Use(loadRoom(h))
		r.Get("/", GetRoom)

		// Host display only
		r.Group(func(r chi.Router) {
			r.Use(requireHost)
			r.Delete("/", DeleteRoom(h))
			r.Post("/cpu", hostCommand(fixed(engine.CmdAddCPU)))
			r.Post("/players/{slot}/difficulty", hostCommand(setDifficulty))
			r.Put("/settings", UpdateSettings)
			r.Post("/start", hostCommand(fixed(engine.CmdStart)))
			r.Post("/ready", hostCommand(fixed(engine.CmdMinigameReady)))
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
