package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/lyp1noff/champion-arena-sub000/handlers"
	"github.com/lyp1noff/champion-arena-sub000/middleware"
)

// SetupRoutes собирает весь HTTP-интерфейс: публичное чтение сеток,
// аутентификацию станций и защищённые маршруты мутаций/синхронизации.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	bracketHandler *handlers.BracketHandler,
	matchHandler *handlers.MatchHandler,
	syncHandler *handlers.SyncHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	router.Post("/stations", authHandler.RegisterStation)
	router.Post("/stations/login", authHandler.Login)

	router.Route("/brackets", func(r chi.Router) {
		// Публичное чтение: табло, зрители.
		r.Get("/{bracketID}", bracketHandler.GetBracket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate([]byte(jwtSecret)))
			r.Post("/{bracketID}/regenerate", bracketHandler.RegenerateBracket)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetMatch)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate([]byte(jwtSecret)))
			r.Post("/{matchID}/start", matchHandler.StartMatch)
			r.Patch("/{matchID}/scores", matchHandler.UpdateMatchScores)
			r.Post("/{matchID}/finish", matchHandler.FinishMatch)
			r.Patch("/{matchID}/status", matchHandler.UpdateMatchStatus)
		})
	})

	router.Route("/sync", func(r chi.Router) {
		r.Use(middleware.Authenticate([]byte(jwtSecret)))
		r.Post("/{edgeID}/events", syncHandler.ApplyCommands)
		r.Get("/{edgeID}/status", syncHandler.GetStatus)
	})

	router.Get("/ws/brackets/{bracketID}", webSocketHandler.ServeWs)
}
