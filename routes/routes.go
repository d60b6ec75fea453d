package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"

	"github.com/solarchallenge/draw-server/handlers"
	"github.com/solarchallenge/draw-server/middleware"
)

// SetupRoutes wires all HTTP endpoints. Reads are public; everything that
// mutates the draw requires the race official's token.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	schoolHandler *handlers.SchoolHandler,
	eventHandler *handlers.EventHandler,
	drawHandler *handlers.DrawHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/login", authHandler.Login)

	router.Route("/schools", func(r chi.Router) {
		r.Get("/", schoolHandler.List)
		r.Get("/{schoolID}", schoolHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("official"))

			r.Post("/", schoolHandler.Create)
			r.Put("/{schoolID}", schoolHandler.Rename)
			r.Delete("/{schoolID}", schoolHandler.Delete)
		})
	})

	router.Route("/events", func(r chi.Router) {
		// Публичные маршруты для просмотра жеребьёвки
		r.Get("/", eventHandler.List)
		r.Get("/{eventID}", eventHandler.Get)
		r.Get("/{eventID}/full", eventHandler.FullDraw)
		r.Get("/{eventID}/cars", eventHandler.ListCars)
		r.Get("/{eventID}/schedule", drawHandler.GetSchedule)
		r.Get("/{eventID}/standings", drawHandler.GetStandings)
		r.Get("/{eventID}/bracket", drawHandler.GetBracket)
		r.Get("/{eventID}/bracket/upcoming", drawHandler.GetUpcoming)
		r.Get("/{eventID}/podium", drawHandler.GetPodium)

		// Защищённые маршруты только для судьи
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.Authorize("official"))

			r.Post("/", eventHandler.Create)
			r.Delete("/{eventID}", eventHandler.Delete)
			r.Post("/{eventID}/roster", eventHandler.UploadRoster)
			r.Post("/{eventID}/cars", eventHandler.RegisterCar)
			r.Put("/{eventID}/cars/{carID}/eligibility", eventHandler.UpdateEligibility)
			r.Delete("/{eventID}/cars/{carID}", eventHandler.WithdrawCar)

			r.Post("/{eventID}/schedule", drawHandler.GenerateSchedule)
			r.Post("/{eventID}/results", drawHandler.RecordResult)
			r.Post("/{eventID}/standings/freeze", drawHandler.FreezeStandings)
			r.Post("/{eventID}/bracket", drawHandler.BuildBracket)
			r.Post("/{eventID}/report", drawHandler.ExportReport)
		})
	})

	router.Get("/ws/events/{eventID}", webSocketHandler.ServeWs)
}
