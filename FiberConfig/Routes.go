package FiberConfig

import (
	"context"
	"log/slog"
	"net/http"

	"FalconFreight/Access"
	"FalconFreight/Controllers"
	"FalconFreight/Metrics"
	"FalconFreight/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth    *Controllers.AuthHandler
	Trips   *Controllers.TripHandler
	Fuel    *Controllers.FuelHandler
	Billing *Controllers.BillingHandler
}

type Options struct {
	CORSOrigins string
	Logger      *slog.Logger
	// Health reports whether the backing store is reachable.
	Health func(ctx context.Context) error
}

// New builds the fiber app with the shared middleware and every route.
func New(h Handlers, resolver Access.Resolver, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "falcon-freight",
		ErrorHandler: Controllers.ErrorHandler,
	})

	logConfig := middleware.DefaultLogConfig()
	if opts.Logger != nil {
		logConfig.Logger = opts.Logger
	}
	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logConfig))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: origins != "*", // fiber refuses credentials with a wildcard origin
		MaxAge:           300,
	}))

	SetupRoutes(app, h, resolver, opts.Health)
	return app
}

func SetupRoutes(app *fiber.App, h Handlers, resolver Access.Resolver, health func(ctx context.Context) error) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if health != nil {
			if err := health(c.UserContext()); err != nil {
				return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unavailable",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(Metrics.Registry, promhttp.HandlerOpts{})))

	app.Post("/api/login", h.Auth.Login)
	app.Post("/api/logout", h.Auth.Logout)

	api := app.Group("/api", middleware.Verify(resolver))
	api.Get("/me", h.Auth.Me)

	trips := api.Group("/trips")
	trips.Get("/", h.Trips.GetTrips)
	trips.Post("/", h.Trips.CreateTrip)
	// Static paths before the ID routes
	trips.Post("/purge", h.Trips.PurgeTrips)
	trips.Get("/:id", h.Trips.GetTrip)
	trips.Put("/:id", h.Trips.UpdateTrip)
	trips.Delete("/:id", h.Trips.DeleteTrip)
	trips.Post("/:id/take", h.Trips.TakeTrip)
	trips.Post("/:id/finalize", h.Trips.FinalizeTrip)
	trips.Post("/:id/release", h.Trips.ReleaseTrip)
	trips.Post("/:id/invoice", h.Trips.RecordInvoice)
	trips.Post("/:id/credit-notes", h.Trips.RecordCreditNote)

	fuel := api.Group("/fuel")
	fuel.Get("/balance", h.Fuel.GetBalance)
	fuel.Post("/loads", h.Fuel.RecordLoad)
	fuel.Post("/adjustments", h.Fuel.AdjustStock)
	fuel.Put("/price", h.Fuel.SetPrice)
	fuel.Get("/summary", h.Fuel.GetSummary)
	fuel.Get("/entries", h.Fuel.GetEntries)
	fuel.Get("/verify", h.Fuel.VerifyLedger)

	api.Post("/billing/sweep", h.Billing.RunSweep)
	api.Get("/notifications", h.Billing.GetNotifications)
	api.Patch("/notifications/:id/read", h.Billing.MarkNotificationRead)
}
