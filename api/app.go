package api

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/goliatone/go-madr/auth"
	"github.com/goliatone/go-madr/middleware/jwtware"
	"github.com/goliatone/go-madr/repository"
)

const healthTimeout = 2 * time.Second

// Options wires the HTTP application
type Options struct {
	Logger      *slog.Logger
	Repo        *repository.Manager
	Auther      auth.Authenticator
	Hasher      PasswordHasher
	CORSOrigins []string
	// LoginThrottle guards POST /auth/token, nil disables it
	LoginThrottle fiber.Handler
	Debug         bool
}

// New builds the fiber app with every route mounted
func New(opts Options) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	app := fiber.New(fiber.Config{
		AppName:               "madr",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: opts.Debug}))
	app.Use(requestid.New())
	app.Use(RequestLogger(logger))

	if len(opts.CORSOrigins) > 0 {
		app.Use(cors.New(corsConfig(opts.CORSOrigins)))
	}

	guard := jwtware.New(jwtware.Config{Authenticator: opts.Auther})

	app.Get("/", health(opts.Repo)).Name("health")

	RegisterAuthRoutes(
		app.Group("/auth"),
		NewAuthController(opts.Auther, logger),
		guard,
		opts.LoginThrottle,
	)

	RegisterUserRoutes(
		app.Group("/users"),
		NewUsersController(opts.Repo.Users(), opts.Hasher, logger),
		guard,
	)

	RegisterNovelistRoutes(
		app.Group("/novelists"),
		NewNovelistsController(opts.Repo.Novelists(), opts.Repo.Books(), logger),
		guard,
	)

	RegisterBookRoutes(
		app.Group("/books"),
		NewBooksController(opts.Repo.Books(), logger),
		guard,
	)

	return app
}

func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: strings.Join([]string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderAuthorization,
		}, ","),
		// fiber refuses credentials together with a wildcard origin
		AllowCredentials: !slices.Contains(origins, "*"),
		ExposeHeaders:    fiber.HeaderXRequestID,
	}
}

// health answers ok once the database responds
func health(repo *repository.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()

		if err := repo.Ping(ctx); err != nil {
			return err
		}
		return c.JSON(Message{Message: msgHealthy})
	}
}
