package api

import (
	"errors"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/goliatone/go-madr/auth"
	"github.com/goliatone/go-madr/middleware/jwtware"
	"github.com/goliatone/go-madr/repository"
)

const (
	msgDatabaseError    = "Database error"
	msgInternalError    = "Internal error"
	msgInvalidValue     = "Invalid value"
	msgIncorrectLogin   = "Incorrect username or password"
	msgUserExists       = "User already exists"
	msgNovelistExists   = "Novelist already exists"
	msgNovelistNotFound = "Novelist not found"
	msgBookExists       = "Book already exists"
	msgBookNotFound     = "Book not found"
	msgUserNotFound     = "User not found"
	msgLoggedOut        = "Logged out successfully"
	msgSessionsCleared  = "All sessions invalidated"
	msgAccountRemoved   = "Account Removed"
	msgNovelistRemoved  = "Novelist Removed"
	msgBookRemoved      = "Book Removed"
	msgMalformedBody    = "Malformed request body"
	msgHealthy          = "ok"
)

// resourceMessages names the responses a repository error maps to
type resourceMessages struct {
	NotFound string
	Conflict string
}

var (
	userMessages     = resourceMessages{NotFound: msgUserNotFound, Conflict: msgUserExists}
	novelistMessages = resourceMessages{NotFound: msgNovelistNotFound, Conflict: msgNovelistExists}
	bookMessages     = resourceMessages{NotFound: msgBookNotFound, Conflict: msgBookExists}
)

// Message is the body of every plain acknowledgement
type Message struct {
	Message string `json:"message"`
}

// repoError translates repository sentinels into HTTP errors using the
// messages of the resource. Anything else is returned unchanged.
func repoError(err error, msgs resourceMessages) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrRecordNotFound):
		return fiber.NewError(fiber.StatusNotFound, msgs.NotFound)
	case errors.Is(err, repository.ErrUniqueViolation):
		return fiber.NewError(fiber.StatusConflict, msgs.Conflict)
	case errors.Is(err, repository.ErrForeignKeyViolation):
		return fiber.NewError(fiber.StatusNotFound, msgNovelistNotFound)
	case errors.Is(err, repository.ErrCheckViolation):
		return fiber.NewError(fiber.StatusUnprocessableEntity, msgInvalidValue)
	}
	return err
}

// unauthorized is a 401 carrying the bearer challenge
func unauthorized(c *fiber.Ctx, detail string) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"detail": detail})
}

// ErrorHandler renders every error as {"detail": ...}. Server errors are
// logged with the request id.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return func(c *fiber.Ctx, err error) error {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": validationDetail(verrs)})
		}

		if detail, ok := jwtware.UnauthorizedDetail(err); ok {
			return unauthorized(c, detail)
		}
		if errors.Is(err, auth.ErrMismatchedHashAndPassword) {
			return unauthorized(c, msgIncorrectLogin)
		}

		code := fiber.StatusInternalServerError
		detail := msgInternalError

		var ferr *fiber.Error
		switch {
		case errors.As(err, &ferr):
			code = ferr.Code
			detail = ferr.Message
		case errors.Is(err, repository.ErrStoreFailure):
			detail = msgDatabaseError
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"status", code,
				"request_id", requestID(c),
				"error", err,
			)
		}

		if code == fiber.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}

		return c.Status(code).JSON(fiber.Map{"detail": detail})
	}
}

func validationDetail(verrs validation.Errors) map[string]any {
	out := make(map[string]any, len(verrs))
	for field, err := range verrs {
		if nested, ok := err.(validation.Errors); ok {
			out[field] = validationDetail(nested)
			continue
		}
		out[field] = err.Error()
	}
	return out
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
