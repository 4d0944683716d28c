package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-madr/auth"
	"github.com/goliatone/go-madr/middleware/jwtware"
)

type AuthControllerRoutes struct {
	Token     string
	Logout    string
	LogoutAll string
}

// AuthController issues and revokes access tokens
type AuthController struct {
	Logger auth.Logger
	Auther auth.Authenticator
	Routes *AuthControllerRoutes
}

func NewAuthController(auther auth.Authenticator, logger auth.Logger) *AuthController {
	return &AuthController{
		Logger: logger,
		Auther: auther,
		Routes: &AuthControllerRoutes{
			Token:     "/token",
			Logout:    "/logout",
			LogoutAll: "/logout-all",
		},
	}
}

// RegisterAuthRoutes mounts the token endpoints on r. throttle guards the
// token endpoint and may be nil.
func RegisterAuthRoutes(r fiber.Router, controller *AuthController, guard, throttle fiber.Handler) {
	token := []fiber.Handler{controller.Token}
	if throttle != nil {
		token = append([]fiber.Handler{throttle}, token...)
	}

	r.Post(controller.Routes.Token, token...).Name("auth.token")
	r.Post(controller.Routes.Logout, guard, controller.Logout).Name("auth.logout")
	r.Post(controller.Routes.LogoutAll, guard, controller.LogoutAll).Name("auth.logout-all")
}

// Token exchanges a username or email and a password for a bearer token.
// The body may be a form or JSON.
func (a *AuthController) Token(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, msgMalformedBody)
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	token, err := a.Auther.Login(c.UserContext(), payload.Username, payload.Password)
	if err != nil {
		a.Logger.Debug("login failed", "error", err)
		return err
	}

	return c.JSON(token)
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	ac, ok := jwtware.FromLocals(c)
	if !ok {
		return unauthorized(c, jwtware.DetailNotAuthenticated)
	}

	if err := a.Auther.Logout(c.UserContext(), ac); err != nil {
		return err
	}

	return c.JSON(Message{Message: msgLoggedOut})
}

func (a *AuthController) LogoutAll(c *fiber.Ctx) error {
	ac, ok := jwtware.FromLocals(c)
	if !ok {
		return unauthorized(c, jwtware.DetailNotAuthenticated)
	}

	if _, err := a.Auther.LogoutAll(c.UserContext(), ac); err != nil {
		return err
	}

	return c.JSON(Message{Message: msgSessionsCleared})
}
