package api

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-madr/auth"
	"github.com/goliatone/go-madr/middleware/jwtware"
	"github.com/goliatone/go-madr/repository"
)

// PasswordHasher produces the digest stored for a new account
type PasswordHasher interface {
	Hash(password string) (string, error)
}

type UsersController struct {
	Logger auth.Logger
	Users  repository.Users
	Hasher PasswordHasher
}

func NewUsersController(users repository.Users, hasher PasswordHasher, logger auth.Logger) *UsersController {
	return &UsersController{Logger: logger, Users: users, Hasher: hasher}
}

func RegisterUserRoutes(r fiber.Router, controller *UsersController, guard fiber.Handler) {
	r.Post("/", controller.Create).Name("users.create")
	r.Get("/", controller.List).Name("users.list")
	r.Get("/me", guard, controller.Me).Name("users.me")
	r.Put("/", guard, controller.Update).Name("users.update")
	r.Delete("/", guard, controller.Delete).Name("users.delete")
}

func (u *UsersController) Create(c *fiber.Ctx) error {
	payload := new(UserCreateRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, msgMalformedBody)
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	digest, err := u.Hasher.Hash(payload.Password)
	if err != nil {
		return err
	}

	user, err := u.Users.Create(c.UserContext(), &repository.User{
		Username: payload.Username,
		Email:    payload.Email,
		Password: digest,
	})
	if err != nil {
		return repoError(err, userMessages)
	}

	u.Logger.Info("user registered", "user_id", user.ID)

	return c.Status(fiber.StatusCreated).JSON(presentUser(user))
}

func (u *UsersController) List(c *fiber.Ctx) error {
	q := newQueryParams(c)
	skip := q.Int("skip", 0)
	limit := q.Int("limit", repository.DefaultLimit)
	if err := q.Err(); err != nil {
		return err
	}

	err := validation.Errors{
		"skip":  validation.Validate(skip, atLeast(0)),
		"limit": validation.Validate(limit, between(1, repository.MaxLimit)),
	}.Filter()
	if err != nil {
		return err
	}

	records, err := u.Users.List(c.UserContext(), skip, limit)
	if err != nil {
		return repoError(err, userMessages)
	}

	out := make([]UserPublic, 0, len(records))
	for _, record := range records {
		out = append(out, presentUser(record))
	}

	return c.JSON(fiber.Map{"users": out})
}

func (u *UsersController) Me(c *fiber.Ctx) error {
	ac, ok := jwtware.FromLocals(c)
	if !ok {
		return unauthorized(c, jwtware.DetailNotAuthenticated)
	}

	user, err := u.Users.GetByID(c.UserContext(), ac.User.ID)
	if err != nil {
		return repoError(err, userMessages)
	}

	return c.JSON(presentUser(user))
}

// Update changes the username or email of the caller
func (u *UsersController) Update(c *fiber.Ctx) error {
	ac, ok := jwtware.FromLocals(c)
	if !ok {
		return unauthorized(c, jwtware.DetailNotAuthenticated)
	}

	payload := new(UserUpdateRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, msgMalformedBody)
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	user, err := u.Users.Update(c.UserContext(), ac.User.ID, payload.Patch())
	if err != nil {
		return repoError(err, userMessages)
	}

	return c.JSON(presentUser(user))
}

func (u *UsersController) Delete(c *fiber.Ctx) error {
	ac, ok := jwtware.FromLocals(c)
	if !ok {
		return unauthorized(c, jwtware.DetailNotAuthenticated)
	}

	if err := u.Users.Delete(c.UserContext(), ac.User.ID); err != nil {
		return repoError(err, userMessages)
	}

	u.Logger.Info("user removed", "user_id", ac.User.ID)

	return c.JSON(Message{Message: msgAccountRemoved})
}
