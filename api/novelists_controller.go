package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-madr/auth"
	"github.com/goliatone/go-madr/repository"
)

type NovelistsController struct {
	Logger    auth.Logger
	Novelists repository.Novelists
	Books     repository.Books
}

func NewNovelistsController(novelists repository.Novelists, books repository.Books, logger auth.Logger) *NovelistsController {
	return &NovelistsController{Logger: logger, Novelists: novelists, Books: books}
}

// RegisterNovelistRoutes mounts the novelist endpoints, reads are public
func RegisterNovelistRoutes(r fiber.Router, controller *NovelistsController, guard fiber.Handler) {
	r.Get("/", controller.List).Name("novelists.list")
	r.Get("/:id", controller.Show).Name("novelists.show")
	r.Get("/:id/books", controller.Books).Name("novelists.books")
	r.Post("/", guard, controller.Create).Name("novelists.create")
	r.Put("/:id", guard, controller.Update).Name("novelists.update")
	r.Delete("/:id", guard, controller.Delete).Name("novelists.delete")
}

func (n *NovelistsController) List(c *fiber.Ctx) error {
	filter, err := novelistFilter(c)
	if err != nil {
		return err
	}

	page, err := n.Novelists.List(c.UserContext(), filter)
	if err != nil {
		return repoError(err, novelistMessages)
	}

	return c.JSON(presentPage(page, presentNovelist))
}

func (n *NovelistsController) Show(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	novelist, err := n.Novelists.GetByID(c.UserContext(), id)
	if err != nil {
		return repoError(err, novelistMessages)
	}

	return c.JSON(presentNovelist(novelist))
}

// Books lists the books of a novelist. An unknown novelist yields an empty
// page.
func (n *NovelistsController) Books(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	filter, err := bookFilter(c)
	if err != nil {
		return err
	}
	filter.NovelistID = &id

	page, err := n.Books.List(c.UserContext(), filter)
	if err != nil {
		return repoError(err, bookMessages)
	}

	return c.JSON(presentPage(page, presentBook))
}

func (n *NovelistsController) Create(c *fiber.Ctx) error {
	payload := new(NovelistRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, msgMalformedBody)
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	novelist, err := n.Novelists.Create(c.UserContext(), &repository.Novelist{Name: payload.Name})
	if err != nil {
		return repoError(err, novelistMessages)
	}

	return c.Status(fiber.StatusCreated).JSON(presentNovelist(novelist))
}

func (n *NovelistsController) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	payload := new(NovelistUpdateRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, msgMalformedBody)
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	novelist, err := n.Novelists.Update(c.UserContext(), id, repository.NovelistPatch{Name: payload.Name})
	if err != nil {
		return repoError(err, novelistMessages)
	}

	return c.JSON(presentNovelist(novelist))
}

// Delete removes the novelist and, through the foreign key, its books
func (n *NovelistsController) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := n.Novelists.Delete(c.UserContext(), id); err != nil {
		return repoError(err, novelistMessages)
	}

	n.Logger.Info("novelist removed", "novelist_id", id)

	return c.JSON(Message{Message: msgNovelistRemoved})
}
