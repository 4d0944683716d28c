package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-madr/auth"
	"github.com/goliatone/go-madr/repository"
)

type BooksController struct {
	Logger auth.Logger
	Books  repository.Books
}

func NewBooksController(books repository.Books, logger auth.Logger) *BooksController {
	return &BooksController{Logger: logger, Books: books}
}

func RegisterBookRoutes(r fiber.Router, controller *BooksController, guard fiber.Handler) {
	r.Get("/", controller.List).Name("books.list")
	r.Get("/:id", controller.Show).Name("books.show")
	r.Post("/", guard, controller.Create).Name("books.create")
	r.Put("/:id", guard, controller.Update).Name("books.update")
	r.Delete("/:id", guard, controller.Delete).Name("books.delete")
}

func (b *BooksController) List(c *fiber.Ctx) error {
	filter, err := bookFilter(c)
	if err != nil {
		return err
	}

	page, err := b.Books.List(c.UserContext(), filter)
	if err != nil {
		return repoError(err, bookMessages)
	}

	return c.JSON(presentPage(page, presentBook))
}

func (b *BooksController) Show(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	book, err := b.Books.GetByID(c.UserContext(), id)
	if err != nil {
		return repoError(err, bookMessages)
	}

	return c.JSON(presentBook(book))
}

// Create adds a book. An unknown novelist is reported as not found.
func (b *BooksController) Create(c *fiber.Ctx) error {
	payload := new(BookRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, msgMalformedBody)
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	book, err := b.Books.Create(c.UserContext(), payload.Book())
	if err != nil {
		return repoError(err, bookMessages)
	}

	return c.Status(fiber.StatusCreated).JSON(presentBook(book))
}

func (b *BooksController) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	payload := new(BookUpdateRequest)
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, msgMalformedBody)
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	book, err := b.Books.Update(c.UserContext(), id, payload.Patch())
	if err != nil {
		return repoError(err, bookMessages)
	}

	return c.JSON(presentBook(book))
}

func (b *BooksController) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := b.Books.Delete(c.UserContext(), id); err != nil {
		return repoError(err, bookMessages)
	}

	b.Logger.Info("book removed", "book_id", id)

	return c.JSON(Message{Message: msgBookRemoved})
}
