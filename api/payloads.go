package api

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/goliatone/go-madr/repository"
)

const minPasswordLength = 8

var errEmailAt = errors.New("must contain @ after the first character")

// emailShape mirrors the database check on email
func emailShape(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if strings.Index(s, "@") < 1 {
		return errEmailAt
	}
	return nil
}

// LoginRequest is the token request, username accepts a username or an
// email
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// UserCreateRequest registers a new account
type UserCreateRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (r UserCreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email, validation.By(emailShape)),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, 256)),
	)
}

// UserUpdateRequest changes the profile, a password in the body is
// ignored
type UserUpdateRequest struct {
	Username *string `form:"username" json:"username"`
	Email    *string `form:"email" json:"email"`
}

func (r UserUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(3, 255), is.Email, validation.By(emailShape)),
	)
}

func (r UserUpdateRequest) Patch() repository.UserPatch {
	return repository.UserPatch{Username: r.Username, Email: r.Email}
}

// NovelistRequest creates a novelist
type NovelistRequest struct {
	Name string `form:"name" json:"name"`
}

func (r NovelistRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
	)
}

// NovelistUpdateRequest renames a novelist
type NovelistUpdateRequest struct {
	Name *string `form:"name" json:"name"`
}

func (r NovelistUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
	)
}

// BookRequest creates a book, the novelist id is accepted as id_novelist
// or idNovelist
type BookRequest struct {
	Name            string `form:"name" json:"name"`
	Year            *int   `form:"year" json:"year"`
	Title           string `form:"title" json:"title"`
	NovelistID      *int64 `form:"id_novelist" json:"id_novelist"`
	NovelistIDCamel *int64 `form:"idNovelist" json:"idNovelist"`
}

func (r BookRequest) novelistID() *int64 {
	if r.NovelistID != nil {
		return r.NovelistID
	}
	return r.NovelistIDCamel
}

func (r BookRequest) Validate() error {
	id := r.novelistID()
	return validation.Errors{
		"name":        validation.Validate(r.Name, validation.Required, validation.Length(1, 255)),
		"title":       validation.Validate(r.Title, validation.Required, validation.Length(1, 255)),
		"year":        validation.Validate(r.Year, validation.NotNil),
		"id_novelist": validation.Validate(id, validation.NotNil, validation.Min(int64(1))),
	}.Filter()
}

func (r BookRequest) Book() *repository.Book {
	book := &repository.Book{Name: r.Name, Title: r.Title}
	if r.Year != nil {
		book.Year = *r.Year
	}
	if id := r.novelistID(); id != nil {
		book.NovelistID = *id
	}
	return book
}

// BookUpdateRequest is a partial BookRequest
type BookUpdateRequest struct {
	Name            *string `form:"name" json:"name"`
	Year            *int    `form:"year" json:"year"`
	Title           *string `form:"title" json:"title"`
	NovelistID      *int64  `form:"id_novelist" json:"id_novelist"`
	NovelistIDCamel *int64  `form:"idNovelist" json:"idNovelist"`
}

func (r BookUpdateRequest) novelistID() *int64 {
	if r.NovelistID != nil {
		return r.NovelistID
	}
	return r.NovelistIDCamel
}

func (r BookUpdateRequest) Validate() error {
	return validation.Errors{
		"name":        validation.Validate(r.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
		"title":       validation.Validate(r.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		"id_novelist": validation.Validate(r.novelistID(), validation.Min(int64(1))),
	}.Filter()
}

func (r BookUpdateRequest) Patch() repository.BookPatch {
	return repository.BookPatch{
		Name:       r.Name,
		Year:       r.Year,
		Title:      r.Title,
		NovelistID: r.novelistID(),
	}
}
