package api

import "github.com/goliatone/go-madr/repository"

// UserPublic is the user as exposed over HTTP
type UserPublic struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type NovelistPublic struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type BookPublic struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Year       int    `json:"year"`
	Title      string `json:"title"`
	NovelistID int64  `json:"idNovelist"`
}

func presentUser(u *repository.User) UserPublic {
	return UserPublic{ID: u.ID, Username: u.Username, Email: u.Email}
}

func presentNovelist(n *repository.Novelist) NovelistPublic {
	return NovelistPublic{ID: n.ID, Name: n.Name}
}

func presentBook(b *repository.Book) BookPublic {
	return BookPublic{
		ID:         b.ID,
		Name:       b.Name,
		Year:       b.Year,
		Title:      b.Title,
		NovelistID: b.NovelistID,
	}
}

// presentPage keeps the envelope and maps every item
func presentPage[T, P any](page repository.Page[T], fn func(T) P) repository.Page[P] {
	data := make([]P, 0, len(page.Data))
	for _, item := range page.Data {
		data = append(data, fn(item))
	}
	return repository.Page[P]{
		Data:    data,
		Total:   page.Total,
		Page:    page.Page,
		HasPrev: page.HasPrev,
		HasNext: page.HasNext,
	}
}
