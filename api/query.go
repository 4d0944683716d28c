package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-madr/repository"
)

var errNotInteger = errors.New("must be an integer")

// queryParams reads query values by their snake_case name or the
// camelCase alias, collecting parse failures per field
type queryParams struct {
	c    *fiber.Ctx
	errs validation.Errors
}

func newQueryParams(c *fiber.Ctx) *queryParams {
	return &queryParams{c: c, errs: validation.Errors{}}
}

func (q *queryParams) raw(name string) string {
	if v := strings.TrimSpace(q.c.Query(name)); v != "" {
		return v
	}
	return strings.TrimSpace(q.c.Query(camelCase(name)))
}

func (q *queryParams) String(name string) string {
	return q.raw(name)
}

func (q *queryParams) Int(name string, def int) int {
	v := q.IntPtr(name)
	if v == nil {
		return def
	}
	return *v
}

func (q *queryParams) IntPtr(name string) *int {
	raw := q.raw(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		q.errs[name] = errNotInteger
		return nil
	}
	return &n
}

func (q *queryParams) Err() error {
	return q.errs.Filter()
}

// atLeast and between also reject zero, which ozzo's Min and Max treat as
// empty and skip
func atLeast(min int) validation.Rule {
	return validation.By(func(value any) error {
		if n, _ := value.(int); n < min {
			return fmt.Errorf("must be no less than %d", min)
		}
		return nil
	})
}

func between(min, max int) validation.Rule {
	return validation.By(func(value any) error {
		if n, _ := value.(int); n < min || n > max {
			return fmt.Errorf("must be between %d and %d", min, max)
		}
		return nil
	})
}

func camelCase(name string) string {
	parts := strings.Split(name, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// pageQuery validates the page window and ordering. Values out of range
// are rejected rather than clamped.
func pageQuery(q *queryParams, orderFields []string) (repository.PageQuery, error) {
	pq := repository.PageQuery{
		Page:     q.Int("page", repository.DefaultPage),
		Limit:    q.Int("limit", repository.DefaultLimit),
		OrderBy:  q.String("order_by"),
		OrderDir: strings.ToLower(q.String("order_dir")),
	}
	if err := q.Err(); err != nil {
		return pq, err
	}

	allowed := make([]any, len(orderFields))
	for i, f := range orderFields {
		allowed[i] = f
	}

	err := validation.Errors{
		"page":      validation.Validate(pq.Page, atLeast(1)),
		"limit":     validation.Validate(pq.Limit, between(1, repository.MaxLimit)),
		"order_by":  validation.Validate(pq.OrderBy, validation.In(allowed...)),
		"order_dir": validation.Validate(pq.OrderDir, validation.In(repository.OrderAsc, repository.OrderDesc)),
	}.Filter()
	if err != nil {
		return pq, err
	}

	return pq.Normalize(), nil
}

func novelistFilter(c *fiber.Ctx) (repository.NovelistFilter, error) {
	q := newQueryParams(c)
	pq, err := pageQuery(q, repository.NovelistOrderFields)
	if err != nil {
		return repository.NovelistFilter{}, err
	}
	return repository.NovelistFilter{PageQuery: pq, Name: q.String("name")}, nil
}

func bookFilter(c *fiber.Ctx) (repository.BookFilter, error) {
	q := newQueryParams(c)

	yearFrom := q.IntPtr("year_from")
	yearTo := q.IntPtr("year_to")

	pq, err := pageQuery(q, repository.BookOrderFields)
	if err != nil {
		return repository.BookFilter{}, err
	}

	return repository.BookFilter{
		PageQuery: pq,
		YearFrom:  yearFrom,
		YearTo:    yearTo,
		Name:      q.String("name"),
		Title:     q.String("title"),
	}, nil
}

// pathID reads a positive integer route parameter
func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id < 1 {
		return 0, validation.Errors{name: errNotInteger}
	}
	return id, nil
}
