package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Policy bounds the limit accepted by one endpoint.
type Policy struct {
	Default int
	Max     int
}

// DefaultPolicy is used by FromContext.
var DefaultPolicy = Policy{Default: DefaultLimit, Max: MaxLimit}

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext extracts limit/offset using DefaultPolicy.
func FromContext(c echo.Context) Params {
	return Parse(c, DefaultPolicy)
}

// Parse extracts limit/offset from the query string. Missing or invalid
// values fall back to the policy default; limits above Max are clamped.
func Parse(c echo.Context, p Policy) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = p.Default
	}
	if p.Max > 0 && limit > p.Max {
		limit = p.Max
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"hasMore"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}
