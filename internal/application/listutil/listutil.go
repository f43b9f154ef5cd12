package listutil

import (
	"errors"
	"net/url"
	"strconv"
)

// MaxLimit caps the rows a single list request may ask for.
const MaxLimit = 200

// ErrInvalidPage is returned for non-numeric or negative paging values.
var ErrInvalidPage = errors.New("listutil: invalid pagination parameters")

// Page carries limit/offset paging parsed from a request. A zero Limit
// means "store default".
type Page struct {
	Limit  int
	Offset int
}

// ParsePage extracts limit and offset from URL query values.
// PRE: none
// POST: returns a Page with Limit clamped to MaxLimit, or ErrInvalidPage
func ParsePage(q url.Values) (Page, error) {
	limit, err := nonNegative(q.Get("limit"))
	if err != nil {
		return Page{}, err
	}
	offset, err := nonNegative(q.Get("offset"))
	if err != nil {
		return Page{}, err
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Limit: limit, Offset: offset}, nil
}

// ParseBool reads a "true"/"false"/"1"/"0" query flag; anything else is false.
func ParseBool(q url.Values, key string) bool {
	v, err := strconv.ParseBool(q.Get(key))
	return err == nil && v
}

func nonNegative(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, ErrInvalidPage
	}
	return n, nil
}
