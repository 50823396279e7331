// Package errhttp maps domain sentinel errors onto HTTP responses so
// handlers never hand-roll status codes for shared failure modes.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/ghuser/itemflow/pkg/httpx"
	itemdomain "github.com/ghuser/itemflow/services/item/domain"
)

var production bool

// SetProduction switches 5xx bodies to generic status text. Call once at
// startup, before the server accepts traffic.
func SetProduction(on bool) {
	production = on
}

// StatusFor returns the HTTP status for a domain error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, itemdomain.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, itemdomain.ErrItemConflict):
		return http.StatusConflict
	case errors.Is(err, itemdomain.ErrInvalidItemName),
		errors.Is(err, itemdomain.ErrInvalidItemDescription):
		return http.StatusUnprocessableEntity
	case errors.Is(err, itemdomain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError maps err to a status and writes the JSON error body. 5xx
// messages are sanitized in production.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	httpx.JSONError(w, status, httpx.SafeError(err, status, production))
}
