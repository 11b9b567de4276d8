package http

import (
	"errors"
	"net/http"

	"github.com/sakya-app/sakya/internal/service"
	"github.com/sakya-app/sakya/internal/store"
	"github.com/sakya-app/sakya/internal/token"
)

var errorStatusMap = map[error]int{
	service.ErrInvalidEmail:      http.StatusBadRequest,
	service.ErrInvalidDeviceData: http.StatusBadRequest,
	service.ErrRateLimited:       http.StatusTooManyRequests,
	service.ErrInvalidMagicLink:  http.StatusUnauthorized,
	service.ErrMagicLinkExpired:  http.StatusUnauthorized,

	token.ErrTokenExpired: http.StatusUnauthorized,
	token.ErrInvalidToken: http.StatusUnauthorized,

	store.ErrAccountNotFound:    http.StatusNotFound,
	store.ErrDeviceNotFound:     http.StatusNotFound,
	store.ErrEmailAlreadyExists: http.StatusConflict,

	store.ErrBuildingSQLQuery: http.StatusInternalServerError,
	store.ErrExecutingQuery:   http.StatusInternalServerError,
	store.ErrScanningRow:      http.StatusInternalServerError,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
