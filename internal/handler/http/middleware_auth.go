package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/token"
)

type ctxKey int

const (
	accountIDCtxKey ctxKey = iota
	deviceIDCtxKey
)

// auth enforces session-token authentication on the device management
// routes. On success the account and device ids from the token's claims
// are stored in the request context.
//
// Rejections are always 401: the caller learns whether its token expired
// (so it can re-login) but nothing finer-grained than that.
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromRequest(r)

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Err(ErrEmptyAuthorizationHeader).Send()
			http.Error(w, ErrEmptyAuthorizationHeader.Error(), http.StatusUnauthorized)
			return
		}

		tokenString, err := token.ParseBearerToken(authHeader)
		if err != nil {
			log.Err(err).Send()
			http.Error(w, ErrInvalidAuthorizationHeader.Error(), http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		session, err := h.services.IdentityService.ValidateSession(ctx, tokenString)
		if err != nil {
			switch {
			case errors.Is(err, token.ErrTokenExpired):
				log.Err(err).Msg("session token expired")
				http.Error(w, token.ErrTokenExpired.Error(), http.StatusUnauthorized)
			default:
				log.Err(err).Msg("session token rejected")
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			}
			return
		}

		ctx = context.WithValue(ctx, accountIDCtxKey, session.AccountID())
		ctx = context.WithValue(ctx, deviceIDCtxKey, session.Claims.DeviceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accountIDFromContext returns the authenticated account id stored by the
// auth middleware.
func accountIDFromContext(ctx context.Context) string {
	accountID, _ := ctx.Value(accountIDCtxKey).(string)
	return accountID
}
