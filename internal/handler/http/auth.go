package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/models"
)

// magicLinkRequest is the body of POST /api/auth/magic-link.
type magicLinkRequest struct {
	Email string `json:"email"`
}

// magicLinkResponse returns the minted token to the caller for delivery.
// The server does not send email itself; the deployment's mailer does.
type magicLinkResponse struct {
	Token string `json:"token"`
}

// verifyRequest is the body of POST /api/auth/verify. The device block
// describes the install redeeming the link.
type verifyRequest struct {
	Token  string        `json:"token"`
	Device models.Device `json:"device"`
}

// verifyResponse carries the account the link resolved to. The session
// token travels in the Authorization response header.
type verifyResponse struct {
	Account models.Account `json:"account"`
	Device  models.Device  `json:"device"`
}

func (h *Handler) requestMagicLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var req magicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	rawToken, err := h.services.IdentityService.RequestMagicLink(ctx, req.Email)
	if err != nil {
		log.Err(err).Msg("magic link request failed")
		http.Error(w, http.StatusText(statusFromError(err)), statusFromError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(magicLinkResponse{Token: rawToken})
}

func (h *Handler) verifyMagicLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Err(err).Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	account, session, err := h.services.IdentityService.VerifyMagicLink(ctx, req.Token, req.Device)
	if err != nil {
		log.Err(err).Msg("magic link verification failed")
		http.Error(w, http.StatusText(statusFromError(err)), statusFromError(err))
		return
	}

	req.Device.AccountID = account.ID

	w.Header().Set("Authorization", fmt.Sprintf("Bearer %s", session.SignedString))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verifyResponse{Account: account, Device: req.Device})
}
