package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/models"
)

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	devices, err := h.services.IdentityService.ListDevices(ctx, accountIDFromContext(ctx))
	if err != nil {
		log.Err(err).Msg("device listing failed")
		http.Error(w, http.StatusText(statusFromError(err)), statusFromError(err))
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

func (h *Handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	var device models.Device
	if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
		log.Err(err).Msg("invalid JSON was passed")
		http.Error(w, "invalid JSON was passed", http.StatusBadRequest)
		return
	}

	registered, err := h.services.IdentityService.RegisterDevice(ctx, accountIDFromContext(ctx), device)
	if err != nil {
		log.Err(err).Msg("device registration failed")
		http.Error(w, http.StatusText(statusFromError(err)), statusFromError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(registered)
}

func (h *Handler) removeDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromRequest(r)

	deviceID := chi.URLParam(r, "deviceID")
	if err := h.services.IdentityService.RemoveDevice(ctx, accountIDFromContext(ctx), deviceID); err != nil {
		log.Err(err).Str("device_id", deviceID).Msg("device removal failed")
		http.Error(w, http.StatusText(statusFromError(err)), statusFromError(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
