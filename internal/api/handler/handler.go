package handler

import (
	"pairgogo/backend/internal/chathub"
	"pairgogo/backend/internal/session"
	"pairgogo/backend/internal/storage"
)

// Handler carries the dependencies of the HTTP endpoints.
type Handler struct {
	Hub      *chathub.ManagerService
	Storage  storage.Storage
	Sessions *session.Service
}

func NewHandler(hub *chathub.ManagerService, storageSvc storage.Storage, sessions *session.Service) *Handler {
	return &Handler{Hub: hub, Storage: storageSvc, Sessions: sessions}
}
