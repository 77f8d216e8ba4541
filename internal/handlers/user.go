package handlers

import (
	"log/slog"
	"net/http"

	"github.com/markjakearzadon/schoolpay-gobackend/internal/services"
)

type UserHandler struct {
	log     *slog.Logger
	service *services.UserService
}

func NewUserHandler(log *slog.Logger, service *services.UserService) *UserHandler {
	return &UserHandler{log: log, service: service}
}

func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var creds services.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.Signup(r.Context(), creds); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created"})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds services.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.service.Login(r.Context(), creds)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"msg": "Login Successful!", "token": token})
}
