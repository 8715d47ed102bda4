package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edgard/todobot/internal/database"
)

// CategoryHandler serves /api/v1/categories.
type CategoryHandler struct {
	store  database.Store
	logger *slog.Logger
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithJSON(w, http.StatusOK, []CategoryResponse{})
		return
	}

	categories, err := h.store.ListCategories(r.Context(), tid)
	if err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}

	resp := make([]CategoryResponse, 0, len(categories))
	for i := range categories {
		resp = append(resp, newCategoryResponse(&categories[i]))
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithError(w, r, http.StatusBadRequest, TelegramIDHeader+" header is required")
		return
	}

	var req CategoryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}

	category := &database.Category{TelegramID: tid, Name: req.Name}
	if err := h.store.CreateCategory(r.Context(), category); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, newCategoryResponse(category))
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithErrorAndLog(w, r, h.logger, database.ErrNotFound)
		return
	}

	category, err := h.store.GetCategory(r.Context(), tid, chi.URLParam(r, "id"))
	if err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newCategoryResponse(category))
}

// Rename serves both PUT and PATCH; name is the only writable field.
func (h *CategoryHandler) Rename(w http.ResponseWriter, r *http.Request) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithErrorAndLog(w, r, h.logger, database.ErrNotFound)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := h.store.GetCategory(r.Context(), tid, id); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}

	var req CategoryRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}

	category, err := h.store.RenameCategory(r.Context(), tid, id, req.Name)
	if err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newCategoryResponse(category))
}

// Delete removes a category; its tasks keep existing without one.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithErrorAndLog(w, r, h.logger, database.ErrNotFound)
		return
	}
	if err := h.store.DeleteCategory(r.Context(), tid, chi.URLParam(r, "id")); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
