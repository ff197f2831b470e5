package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/freshcart/internal/auth"
	"github.com/vbonduro/freshcart/internal/domain"
	"github.com/vbonduro/freshcart/internal/store"
)

// maxItemNameLen bounds display text; anything longer is a client bug.
const maxItemNameLen = 200

func (s *Server) handleFetchAll(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.FetchAll(r.Context())
	if err != nil {
		http.Error(w, "failed to fetch items", http.StatusInternalServerError)
		s.logger.Error("fetch all error", "error", err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.logger.Error("encode items error", "error", err)
	}
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	var items []domain.NewItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(items) == 0 {
		http.Error(w, "no items to insert", http.StatusBadRequest)
		return
	}

	for i := range items {
		items[i].Name = strings.TrimSpace(items[i].Name)
		if items[i].Name == "" {
			http.Error(w, "item name required", http.StatusBadRequest)
			return
		}
		if len(items[i].Name) > maxItemNameLen {
			http.Error(w, "item name too long", http.StatusBadRequest)
			return
		}
		items[i].Category = domain.ParseCategory(string(items[i].Category))
	}

	if err := s.store.Insert(r.Context(), auth.UserID(r.Context()), items); err != nil {
		http.Error(w, "failed to insert items", http.StatusInternalServerError)
		s.logger.Error("insert error", "error", err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch domain.ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		http.Error(w, "item name required", http.StatusBadRequest)
		return
	}
	if patch.Category != nil {
		cat := domain.ParseCategory(string(*patch.Category))
		patch.Category = &cat
	}

	err := s.store.Update(r.Context(), id, patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "item not found", http.StatusNotFound)
	case err != nil:
		http.Error(w, "failed to update item", http.StatusInternalServerError)
		s.logger.Error("update error", "id", id, "error", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := s.store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "item not found", http.StatusNotFound)
	case err != nil:
		http.Error(w, "failed to delete item", http.StatusInternalServerError)
		s.logger.Error("delete error", "id", id, "error", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleDeleteWhere services the bulk "clear all purchased" action:
// DELETE /api/items?purchased=true.
func (s *Server) handleDeleteWhere(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("purchased")
	purchased, err := strconv.ParseBool(raw)
	if err != nil {
		http.Error(w, "purchased query parameter required", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteWhere(r.Context(), store.PurchasedIs(purchased)); err != nil {
		http.Error(w, "failed to delete items", http.StatusInternalServerError)
		s.logger.Error("bulk delete error", "error", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
