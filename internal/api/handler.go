package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/BRO3886/restaurant-search/internal/search"
	"github.com/BRO3886/restaurant-search/internal/store"
	"github.com/BRO3886/restaurant-search/internal/types"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Restaurants is the mutation and lookup surface, implemented by
// indexsync.Coordinator.
type Restaurants interface {
	Create(ctx context.Context, in types.RestaurantInput) (types.Restaurant, error)
	Update(ctx context.Context, id string, patch types.RestaurantPatch) (types.Restaurant, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (types.Restaurant, error)
	List(ctx context.Context) ([]types.Restaurant, error)
}

type Handler struct {
	restaurants Restaurants
	querier     search.Querier
	log         *zap.Logger
}

func NewHandler(restaurants Restaurants, querier search.Querier, log *zap.Logger) *Handler {
	return &Handler{
		restaurants: restaurants,
		querier:     querier,
		log:         log.Named("api"),
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/restaurants", h.List).Methods(http.MethodGet)
	router.HandleFunc("/restaurants", h.Create).Methods(http.MethodPost)
	router.HandleFunc("/restaurants/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/restaurants/{id}", h.Update).Methods(http.MethodPut)
	router.HandleFunc("/restaurants/{id}", h.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	router.HandleFunc("/autocomplete", h.Autocomplete).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.restaurants.List(r.Context())
	if err != nil {
		h.log.Error("failed to list restaurants", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, restaurants)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	restaurant, err := h.restaurants.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "Restaurant not found")
		return
	}
	if err != nil {
		h.log.Error("failed to get restaurant", zap.String("id", id), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, restaurant)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in types.RestaurantInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateInput(in); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	restaurant, err := h.restaurants.Create(r.Context(), in)
	if err != nil {
		h.log.Error("failed to create restaurant", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, restaurant)
}

// Update answers 400 for any failure other than a missing record.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch types.RestaurantPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validatePatch(patch); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	restaurant, err := h.restaurants.Update(r.Context(), id, patch)
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "Restaurant not found")
		return
	}
	if err != nil {
		h.log.Error("failed to update restaurant", zap.String("id", id), zap.Error(err))
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, restaurant)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.restaurants.Remove(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "Restaurant not found")
		return
	}
	if err != nil {
		h.log.Error("failed to delete restaurant", zap.String("id", id), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Restaurant deleted"})
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	results, err := h.querier.Search(r.Context(), query)
	if err != nil {
		h.log.Error("search failed", zap.String("query", query), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	h.respondJSON(w, http.StatusOK, results)
}

func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("query")
	if prefix == "" {
		h.respondError(w, http.StatusBadRequest, "query parameter 'query' is required")
		return
	}

	suggestions, err := h.querier.Suggest(r.Context(), prefix, search.MaxSuggestions)
	if err != nil {
		h.log.Error("autocomplete failed", zap.String("prefix", prefix), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "autocomplete failed")
		return
	}
	h.respondJSON(w, http.StatusOK, suggestions)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"message": message})
}

func validateInput(in types.RestaurantInput) error {
	required := []struct{ name, value string }{
		{"name", in.Name},
		{"category", in.Category},
		{"address", in.Address},
		{"phone", in.Phone},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	return validateDetails(in.Details)
}

func validatePatch(p types.RestaurantPatch) error {
	if p.IsEmpty() {
		return errors.New("no fields to update")
	}
	required := []struct {
		name  string
		value *string
	}{
		{"name", p.Name},
		{"category", p.Category},
		{"address", p.Address},
		{"phone", p.Phone},
	}
	for _, f := range required {
		if f.value != nil && *f.value == "" {
			return fmt.Errorf("%s must not be empty", f.name)
		}
	}
	if p.Details != nil {
		return validateDetails(*p.Details)
	}
	return nil
}

func validateDetails(details string) error {
	if utf8.RuneCountInString(details) > types.MaxDetailsLength {
		return fmt.Errorf("details must be at most %d characters", types.MaxDetailsLength)
	}
	return nil
}
