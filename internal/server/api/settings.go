package api

import (
	"encoding/json"
	"maps"
	"net/http"

	"github.com/ayusman/handswitch/internal/store"
)

// SettingsValidator checks a full settings map before it is persisted.
type SettingsValidator func(settings map[string]string) error

// SettingsHandler serves GET and PUT /api/settings. Stored settings take
// effect the next time the tracker is created.
type SettingsHandler struct {
	store    *store.Store
	validate SettingsValidator
}

// NewSettingsHandler creates a SettingsHandler. validate may be nil.
func NewSettingsHandler(s *store.Store, validate SettingsValidator) *SettingsHandler {
	return &SettingsHandler{store: s, validate: validate}
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SettingsHandler) list(w http.ResponseWriter) {
	settings, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// update merges the request into the stored settings. An empty value deletes the key.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	current, err := h.store.Settings().All()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	merged := maps.Clone(current)
	for k, v := range req {
		if v == "" {
			delete(merged, k)
		} else {
			merged[k] = v
		}
	}
	if h.validate != nil {
		if err := h.validate(merged); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	repo := h.store.Settings()
	for k, v := range req {
		if v == "" {
			err = repo.Delete(k)
		} else {
			err = repo.Set(k, v)
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save settings")
			return
		}
	}

	writeJSON(w, http.StatusOK, merged)
}
