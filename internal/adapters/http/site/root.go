// Package site serves the service landing route.
package site

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/okian/movierank/pkg/logger"
)

// WelcomeMessage is returned to non-browser clients at /.
const WelcomeMessage = "Welcome to movierank!!!"

// Error constants
var (
	ErrServe = errors.New("landing page serve failed")
)

// Register attaches the landing route to mux. Only the exact root path matches.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /{$}", NewRootHandler().HandleRoot)
}

// RootHandler handles root path requests
type RootHandler struct{}

// NewRootHandler creates a new root handler
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// HandleRoot serves the HTML landing page to browsers and a JSON greeting otherwise.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		page, err := indexPage()
		if err != nil {
			logger.Get().Error(r.Context(), "landing page unavailable", logger.Error(errors.Join(ErrServe, err)))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": WelcomeMessage})
}
