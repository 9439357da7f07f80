package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iconidentify/xresolve/internal/domain"
	"github.com/iconidentify/xresolve/internal/service"
)

// Resolver resolves post references to media URLs.
type Resolver interface {
	Resolve(ctx context.Context, ref domain.PostReference) (*service.Resolution, error)
}

// ResolveHandler handles media resolution requests.
type ResolveHandler struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewResolveHandler creates a new resolve handler.
func NewResolveHandler(resolver Resolver, logger *slog.Logger) *ResolveHandler {
	return &ResolveHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Resolve handles GET /?tweet=<id-or-url>&index=<n>.
// It redirects to the media URL or responds with an ErrorResponse.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	index := 0
	if s := q.Get("index"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			index = n
		}
	}

	ref, err := domain.NewPostReference(q.Get("tweet"), index)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), ref)
	if err != nil {
		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			// The timeout middleware answers 504 once we return.
			h.logger.Warn("resolve timed out", "tweet_id", ref.ID.String(), "error", err)
			return
		}
		h.writeResolveError(w, err)
		return
	}

	h.logger.Info("media resolved",
		"tweet_id", res.PostID.String(),
		"source", res.Source,
		"kind", res.Item.Kind(),
	)
	http.Redirect(w, r, res.MediaURL, http.StatusFound)
}

func (h *ResolveHandler) writeResolveError(w http.ResponseWriter, err error) {
	var re *domain.ResolveError
	if !errors.As(err, &re) {
		h.logger.Error("resolve failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   domain.ErrProcessing.Error(),
			Details: err.Error(),
		})
		return
	}

	status := re.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Error("resolve failed", "error", err, "status", status)
	} else {
		h.logger.Info("resolve rejected", "error", err, "status", status)
	}
	h.writeJSON(w, status, ErrorResponse{
		Error:   domain.KindOf(re).Error(),
		Details: re.Details,
	})
}

func (h *ResolveHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
