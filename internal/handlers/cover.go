package handlers

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/reelvault/apiserver/internal/logging"
	"github.com/reelvault/apiserver/internal/storage"
)

// CoverHandler streams uploaded covers when the bucket is not publicly
// reachable. Users only ever see their own covers.
type CoverHandler struct {
	storage *storage.Storage
	log     logging.Logger
}

func NewCoverHandler(s *storage.Storage, log logging.Logger) *CoverHandler {
	return &CoverHandler{storage: s, log: log}
}

// CoverRouter registers the cover route on the given router.
func CoverRouter(r chi.Router, h *CoverHandler, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Get(storage.LocalPrefix+"*", h.ServeCover)
}

func (h *CoverHandler) ServeCover(w http.ResponseWriter, r *http.Request) {
	key := "covers/" + chi.URLParam(r, "*")

	owner, err := storage.OwnerOf(key)
	if err != nil || owner != principal(r).ID.String() {
		writeError(w, http.StatusNotFound, "cover not found")
		return
	}

	rc, err := h.storage.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "cover not found")
			return
		}
		writeInternal(w, r, h.log, "failed to read cover", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Cache-Control", "private, max-age=86400")
	if ct := contentTypeFor(key); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn(r.Context(), "failed to stream cover", "key", key, "error", err)
	}
}

func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".jpg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
