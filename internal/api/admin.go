package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tradescholar/supportkb/internal/ingest"
	"github.com/tradescholar/supportkb/internal/kb"
)

// EntryStore is the manual KB surface the admin handlers consume.
type EntryStore interface {
	Create(ctx context.Context, title, content, category, url string) (kb.Entry, error)
	Get(ctx context.Context, id string) (kb.Entry, error)
	Update(ctx context.Context, id, title, content, category, url string) (kb.Entry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]kb.Entry, error)
}

// Ingestor triggers and inspects ingestion runs.
type Ingestor interface {
	Run(ctx context.Context) (ingest.Stats, error)
	Busy() bool
}

// CorpusCounter reports the corpus size for the stats endpoint.
type CorpusCounter interface {
	Count(ctx context.Context) (int64, error)
}

type adminHandler struct {
	entries  EntryStore
	ingestor Ingestor
	counter  CorpusCounter
	// baseCtx scopes background ingestion runs to the server lifetime.
	baseCtx context.Context
	logger  *slog.Logger
}

type entryRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	URL      string `json:"url"`
}

func (h *adminHandler) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.entries.List(r.Context())
	if err != nil {
		h.logger.Error("listing entries", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "could not list entries")

		return
	}

	if entries == nil {
		entries = []kb.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

func (h *adminHandler) createEntry(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEntry(w, r)
	if !ok {
		return
	}

	entry, err := h.entries.Create(r.Context(), req.Title, req.Content, req.Category, req.URL)
	if err != nil {
		h.writeEntryError(w, "creating entry", err)

		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (h *adminHandler) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.entries.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeEntryError(w, "fetching entry", err)

		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *adminHandler) updateEntry(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEntry(w, r)
	if !ok {
		return
	}

	entry, err := h.entries.Update(r.Context(), r.PathValue("id"), req.Title, req.Content, req.Category, req.URL)
	if err != nil {
		h.writeEntryError(w, "updating entry", err)

		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (h *adminHandler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.entries.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeEntryError(w, "deleting entry", err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// triggerIngest starts a run in the background and reports 202. A run
// already in flight yields 409 so callers can tell "started" from
// "already running".
func (h *adminHandler) triggerIngest(w http.ResponseWriter, r *http.Request) {
	if h.ingestor.Busy() {
		writeError(w, http.StatusConflict, "ingest_busy", "an ingestion run is already in flight")

		return
	}

	go func() {
		stats, err := h.ingestor.Run(h.baseCtx)
		if err != nil {
			if errors.Is(err, ingest.ErrRunInFlight) {
				return
			}

			h.logger.Error("background ingestion failed", "error", err, "stats", stats)

			return
		}

		h.logger.Info("background ingestion finished",
			"upserted", stats.Upserted,
			"duration", stats.Duration.String(),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *adminHandler) stats(w http.ResponseWriter, r *http.Request) {
	records, err := h.counter.Count(r.Context())
	if err != nil {
		h.logger.Error("counting corpus records", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "could not collect stats")

		return
	}

	entries, err := h.entries.List(r.Context())
	if err != nil {
		h.logger.Error("listing entries for stats", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "could not collect stats")

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"corpusRecords":  records,
		"manualEntries":  len(entries),
		"staticArticles": len(ingest.Articles()),
		"ingestBusy":     h.ingestor.Busy(),
	})
}

func (h *adminHandler) writeEntryError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, kb.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "entry not found")
	case errors.Is(err, kb.ErrEmptyTitle), errors.Is(err, kb.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "invalid_entry", err.Error())
	default:
		h.logger.Error(action, "error", err)
		writeError(w, http.StatusInternalServerError, "storage_error", "storage operation failed")
	}
}

func decodeEntry(w http.ResponseWriter, r *http.Request) (entryRequest, bool) {
	var req entryRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 256<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON entry")

		return entryRequest{}, false
	}

	return req, true
}

// adminKeyMiddleware guards the admin surface with a shared key. An empty
// configured key leaves the surface open, which is only sensible in dev.
func adminKeyMiddleware(key string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" {
				provided := r.Header.Get("X-Admin-Key")
				if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
					logger.Warn("admin key rejected", "path", r.URL.Path, "ip", r.RemoteAddr)
					writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin key")

					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
