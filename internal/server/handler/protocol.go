package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/swivlabs/swivd/internal/domain"
)

// ProtocolHandler serves the mirrored protocol configuration row.
type ProtocolHandler struct {
	protocol domain.ProtocolStore
	logger   *slog.Logger
}

// NewProtocolHandler creates a ProtocolHandler.
func NewProtocolHandler(protocol domain.ProtocolStore, logger *slog.Logger) *ProtocolHandler {
	return &ProtocolHandler{protocol: protocol, logger: logger}
}

// GetProtocol returns the current protocol state.
// GET /api/protocol
func (h *ProtocolHandler) GetProtocol(w http.ResponseWriter, r *http.Request) {
	proto, err := h.protocol.Get(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "protocol state not synced yet")
			return
		}
		h.logger.Error("get protocol failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to get protocol state")
		return
	}

	writeJSON(w, http.StatusOK, proto)
}
