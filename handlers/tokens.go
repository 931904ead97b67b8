// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Callum-CMc/triviapool/middleware"
	"github.com/Callum-CMc/triviapool/models"
	"github.com/Callum-CMc/triviapool/token"
)

// TokenHandler resolves issued outcome-token ids to their descriptors.
type TokenHandler struct {
	db     *sql.DB
	scheme token.Scheme
}

func NewTokenHandler(db *sql.DB, scheme token.Scheme) *TokenHandler {
	return &TokenHandler{db: db, scheme: scheme}
}

// GetMetadata handles GET /tokens/{id}/metadata
func (h *TokenHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, models.CodeInvalidRequest, "invalid token id")
		return
	}

	meta, err := token.Metadata(h.db, h.scheme, id)
	if errors.Is(err, token.ErrUnknownToken) {
		middleware.ErrorResponse(w, http.StatusNotFound, models.CodeNotFound, "Token id outside issued range")
		return
	}
	if err != nil {
		slog.Error("failed to resolve token metadata", "error", err, "token_id", id)
		middleware.ErrorResponse(w, http.StatusInternalServerError, models.CodeInternal, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, meta)
}
