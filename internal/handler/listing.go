package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/petcommunity/internal/apperror"
	"github.com/sakif/petcommunity/internal/auth"
	"github.com/sakif/petcommunity/internal/model"
	"github.com/sakif/petcommunity/internal/service"
)

// ListingHandler serves every listing kind from one set of routes. The
// {kind} URL segment ("adoptions", "board", "reviews", "diaries") selects
// the board.
type ListingHandler struct {
	svc    *service.ListingService
	logger *slog.Logger
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(svc *service.ListingService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{svc: svc, logger: logger}
}

type statusRequest struct {
	Status string `json:"status"`
}

// deleteRequest is the optional DELETE body. Older clients send the id of
// the user they believe is logged in.
type deleteRequest struct {
	UserID int64 `json:"userId"`
}

// HandleList returns the full collection of a kind.
//
// HTTP: GET /api/{kind}
// Auth: Optional (diaries require it and only return the caller's own)
func (h *ListingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	viewerID, _ := auth.UserIDFromContext(r.Context())

	listings, err := h.svc.List(r.Context(), kind, viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// HandleGet returns one listing.
//
// HTTP: GET /api/{kind}/{id}
func (h *ListingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}
	viewerID, _ := auth.UserIDFromContext(r.Context())

	listing, err := h.svc.Get(r.Context(), kind, id, viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleCreate stores a new listing owned by the caller.
//
// HTTP: POST /api/{kind}
// Auth: Required
func (h *ListingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	var in model.ListingInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, err)
		return
	}

	actorID, _ := auth.UserIDFromContext(r.Context())
	listing, err := h.svc.Create(r.Context(), kind, actorID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

// HandleUpdate replaces the mutable fields of a listing the caller owns.
//
// HTTP: PUT /api/{kind}/{id}
// Auth: Required, owner only
func (h *ListingHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}

	var in model.ListingInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, err)
		return
	}

	actorID, _ := auth.UserIDFromContext(r.Context())
	listing, err := h.svc.Update(r.Context(), kind, id, actorID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleSetStatus changes an adoption listing's status.
//
// HTTP: PATCH /api/adoptions/{id}/status
// REQUEST BODY: {"status": "reserved"}
func (h *ListingHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	actorID, _ := auth.UserIDFromContext(r.Context())
	listing, err := h.svc.SetStatus(r.Context(), id, actorID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// HandleDelete removes a listing the caller owns.
//
// HTTP: DELETE /api/{kind}/{id}
// REQUEST BODY (optional): {"userId": 7}
func (h *ListingHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.kindAndID(w, r)
	if !ok {
		return
	}

	var req deleteRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}

	actorID, _ := auth.UserIDFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), kind, id, actorID, req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListingHandler) kind(w http.ResponseWriter, r *http.Request) (model.Kind, bool) {
	raw := chi.URLParam(r, "kind")
	kind, err := model.ParseKind(raw)
	if err != nil {
		writeError(w, apperror.NotFound("listing kind", raw))
		return "", false
	}
	return kind, true
}

func (h *ListingHandler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apperror.ValidationFailed("id", "listing ID must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *ListingHandler) kindAndID(w http.ResponseWriter, r *http.Request) (model.Kind, int64, bool) {
	kind, ok := h.kind(w, r)
	if !ok {
		return "", 0, false
	}
	id, ok := h.id(w, r)
	if !ok {
		return "", 0, false
	}
	return kind, id, true
}
