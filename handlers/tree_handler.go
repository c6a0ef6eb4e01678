package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/staple-duck/snh/models"
	"github.com/staple-duck/snh/services"
)

// TreeHandler exposes the hierarchy service over HTTP
type TreeHandler struct {
	hierarchy services.HierarchyService
	logger    services.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(hierarchy services.HierarchyService, logger services.Logger) *TreeHandler {
	if logger == nil {
		logger = services.NopLogger{}
	}
	return &TreeHandler{
		hierarchy: hierarchy,
		logger:    logger,
	}
}

// RegisterRoutes mounts the tree routes on r
func (h *TreeHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/tree", h.CreateNode).Methods(http.MethodPost)
	r.HandleFunc("/tree", h.FindAll).Methods(http.MethodGet)
	r.HandleFunc("/tree/clone", h.CloneNode).Methods(http.MethodPost)
	r.HandleFunc("/tree/{id}", h.GetNode).Methods(http.MethodGet)
	r.HandleFunc("/tree/{id}", h.UpdateNode).Methods(http.MethodPatch)
	r.HandleFunc("/tree/{id}", h.DeleteNode).Methods(http.MethodDelete)
}

// CreateNode handles POST /tree
func (h *TreeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}

	node, err := h.hierarchy.Create(r.Context(), req.Label, req.ParentID)
	if err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusCreated, node)
}

// FindAll handles GET /tree
func (h *TreeHandler) FindAll(w http.ResponseWriter, r *http.Request) {
	forest, err := h.hierarchy.FindAll(r.Context())
	if err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, forest)
}

// GetNode handles GET /tree/{id}
func (h *TreeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.hierarchy.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, node)
}

// UpdateNode handles PATCH /tree/{id}
func (h *TreeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}

	node, err := h.hierarchy.Update(r.Context(), mux.Vars(r)["id"], req.Patch())
	if err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, node)
}

// DeleteNode handles DELETE /tree/{id}
func (h *TreeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	resp, err := h.hierarchy.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, resp)
}

// CloneNode handles POST /tree/clone
func (h *TreeHandler) CloneNode(w http.ResponseWriter, r *http.Request) {
	var req models.CloneNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}

	resp, err := h.hierarchy.Clone(r.Context(), req.NodeID, req.TargetParentID)
	if err != nil {
		writeAppErrorResponse(w, h.logger, err)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusCreated, resp)
}
