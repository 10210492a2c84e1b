package api

import (
	"net/http"

	"github.com/tcworks/tcmanage/facility"
	"github.com/tcworks/tcmanage/store/sqlite"
)

// ListWorkOrders returns work orders newest first, filtered by ?q= and
// ?project_id=.
// GET /api/work-orders
func (h *Handler) ListWorkOrders(w http.ResponseWriter, r *http.Request) {
	projectID, err := queryInt(r, "project_id", 0)
	if err != nil {
		h.fail(w, r, "Invalid work order filter", err)
		return
	}
	orders, err := h.Store.ListWorkOrders(r.Context(), sqlite.WorkOrderFilter{
		Search:    r.URL.Query().Get("q"),
		ProjectID: int64(projectID),
	})
	if err != nil {
		h.fail(w, r, "Failed to list work orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// NewWorkOrder returns a blank order with the form defaults and a reserved
// number.
// GET /api/work-orders/new
func (h *Handler) NewWorkOrder(w http.ResponseWriter, r *http.Request) {
	number, err := h.Store.NextOrderNumber(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to reserve order number", err)
		return
	}
	o := facility.NewWorkOrder(h.clock())
	o.OrderNumber = number
	writeJSON(w, http.StatusOK, o)
}

// NextOrderNumber reserves the next number of the current month.
// POST /api/work-orders/next-number
func (h *Handler) NextOrderNumber(w http.ResponseWriter, r *http.Request) {
	number, err := h.Store.NextOrderNumber(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to reserve order number", err)
		return
	}
	writeJSON(w, http.StatusOK, OrderNumberResponse{OrderNumber: number})
}

// GetWorkOrder returns one work order with joined names.
// GET /api/work-orders/{id}
func (h *Handler) GetWorkOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.Store.GetWorkOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get work order", err)
		return
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "Work order not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// CreateWorkOrder saves a new order, numbering it when the body has no
// order_number.
// POST /api/work-orders
func (h *Handler) CreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	o := facility.NewWorkOrder(h.clock())
	if !decode(w, r, &o) {
		return
	}
	o.ID = 0
	saved, err := h.Store.SaveWorkOrder(r.Context(), o)
	if err != nil {
		h.fail(w, r, "Failed to create work order", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// UpdateWorkOrder replaces an order's fields. An empty order_number keeps
// the stored one.
// PUT /api/work-orders/{id}
func (h *Handler) UpdateWorkOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var o facility.WorkOrder
	if !decode(w, r, &o) {
		return
	}
	o.ID = id
	if _, err := h.Store.SaveWorkOrder(r.Context(), o); err != nil {
		h.fail(w, r, "Failed to update work order", err)
		return
	}
	h.GetWorkOrder(w, r)
}

// DeleteWorkOrder removes a work order.
// DELETE /api/work-orders/{id}
func (h *Handler) DeleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteWorkOrder(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to delete work order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
