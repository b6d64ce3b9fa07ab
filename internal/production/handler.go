package production

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capsula-erp/capsula/internal/platform/httpx"
)

// IdempotencyHeader carries the client key that deduplicates batch creation.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes production endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers /production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/allocation", h.allocation)
	r.Route("/batches", func(r chi.Router) {
		r.Get("/", h.listBatches)
		r.Post("/", h.createBatch)
		r.Get("/{id}", h.getBatch)
		r.Put("/{id}", h.updateBatch)
		r.Delete("/{id}", h.deleteBatch)
		r.Post("/{id}/consumptions", h.registerConsumption)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.RespondError(w, r, h.logger, err)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, page, err := h.service.ListBatches(r.Context(), httpx.ListFilters(r), productID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[Batch]{Items: items, Pagination: page})
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var in CreateBatchInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	detail, err := h.service.CreateBatch(r.Context(), in, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", httpx.Location("/api/production/batches", detail.ID))
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	detail, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) updateBatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in UpdateBatchInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.service.UpdateBatch(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeleteBatch(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) registerConsumption(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in ConsumptionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.service.RegisterConsumption(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) allocation(w http.ResponseWriter, r *http.Request) {
	materialID, err := httpx.QueryInt64(r, "material_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	mg, err := httpx.QueryFloat(r, "qty_mg")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	plan, err := h.service.AllocateAcrossLots(r.Context(), materialID, mg)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"material_id": materialID, "qty_mg": mg, "allocations": plan})
}
