package materials

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/capsula-erp/capsula/internal/platform/httpx"
	"github.com/capsula-erp/capsula/internal/shared"
)

// Handler exposes raw material and lot endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountMaterialRoutes registers /materials routes.
func (h *Handler) MountMaterialRoutes(r chi.Router) {
	r.Get("/", h.listMaterials)
	r.Post("/", h.createMaterial)
	r.Get("/overview", h.overview)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getMaterial)
		r.Put("/", h.updateMaterial)
		r.Delete("/", h.deleteMaterial)
		r.Post("/open", h.openMaterial)
		r.Post("/stock/add", h.addMaterialStock)
		r.Post("/stock/consume", h.consumeMaterialStock)
		r.Post("/quarantine", h.quarantineMaterial)
		r.Post("/release", h.releaseMaterial)
	})
}

// MountLotRoutes registers /lots routes.
func (h *Handler) MountLotRoutes(r chi.Router) {
	r.Get("/", h.listLots)
	r.Post("/", h.createLot)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.getLot)
		r.Put("/", h.updateLot)
		r.Delete("/", h.deleteLot)
		r.Post("/open", h.openLot)
		r.Post("/approve", h.approveLot)
		r.Post("/add", h.addToLot)
		r.Post("/consume", h.consumeFromLot)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.RespondError(w, r, h.logger, err)
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	supplierID, err := httpx.QueryInt64(r, "supplier_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter := MaterialFilter{
		ListFilters: httpx.ListFilters(r),
		SupplierID:  supplierID,
		Category:    r.URL.Query().Get("category"),
		Status:      Status(r.URL.Query().Get("status")),
	}
	items, page, err := h.service.ListMaterials(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[MaterialView]{Items: items, Pagination: page})
}

func (h *Handler) createMaterial(w http.ResponseWriter, r *http.Request) {
	var in CreateMaterialInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.CreateMaterial(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", httpx.Location("/api/materials", view.ID))
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Overview(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.GetMaterial(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) updateMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in UpdateMaterialInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.UpdateMaterial(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) deleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeleteMaterial(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) openMaterial(w http.ResponseWriter, r *http.Request) {
	h.materialAction(w, r, func(id int64) (MaterialView, error) {
		return h.service.OpenMaterialPackage(r.Context(), id)
	})
}

func (h *Handler) addMaterialStock(w http.ResponseWriter, r *http.Request) {
	var in QuantityInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.materialAction(w, r, func(id int64) (MaterialView, error) {
		return h.service.AddMaterialStock(r.Context(), id, in.Quantity)
	})
}

func (h *Handler) consumeMaterialStock(w http.ResponseWriter, r *http.Request) {
	var in QuantityInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.materialAction(w, r, func(id int64) (MaterialView, error) {
		return h.service.ConsumeMaterialStock(r.Context(), id, in.Quantity)
	})
}

func (h *Handler) quarantineMaterial(w http.ResponseWriter, r *http.Request) {
	var in QuarantineInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.materialAction(w, r, func(id int64) (MaterialView, error) {
		return h.service.QuarantineMaterial(r.Context(), id, in)
	})
}

func (h *Handler) releaseMaterial(w http.ResponseWriter, r *http.Request) {
	h.materialAction(w, r, func(id int64) (MaterialView, error) {
		return h.service.ReleaseMaterial(r.Context(), id)
	})
}

func (h *Handler) materialAction(w http.ResponseWriter, r *http.Request, fn func(int64) (MaterialView, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := fn(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	materialID, err := httpx.QueryInt64(r, "material_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	supplierID, err := httpx.QueryInt64(r, "supplier_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter := LotFilter{
		ListFilters: httpx.ListFilters(r),
		MaterialID:  materialID,
		SupplierID:  supplierID,
		Status:      Status(r.URL.Query().Get("status")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("expiring_within")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			h.fail(w, r, shared.Invalidf("invalid expiring_within %q", raw))
			return
		}
		filter.ExpiringWithin = &days
	}
	items, page, err := h.service.ListLots(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.Page[LotView]{Items: items, Pagination: page})
}

func (h *Handler) createLot(w http.ResponseWriter, r *http.Request) {
	var in CreateLotInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := h.service.CreateLot(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", httpx.Location("/api/lots", view.ID))
	httpx.JSON(w, http.StatusCreated, view)
}

func (h *Handler) getLot(w http.ResponseWriter, r *http.Request) {
	h.lotAction(w, r, func(id int64) (LotView, error) {
		return h.service.GetLot(r.Context(), id)
	})
}

func (h *Handler) updateLot(w http.ResponseWriter, r *http.Request) {
	var in UpdateLotInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.lotAction(w, r, func(id int64) (LotView, error) {
		return h.service.UpdateLot(r.Context(), id, in)
	})
}

func (h *Handler) deleteLot(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeleteLot(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) openLot(w http.ResponseWriter, r *http.Request) {
	h.lotAction(w, r, func(id int64) (LotView, error) {
		return h.service.OpenLotPackage(r.Context(), id)
	})
}

func (h *Handler) approveLot(w http.ResponseWriter, r *http.Request) {
	h.lotAction(w, r, func(id int64) (LotView, error) {
		return h.service.ApproveLot(r.Context(), id)
	})
}

func (h *Handler) addToLot(w http.ResponseWriter, r *http.Request) {
	var in QuantityInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.lotAction(w, r, func(id int64) (LotView, error) {
		return h.service.AddToLot(r.Context(), id, in.Quantity)
	})
}

func (h *Handler) consumeFromLot(w http.ResponseWriter, r *http.Request) {
	var in QuantityInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.lotAction(w, r, func(id int64) (LotView, error) {
		return h.service.ConsumeFromLot(r.Context(), id, in.Quantity)
	})
}

func (h *Handler) lotAction(w http.ResponseWriter, r *http.Request, fn func(int64) (LotView, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	view, err := fn(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}
