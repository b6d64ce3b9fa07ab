package materials

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/capsula-erp/capsula/internal/platform/httpx"
)

func newTestRouter(t *testing.T) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(t, ServiceConfig{})
	h := NewHandler(nil, f.svc)
	r := chi.NewRouter()
	r.Route("/api/materials", h.MountMaterialRoutes)
	r.Route("/api/lots", h.MountLotRoutes)
	return f, r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerMaterialLifecycle(t *testing.T) {
	_, h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/materials",
		`{"code":100,"name":"Colágeno","supplier_id":1,"unit":"g","unit_price":"0.35","expiry_date":"2026-06-30"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "/api/materials/1", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodPost, "/api/lots", `{"material_id":1,"lot_number":"C-01","received_mg":250000,"quality_approved":true,"expiry_date":"2026-01-31"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/materials/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view MaterialView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.InDelta(t, 250, view.AvailableQty, 1e-9)
	require.Equal(t, StatusAvailable, view.Status)
	require.Equal(t, "87.5", view.StockValue.String())

	rec = do(t, h, http.MethodDelete, "/api/materials/1", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, httpx.TypeProtected, problem.Type)
}

func TestHandlerLotConsumeInsufficient(t *testing.T) {
	_, h := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/materials", `{"code":1,"name":"Ômega 3","supplier_id":1}`).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/lots", `{"material_id":1,"lot_number":"O-1","received_mg":100000}`).Code)

	rec := do(t, h, http.MethodPost, "/api/lots/2/consume", `{"quantity":60000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/lots/2/consume", `{"quantity":50000}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Contains(t, problem.Detail, "available 40000 mg")
}

func TestHandlerValidationErrors(t *testing.T) {
	_, h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/materials", `{"code":0,"name":"","supplier_id":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.NotEmpty(t, problem.Errors)

	rec = do(t, h, http.MethodPost, "/api/materials", `{"unknown":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/materials/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/materials/42", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/lots?expiring_within=-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerListLotsByStatus(t *testing.T) {
	_, h := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/materials", `{"code":1,"name":"Biotina","supplier_id":1}`).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/lots", `{"material_id":1,"lot_number":"B-1","received_mg":10}`).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/lots", `{"material_id":1,"lot_number":"B-2","received_mg":10,"quality_approved":true}`).Code)

	rec := do(t, h, http.MethodGet, "/api/lots?status=pending_approval&material_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page httpx.Page[LotView]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, "B-1", page.Items[0].LotNumber)

	rec = do(t, h, http.MethodPost, "/api/lots/2/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/lots?status=pending_approval", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Empty(t, page.Items)
	require.Equal(t, 0, page.Pagination.Total)
}
