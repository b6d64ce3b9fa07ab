package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capsula-erp/capsula/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"validation", shared.Invalidf("quantity must be positive"), http.StatusBadRequest, TypeValidation},
		{"not found", fmt.Errorf("lot 4: %w", shared.ErrNotFound), http.StatusNotFound, TypeNotFound},
		{"protected", shared.Protectedf("supplier 1 has lots"), http.StatusConflict, TypeProtected},
		{"duplicate", shared.ErrDuplicate, http.StatusConflict, TypeDuplicate},
		{"internal", errors.New("db down"), http.StatusInternalServerError, TypeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/lots/4", nil)
			RespondError(rec, req, nil, tc.err)
			require.Equal(t, tc.status, rec.Code)
			var problem ProblemDetail
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
			require.Equal(t, tc.typ, problem.Type)
			if tc.status == http.StatusInternalServerError {
				require.Empty(t, problem.Detail)
			}
		})
	}
}

func TestRespondErrorFieldValidation(t *testing.T) {
	type input struct {
		SizeKg float64 `json:"size_kg" validate:"gt=0"`
	}
	err := shared.NewValidator().Struct(input{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest(http.MethodPost, "/", nil), nil, err)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var problem ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	require.Len(t, problem.Errors, 1)
	require.Equal(t, "size_kg", problem.Errors[0].Field)
	require.Equal(t, "gt", problem.Errors[0].Rule)
}
