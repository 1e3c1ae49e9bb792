package httpx_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/platform/httpx"
	"github.com/odyssey-erp/rowguard/internal/store"
	"github.com/odyssey-erp/rowguard/internal/store/pgstore"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("load: %w", store.ErrNotFound), http.StatusNotFound},
		{"conflict", pgstore.ErrConflict, http.StatusConflict},
		{"validation", fmt.Errorf("%w: title required", httpx.ErrValidation), http.StatusBadRequest},
		{"bad request", httpx.ErrBadRequest, http.StatusBadRequest},
		{"denied", &access.DeniedError{Entity: "documents.Document", Operation: access.Update, IdentityID: 3, Required: access.ReadWrite}, http.StatusForbidden},
		{"invalid state", access.ErrInvalidState, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			httpx.RespondError(rr, tc.err)
			assert.Equal(t, tc.status, rr.Code)

			var problem httpx.ProblemDetail
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&problem))
			assert.Equal(t, tc.status, problem.Status)
		})
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	httpx.RespondError(rr, errors.New("dial tcp 10.0.0.1:5432: refused"))
	assert.NotContains(t, rr.Body.String(), "10.0.0.1")
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x"}`))
	var body struct {
		Title string `json:"title"`
	}
	require.NoError(t, httpx.DecodeJSON(req, &body))
	assert.Equal(t, "x", body.Title)
}
