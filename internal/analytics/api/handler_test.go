package analytics_api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reviews/internal/analytics"
	"ms-reviews/internal/auth"
	"ms-reviews/internal/logger"
	"ms-reviews/internal/models"
	"ms-reviews/internal/order/db/dbtest"
)

func TestReviewerRoutes(t *testing.T) {
	store := dbtest.New(t)
	reviewer, pkg := dbtest.SeedCatalog(t, store, 100, models.ReviewTypeScorecard)
	dbtest.SeedOrder(t, store, reviewer, pkg, "artist-1", models.OrderStatusPending)

	h := NewHandler(analytics.NewService(store.Bun), store, logger.NewNopLogger(), "admin")
	router := chi.NewRouter()
	h.RegisterRoutes(router)

	call := func(path string, id *auth.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if id != nil {
			req = req.WithContext(auth.WithIdentity(context.Background(), *id))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	base := "/reviewers/" + reviewer.ID
	owner := &auth.Identity{UserID: reviewer.UserID}

	t.Run("owner sees analytics", func(t *testing.T) {
		rec := call(base+"/analytics", owner)
		require.Equal(t, http.StatusOK, rec.Code)
		var body analytics.ReviewerAnalytics
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.OrdersByStatus[models.OrderStatusPending])
	})

	t.Run("admin sees orders", func(t *testing.T) {
		rec := call(base+"/orders?status=pending", &auth.Identity{UserID: "ops", Roles: []string{"admin"}})
		require.Equal(t, http.StatusOK, rec.Code)
		var orders []models.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
		assert.Len(t, orders, 1)
	})

	t.Run("access rules", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, call(base+"/analytics", nil).Code)
		assert.Equal(t, http.StatusForbidden, call(base+"/analytics", &auth.Identity{UserID: "artist-1"}).Code)
		assert.Equal(t, http.StatusNotFound, call("/reviewers/missing/analytics", owner).Code)
	})

	t.Run("bad input", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, call(base+"/analytics?from=yesterday", owner).Code)
		assert.Equal(t, http.StatusBadRequest, call(base+"/orders?status=refunded", owner).Code)
	})
}
