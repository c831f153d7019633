package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRegisterRoutesAppliesWriteLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var limited []string
	limit := func(c *gin.Context) {
		limited = append(limited, c.FullPath())
		c.AbortWithStatus(http.StatusTooManyRequests)
	}
	engine := gin.New()
	RegisterRoutes(engine.Group("/api/v1"), RouterDeps{
		Documents:  &DocumentHandler{},
		Query:      &QueryHandler{},
		Jobs:       &JobHandler{},
		WriteLimit: limit,
	})

	for _, path := range []string{"/api/v1/documents", "/api/v1/query"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		require.Equal(t, http.StatusTooManyRequests, w.Code)
	}
	require.Equal(t, []string{"/api/v1/documents", "/api/v1/query"}, limited)
}
