package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Documents *DocumentHandler
	Query     *QueryHandler
	Jobs      *JobHandler
	// WriteLimit throttles the expensive mutating routes. Read routes
	// stay unlimited so job status polling is not penalized.
	WriteLimit gin.HandlerFunc
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	limit := deps.WriteLimit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	api.POST("/documents", limit, deps.Documents.Upload)
	api.GET("/documents", deps.Documents.List)
	api.GET("/documents/:id", deps.Documents.Get)
	api.GET("/documents/:id/file", deps.Documents.Download)
	api.DELETE("/documents/:id", deps.Documents.Delete)

	api.POST("/query", limit, deps.Query.Query)

	api.GET("/jobs/queue", deps.Jobs.QueueState)
	api.GET("/jobs/:id", deps.Jobs.Get)
}
