// Package api exposes the question answering pipeline over HTTP.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/metrics"
)

// RegisterRoutes registers the pipeline endpoints on rg.
//
//	POST /ask      - answer a question
//	GET  /sources  - list registered sources
//	GET  /healthz  - liveness
//	GET  /metrics  - prometheus metrics
func RegisterRoutes(rg gin.IRoutes, h *Handlers) {
	rg.POST("/ask", h.HandleAsk)
	rg.GET("/sources", h.HandleSources)
	rg.GET("/healthz", h.HandleHealth)
	rg.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// NewRouter builds a gin engine serving svc.
func NewRouter(svc policyqa.Service) *gin.Engine {
	metrics.Register()
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	RegisterRoutes(router, NewHandlers(svc))
	return router
}
