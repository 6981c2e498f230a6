// Package router provides compliance service routing.
//
//	@title			RegRAG Compliance API
//	@version		1.0
//	@description	Cross-jurisdiction (US, EU, BR) regulatory retrieval, synthesis and conflict analysis.
//	@BasePath		/api/v1
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gregorizeidler-cw/RegRAG/api/swagger/compliance" // swagger docs
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/handler"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/server"
)

// Register registers the compliance service routes.
func Register(mgr *server.Manager, h *handler.ComplianceHandler, withSwagger bool) error {
	logger.Info("Registering compliance routes...")

	router := mgr.HTTPServer().Engine()

	if withSwagger {
		registerSwagger(router)
	}

	v1 := router.Group("/api/v1")
	{
		compliance := v1.Group("/compliance")
		{
			// Query & analysis
			compliance.POST("/query", h.Query)
			compliance.POST("/conflicts", h.Conflicts)
			compliance.GET("/trends", h.Trends)
			compliance.GET("/requirements", h.Requirements)

			// Corpus
			compliance.POST("/ingest", h.Ingest)
			compliance.GET("/documents", h.Documents)
			compliance.GET("/documents/:id", h.Document)

			compliance.GET("/stats", h.Stats)
			compliance.GET("/metrics", h.Metrics)
		}
	}

	logger.Info("HTTP routes registered")
	return nil
}

// registerSwagger Swagger UI 位于 /swagger/index.html，文档位于 /swagger/doc.json。
func registerSwagger(engine *gin.Engine) {
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	logger.Info("Swagger UI available at /swagger/index.html")
}
