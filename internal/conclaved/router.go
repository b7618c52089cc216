package conclaved

import (
	"github.com/gin-gonic/gin"

	"github.com/mellis-dev/conclave/internal/conclaved/handler/middleware"
	v1 "github.com/mellis-dev/conclave/internal/conclaved/handler/v1"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra"
)

// routerDeps holds the dependencies needed for route registration.
type routerDeps struct {
	orchestra *orchestra.Module
	hub       *v1.EventHub
}

func initRouter(g *gin.Engine, deps *routerDeps) {
	installMiddleware(g)
	installController(g, deps)
}

func installMiddleware(g *gin.Engine) {
	g.Use(middleware.CORS())
}

func installController(g *gin.Engine, deps *routerDeps) {
	agentHandler := v1.NewAgentHandler(deps.orchestra.Registry, deps.hub)
	approvalHandler := v1.NewApprovalHandler(deps.orchestra.Bridge)
	eventsHandler := v1.NewEventsHandler(deps.hub)

	apiV1 := g.Group("/v1")
	{
		// Agent lifecycle, scoped to a session.
		apiV1.POST("/sessions/:sid/agents", agentHandler.Spawn)
		apiV1.GET("/sessions/:sid/agents", agentHandler.List)
		apiV1.GET("/sessions/:sid/agents/:id", agentHandler.Get)
		apiV1.POST("/sessions/:sid/agents/:id/input", agentHandler.Input)
		apiV1.POST("/sessions/:sid/agents/:id/abort", agentHandler.Abort)
		apiV1.POST("/sessions/:sid/agents/:id/resume", agentHandler.Resume)
		apiV1.POST("/sessions/:sid/wait", agentHandler.Wait)

		// Live event stream.
		apiV1.GET("/sessions/:sid/events", eventsHandler.Stream)

		// Escalated approval resolution.
		apiV1.POST("/approvals/:call_id", approvalHandler.Resolve)
	}
}
