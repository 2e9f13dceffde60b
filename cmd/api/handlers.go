package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wms-platform/roadmap-service/internal/application"
	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/idempotency"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
	"github.com/wms-platform/roadmap-service/pkg/middleware"
)

// services bundles the application services behind the HTTP API
type services struct {
	roadmaps   *application.RoadmapService
	generation *application.GenerationService
	monitoring *application.MonitoringService
	directory  *application.DirectoryService
}

func registerValidators() {
	actions := make([]string, 0, len(domain.StageActions()))
	for _, a := range domain.StageActions() {
		actions = append(actions, string(a))
	}
	middleware.RegisterEnum("stage_action", actions...)

	strategies := make([]string, 0, len(domain.StrategyTypes()))
	for _, s := range domain.StrategyTypes() {
		strategies = append(strategies, string(s))
	}
	middleware.RegisterEnum("strategy", strategies...)
}

// newRouter builds the gin engine with the standard middleware chain and
// every API route. m may be nil; without keys Idempotency-Key is ignored.
func newRouter(svc *services, logger *logging.Logger, m *metrics.Metrics, keys idempotency.Store, elevatedRoles []string, ready func() error) *gin.Engine {
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger)
	if len(elevatedRoles) > 0 {
		middlewareConfig.ElevatedRoles = elevatedRoles
	}
	middleware.Setup(router, middlewareConfig)
	registerValidators()

	if m != nil {
		router.Use(middleware.HTTPMetrics(m))
	}
	router.Use(middleware.Tracing(serviceName))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, ready))
	if m != nil {
		router.GET("/metrics", middleware.MetricsHandler(m))
	}

	apiV1 := router.Group("/api/v1")
	if keys != nil {
		apiV1.Use(idempotency.Middleware(idempotency.Config{Store: keys, Logger: logger, Metrics: m}))
	}

	templates := apiV1.Group("/templates")
	{
		templates.POST("", createTemplateHandler(svc.roadmaps, logger))
		templates.GET("", listTemplatesHandler(svc.roadmaps, logger))
		templates.GET("/:templateId", getTemplateHandler(svc.roadmaps, logger))
	}

	projects := apiV1.Group("/projects")
	{
		projects.POST("", createProjectHandler(svc.roadmaps, logger))
		projects.GET("/:projectId", getProjectHandler(svc.roadmaps, logger))
		projects.GET("/:projectId/tasks", listProjectTasksHandler(svc.generation, logger))
	}

	apiV1.POST("/roadmaps", instantiateRoadmapHandler(svc.roadmaps, logger))
	apiV1.GET("/roadmaps/:roadmapId", getRoadmapHandler(svc.roadmaps, logger))

	stages := apiV1.Group("/stages/:stageId")
	{
		stages.POST("/transitions", transitionHandler(svc.roadmaps, logger))
		stages.GET("/can-act", canActHandler(svc.roadmaps, logger))
	}

	generations := apiV1.Group("/generations")
	{
		generations.POST("", generateHandler(svc.generation, logger))
		generations.GET("/stats", generationStatsHandler(svc.generation, logger))
	}

	monitoring := apiV1.Group("/monitoring")
	{
		monitoring.GET("/sla-risks", slaRisksHandler(svc.monitoring, logger))
		monitoring.GET("/aging", stageAgingHandler(svc.monitoring, logger))
		monitoring.GET("/throughput", throughputHandler(svc.monitoring, logger))
	}

	employees := apiV1.Group("/employees")
	{
		employees.POST("", upsertEmployeeHandler(svc.directory, logger))
		employees.PUT("/:employeeId/availability/:day", recordAvailabilityHandler(svc.directory, logger))
	}

	return router
}

type stepRequest struct {
	Title         string   `json:"title" binding:"required"`
	Description   string   `json:"description"`
	RequiredRole  string   `json:"requiredRole"`
	SLAUnitsHours float64  `json:"slaUnitsHours" binding:"gte=0"`
	Dependencies  []int    `json:"dependencies"`
	EntryCriteria []string `json:"entryCriteria"`
	ExitCriteria  []string `json:"exitCriteria"`
	KPIs          []string `json:"kpis"`
}

func createTemplateHandler(service *application.RoadmapService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req struct {
			TemplateID string        `json:"templateId" binding:"required,identifier"`
			Name       string        `json:"name" binding:"required"`
			Category   string        `json:"category"`
			Steps      []stepRequest `json:"steps" binding:"required,min=1,dive"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, attribute.String("roadmap.template.id", req.TemplateID))

		steps := make([]domain.StepDefinition, len(req.Steps))
		for i, s := range req.Steps {
			steps[i] = domain.StepDefinition{
				Title:         s.Title,
				Description:   s.Description,
				RequiredRole:  s.RequiredRole,
				SLAHours:      s.SLAUnitsHours,
				Dependencies:  s.Dependencies,
				EntryCriteria: s.EntryCriteria,
				ExitCriteria:  s.ExitCriteria,
				KPIs:          s.KPIs,
			}
		}

		tmpl, err := service.CreateTemplate(c.Request.Context(), application.CreateTemplateCommand{
			TemplateID: req.TemplateID,
			Name:       req.Name,
			Category:   req.Category,
			Steps:      steps,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, tmpl)
	}
}

func getTemplateHandler(service *application.RoadmapService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		tmpl, err := service.GetTemplate(c.Request.Context(), c.Param("templateId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, tmpl)
	}
}

func listTemplatesHandler(service *application.RoadmapService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		templates, err := service.ListTemplates(c.Request.Context())
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, templates)
	}
}

func createProjectHandler(service *application.RoadmapService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req struct {
			ProjectID           string `json:"projectId" binding:"required,identifier"`
			Name                string `json:"name"`
			Quantity            int    `json:"quantity" binding:"required,min=1,max=10000"`
			StartDate           string `json:"startDate" binding:"required,iso_date"`
			NamingPattern       string `json:"namingPattern"`
			DescriptionTemplate string `json:"descriptionTemplate"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		startDate, _ := time.Parse(time.DateOnly, req.StartDate)

		project, err := service.CreateProject(c.Request.Context(), application.CreateProjectCommand{
			ProjectID:           req.ProjectID,
			Name:                req.Name,
			Quantity:            req.Quantity,
			StartDate:           startDate,
			NamingPattern:       req.NamingPattern,
			DescriptionTemplate: req.DescriptionTemplate,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, project)
	}
}

func getProjectHandler(service *application.RoadmapService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		project, err := service.GetProject(c.Request.Context(), c.Param("projectId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, project)
	}
}

func instantiateRoadmapHandler(service *application.RoadmapService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req struct {
			ProjectID      string `json:"projectId" binding:"required"`
			TemplateID     string `json:"templateId" binding:"required"`
			Name           string `json:"name"`
			HoldFirstStage bool   `json:"holdFirstStage"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c,
			attribute.String("roadmap.project.id", req.ProjectID),
			attribute.String("roadmap.template.id", req.TemplateID),
		)

		roadmap, err := service.InstantiateRoadmap(c.Request.Context(), application.InstantiateRoadmapCommand{
			ProjectID:      req.ProjectID,
			TemplateID:     req.TemplateID,
			Name:           req.Name,
			HoldFirstStage: req.HoldFirstStage,
			ActorID:        middleware.GetActor(c).ID,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusCreated, roadmap)
	}
}

func getRoadmapHandler(service *application.RoadmapService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		roadmapID := c.Param("roadmapId")
		middleware.AddSpanAttributes(c, attribute.String("roadmap.id", roadmapID))

		roadmap, err := service.GetRoadmapWithMetrics(c.Request.Context(), roadmapID)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, roadmap)
	}
}

// requestActor resolves the acting operator. The header identity wins; a
// body actorId is only used when no header was sent and is never elevated.
func requestActor(c *gin.Context, bodyActorID string) *domain.Actor {
	info := middleware.GetActor(c)
	switch {
	case info.ID != "":
		return &domain.Actor{ID: info.ID, Elevated: info.Elevated}
	case bodyActorID != "":
		return &domain.Actor{ID: bodyActorID}
	default:
		return nil
	}
}

func transitionHandler(service *application.RoadmapService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		stageID := c.Param("stageId")
		var req struct {
			Action     string `json:"action" binding:"required,stage_action"`
			ActorID    string `json:"actorId"`
			Reason     string `json:"reason"`
			EmployeeID string `json:"employeeId"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c,
			attribute.String("roadmap.stage.id", stageID),
			attribute.String("roadmap.stage.action", req.Action),
		)

		stage, err := service.Transition(c.Request.Context(), application.TransitionCommand{
			StageID:    stageID,
			Action:     domain.StageAction(req.Action),
			Actor:      requestActor(c, req.ActorID),
			Reason:     req.Reason,
			EmployeeID: req.EmployeeID,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, stage)
	}
}

func canActHandler(service *application.RoadmapService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var query struct {
			ActorID string `form:"actorId"`
			Action  string `form:"action" binding:"required,stage_action"`
		}
		if appErr := middleware.BindQuery(c, &query); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		// elevation only carries over when the header names the same actor
		actor := domain.Actor{ID: query.ActorID}
		if info := middleware.GetActor(c); info.ID != "" && (query.ActorID == "" || info.ID == query.ActorID) {
			actor = domain.Actor{ID: info.ID, Elevated: info.Elevated}
		}

		result, err := service.CanAct(c.Request.Context(), application.CanActQuery{
			StageID: c.Param("stageId"),
			Actor:   actor,
			Action:  domain.StageAction(query.Action),
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func generateHandler(service *application.GenerationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req struct {
			ProjectID   string `json:"projectId" binding:"required"`
			RoadmapID   string `json:"roadmapId" binding:"required"`
			Strategy    string `json:"strategy" binding:"required,strategy"`
			GeneratedBy string `json:"generatedBy"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		generatedBy := req.GeneratedBy
		if generatedBy == "" {
			generatedBy = middleware.GetActor(c).ID
		}

		result, err := service.Generate(c.Request.Context(), application.GenerateCommand{
			ProjectID:   req.ProjectID,
			RoadmapID:   req.RoadmapID,
			Strategy:    domain.StrategyType(req.Strategy),
			GeneratedBy: generatedBy,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		status := http.StatusCreated
		if result.Summary.Duplicate {
			status = http.StatusOK
		}
		c.JSON(status, result)
	}
}

func generationStatsHandler(service *application.GenerationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		recent := application.DefaultRecentGenerations
		if raw := c.Query("recent"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 || n > 100 {
				responder.RespondValidationError("invalid query", map[string]string{"recent": "must be an integer between 0 and 100"})
				return
			}
			recent = n
		}

		stats, err := service.GetGenerationStats(c.Request.Context(), recent)
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

func listProjectTasksHandler(service *application.GenerationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		tasks, err := service.ListProjectTasks(c.Request.Context(), c.Param("projectId"))
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, tasks)
	}
}

func slaRisksHandler(service *application.MonitoringService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		risks, err := service.GetSLARisks(c.Request.Context())
		if err != nil {
			middleware.NewErrorResponder(c, logger).RespondWithError(err)
			return
		}
		c.JSON(http.StatusOK, risks)
	}
}

func stageAgingHandler(service *application.MonitoringService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		aging, err := service.GetStageAging(c.Request.Context())
		if err != nil {
			middleware.NewErrorResponder(c, logger).RespondWithError(err)
			return
		}
		c.JSON(http.StatusOK, aging)
	}
}

func throughputHandler(service *application.MonitoringService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		throughput, err := service.GetStageThroughput(c.Request.Context())
		if err != nil {
			middleware.NewErrorResponder(c, logger).RespondWithError(err)
			return
		}
		c.JSON(http.StatusOK, throughput)
	}
}

func upsertEmployeeHandler(service *application.DirectoryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req struct {
			EmployeeID string `json:"employeeId" binding:"required,identifier"`
			Name       string `json:"name"`
			Role       string `json:"role" binding:"required"`
			Active     *bool  `json:"active"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		active := true
		if req.Active != nil {
			active = *req.Active
		}

		employee, err := service.UpsertEmployee(c.Request.Context(), application.UpsertEmployeeCommand{
			EmployeeID: req.EmployeeID,
			Name:       req.Name,
			Role:       req.Role,
			Active:     active,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, employee)
	}
}

func recordAvailabilityHandler(service *application.DirectoryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger)

		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		record, err := service.RecordAvailability(c.Request.Context(), application.RecordAvailabilityCommand{
			EmployeeID: c.Param("employeeId"),
			Day:        c.Param("day"),
			Status:     req.Status,
		})
		if err != nil {
			responder.RespondWithError(err)
			return
		}

		c.JSON(http.StatusOK, record)
	}
}
