package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"regtrack/internal/handlers"
	"regtrack/internal/metrics"
	"regtrack/internal/middleware"
)

type Deps struct {
	Handler  *handlers.Handler
	Verifier middleware.TokenVerifier
	Users    middleware.UserResolver
	Limiter  *middleware.TenantRateLimiter
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger), middleware.Instrument(d.Metrics))

	h := d.Handler

	// HEALTHCHECK
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	api.POST("/onboarding", h.Onboard)

	auth := api.Group("/")
	auth.Use(middleware.RequireAuth(d.Verifier, d.Users))
	if d.Limiter != nil {
		auth.Use(d.Limiter.Middleware())
	}

	// TENANT & USERS
	auth.GET("/me", h.Me)
	auth.GET("/tenant", h.GetTenant)
	auth.PATCH("/tenant", h.UpdateTenantSettings)
	auth.PUT("/tenant/status", h.SetTenantStatus)
	auth.GET("/users", h.ListUsers)
	auth.POST("/users", h.InviteUser)
	auth.PUT("/users/:id/role", h.ChangeUserRole)
	auth.GET("/directors", h.ListDirectors)
	auth.POST("/directors", h.AddDirector)
	auth.PUT("/directors/:id/active", h.SetDirectorActive)
	auth.GET("/risk-officers", h.ListRiskOfficers)
	auth.POST("/risk-officers", h.AddRiskOfficer)

	// REGULATORY CATALOG
	auth.GET("/regulations", h.ListRegulations)
	auth.GET("/regulations/:id/sections", h.ListSections)
	auth.GET("/requirements", h.ListRequirements)
	auth.GET("/requirements/:id", h.GetRequirement)

	// COMPLIANCE
	auth.GET("/compliance", h.ListStatuses)
	auth.GET("/compliance/overview", h.ComplianceOverview)
	auth.GET("/compliance/due", h.DueForReview)
	auth.GET("/compliance/modules/:module", h.ModulePct)
	auth.GET("/compliance/requirements/:id", h.GetStatus)
	auth.PUT("/compliance/requirements/:id", h.UpdateStatus)

	// RISKS & CONTROLS
	auth.GET("/risks", h.ListRisks)
	auth.POST("/risks", h.CreateRisk)
	auth.GET("/risks/:id", h.GetRisk)
	auth.PUT("/risks/:id/assessment", h.UpdateRiskAssessment)
	auth.PUT("/risks/:id/status", h.SetRiskStatus)
	auth.GET("/risks/:id/residual", h.ResidualRisk)
	auth.PUT("/risks/:id/controls/:control_id", h.LinkControl)
	auth.DELETE("/risks/:id/controls/:control_id", h.UnlinkControl)
	auth.GET("/controls", h.ListControls)
	auth.POST("/controls", h.CreateControl)
	auth.PUT("/controls/:id/effectiveness", h.SetControlEffectiveness)

	// TASKS
	auth.GET("/tasks", h.ListTasks)
	auth.POST("/tasks", h.CreateTask)
	auth.PUT("/tasks/:id/status", h.SetTaskStatus)
	auth.POST("/tasks/flag-overdue", h.FlagOverdueTasks)

	// OPERATIONAL LEDGER
	auth.GET("/incidents", h.ListIncidents)
	auth.POST("/incidents", h.ReportIncident)
	auth.PUT("/incidents/:id/status", h.AdvanceIncident)
	auth.GET("/vendors", h.ListVendors)
	auth.POST("/vendors", h.CreateVendor)
	auth.PUT("/vendors/:id/status", h.SetVendorStatus)
	auth.GET("/loss-events", h.ListLossEvents)
	auth.POST("/loss-events", h.RecordLossEvent)
	auth.PUT("/loss-events/:id/status", h.SetLossEventStatus)
	auth.GET("/pen-tests", h.ListPenTests)
	auth.POST("/pen-tests", h.RecordPenTest)
	auth.PUT("/pen-tests/:id/status", h.SetPenTestStatus)
	auth.GET("/vuln-scans", h.ListVulnScans)
	auth.POST("/vuln-scans", h.RecordVulnScan)
	auth.GET("/documents", h.ListDocuments)
	auth.POST("/documents", h.CreateDocument)
	auth.PUT("/documents/:id/status", h.SetDocumentStatus)
	auth.GET("/kris", h.ListKRIs)
	auth.POST("/kris", h.CreateKRI)
	auth.POST("/kris/:id/values", h.RecordKRIValue)
	auth.GET("/notifications", h.ListNotifications)

	// BOARD
	auth.GET("/meetings", h.ListMeetings)
	auth.POST("/meetings", h.ScheduleMeeting)
	auth.GET("/meetings/:id", h.GetMeeting)
	auth.POST("/meetings/:id/complete", h.CompleteMeeting)
	auth.POST("/meetings/:id/cancel", h.CancelMeeting)
	auth.POST("/meetings/:id/decisions", h.AddDecision)
	auth.PUT("/decisions/:id/status", h.SetDecisionStatus)
	auth.GET("/meetings/:id/protocol", h.ProtocolStatus)
	auth.POST("/meetings/:id/protocol/request", h.RequestProtocolApprovals)
	auth.POST("/meetings/:id/protocol/approvers", h.AddProtocolApprover)
	auth.PUT("/meetings/:id/protocol/approvers/:director_id", h.SetProtocolApproval)

	// AUDIT & REPORTING
	auth.GET("/audit", h.ListAuditLogs)
	auth.GET("/snapshot", h.Snapshot)

	return r
}
