package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classpal-api/internal/middleware"
)

// Router bundles the handlers and guards mounted on the engine.
type Router struct {
	Tokens  middleware.TokenValidator
	Members middleware.MemberResolver

	Classes     *ClassHandler
	Duties      *DutyHandler
	Events      *EventHandler
	Assets      *AssetHandler
	Funds       *FundHandler
	Dashboard   *DashboardHandler
	Attachments *AttachmentHandler
	Metrics     *MetricsHandler
}

// Register mounts ops endpoints at the root and the API under prefix.
func (r Router) Register(engine *gin.Engine, prefix string) {
	engine.GET("/health", r.Metrics.Health)
	engine.GET("/ready", r.Metrics.Ready)
	engine.GET("/metrics", r.Metrics.Prometheus)

	api := engine.Group(prefix, middleware.WithResponseMeta())
	api.GET("/attachments", middleware.OptionalJWT(r.Tokens), r.Attachments.Download)

	authed := api.Group("", middleware.JWT(r.Tokens))
	authed.GET("/me", r.Classes.Me)
	authed.GET("/classes", r.Classes.List)

	class := authed.Group("/classes/:classId", middleware.ClassScope(r.Members))
	class.GET("/members", r.Classes.Members)
	class.GET("/dashboard", r.Dashboard.Overview)

	class.GET("/duties", r.Duties.List)
	class.POST("/duties", r.Duties.Create)
	class.POST("/duties/:dutyId/proof", r.Duties.SubmitProof)
	class.POST("/duties/:dutyId/approve", r.Duties.Approve)
	class.POST("/duties/:dutyId/reject", r.Duties.Reject)
	class.GET("/leaderboard", r.Duties.Leaderboard)

	class.GET("/events", r.Events.List)
	class.POST("/events", r.Events.Create)
	class.POST("/events/:eventId/responses", r.Events.Respond)
	class.POST("/events/:eventId/close", r.Events.Close)
	class.POST("/events/:eventId/ping", r.Events.Ping)
	class.GET("/events/:eventId/checkin-code", r.Events.CheckInCode)
	class.POST("/events/:eventId/checkin", r.Events.CheckIn)
	class.GET("/events/:eventId/attendance", r.Events.Attendance)

	class.GET("/assets", r.Assets.List)
	class.POST("/assets", r.Assets.Create)
	class.GET("/assets/audit", r.Assets.AuditLog)
	class.POST("/assets/:assetId/borrow", r.Assets.Borrow)
	class.POST("/assets/:assetId/return", r.Assets.Return)

	funds := class.Group("/funds")
	funds.GET("/transactions", r.Funds.ListTransactions)
	funds.POST("/transactions", r.Funds.RecordTransaction)
	funds.GET("/categories", r.Funds.Categories)
	funds.GET("/summary", r.Funds.Summary)
	funds.POST("/reconcile", r.Funds.Reconcile)
	funds.GET("/export", r.Funds.Export)
	funds.GET("/debts", r.Funds.ListDebts)
	funds.POST("/debts", r.Funds.CreateDebt)
	funds.POST("/debts/:debtId/settle", r.Funds.SettleDebt)

	class.POST("/attachments", r.Attachments.Upload)
	class.GET("/attachments/url", r.Attachments.SignURL)
}
