package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/agriquest/agriquest-api/internal/middleware"
	"github.com/agriquest/agriquest-api/internal/models"
	"github.com/agriquest/agriquest-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Subject      *SubjectHandler
	Invitation   *InvitationHandler
	Enrollment   *EnrollmentHandler
	Quiz         *QuizHandler
	Result       *ResultHandler
	Notification *NotificationHandler
	Weakness     *WeaknessHandler
	Dashboard    *DashboardHandler
	Metrics      *MetricsHandler
}

// RegisterRoutes mounts all API routes on the engine. Authorization is
// enforced twice: coarse role gates here, fine-grained ownership checks in
// the services.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, authService *service.AuthService) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	if prefix == "" {
		prefix = "/api/v1"
	}
	v1 := r.Group(prefix)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.User.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/forgot-password", h.Auth.ForgotPassword)
		auth.POST("/reset-password", h.Auth.ResetPassword)

		authed := auth.Group("", middleware.JWT(authService))
		authed.POST("/logout", h.Auth.Logout)
		authed.POST("/change-password", h.Auth.ChangePassword)
	}

	api := v1.Group("", middleware.JWT(authService))

	users := api.Group("/users")
	{
		users.GET("/me", h.User.Me)
		users.PUT("/me", h.User.UpdateProfile)

		admin := users.Group("", middleware.RequireRoles(models.RoleAdmin))
		admin.POST("", h.User.Create)
		admin.GET("", h.User.List)
		admin.GET("/teachers", h.User.Teachers)
		admin.PUT("/:id/active", h.User.SetActive)
		admin.PUT("/:id/role", h.User.UpdateRole)

		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), h.User.Get)
	}

	subjects := api.Group("/subjects")
	{
		subjects.GET("", h.Subject.List)
		subjects.GET("/mine", h.Subject.Mine)
		subjects.GET("/:id", h.Subject.Get)
		subjects.GET("/:id/quizzes", h.Quiz.BySubject)
		subjects.GET("/:id/students", h.Enrollment.Students)
		subjects.GET("/:id/weaknesses", h.Weakness.BySubject)

		admin := subjects.Group("", middleware.RequireRoles(models.RoleAdmin))
		admin.POST("", h.Subject.Create)
		admin.PUT("/:id", h.Subject.Update)
		admin.DELETE("/:id", h.Subject.Delete)
		admin.GET("/:id/invitations", h.Invitation.BySubject)

		subjects.DELETE("/:id/students/:studentId",
			middleware.RequireRoles(models.RoleTeacher), h.Enrollment.RemoveStudent)
	}

	invitations := api.Group("/invitations")
	{
		invitations.POST("", middleware.RequireRoles(models.RoleAdmin), h.Invitation.Invite)
		invitations.GET("", middleware.RequireRoles(models.RoleAdmin), h.Invitation.List)
		invitations.GET("/pending", middleware.RequireRoles(models.RoleTeacher), h.Invitation.Pending)
		invitations.POST("/respond", middleware.RequireRoles(models.RoleTeacher), h.Invitation.Respond)
	}

	enrollments := api.Group("/enrollments")
	{
		enrollments.POST("", middleware.RequireRoles(models.RoleStudent), h.Enrollment.Request)
		enrollments.GET("", middleware.RequireRoles(models.RoleAdmin), h.Enrollment.List)
		enrollments.GET("/mine", middleware.RequireRoles(models.RoleStudent), h.Enrollment.Mine)
		enrollments.GET("/pending", middleware.RequireRoles(models.RoleTeacher), h.Enrollment.Pending)
		enrollments.POST("/decide", middleware.RequireRoles(models.RoleTeacher), h.Enrollment.Decide)
		enrollments.DELETE("/:id", middleware.RequireRoles(models.RoleStudent), h.Enrollment.Withdraw)
	}

	quizzes := api.Group("/quizzes")
	{
		teacher := quizzes.Group("", middleware.RequireRoles(models.RoleTeacher))
		teacher.POST("", h.Quiz.Create)
		teacher.GET("/mine", h.Quiz.Mine)
		teacher.PUT("/:id", h.Quiz.Update)
		teacher.DELETE("/:id", h.Quiz.Delete)
		teacher.POST("/:id/questions", h.Quiz.AddQuestion)
		teacher.GET("/:id/questions", h.Quiz.Questions)
		teacher.PUT("/:id/questions/:questionId", h.Quiz.UpdateQuestion)
		teacher.DELETE("/:id/questions/:questionId", h.Quiz.DeleteQuestion)

		student := quizzes.Group("", middleware.RequireRoles(models.RoleStudent))
		student.GET("/:id/take", h.Quiz.Take)
		student.POST("/:id/submit", h.Quiz.Submit)

		staff := quizzes.Group("", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
		staff.GET("/:id/results", h.Quiz.Results)
		staff.GET("/:id/results/export", h.Result.Export)
	}

	results := api.Group("/results", middleware.RequireRoles(models.RoleStudent))
	{
		results.GET("/mine", h.Result.History)
		results.GET("/analytics", h.Result.Analytics)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.Notification.List)
		notifications.GET("/recent", h.Notification.Recent)
		notifications.GET("/unread-count", h.Notification.UnreadCount)
		notifications.PUT("/read-all", h.Notification.MarkAllRead)
		notifications.PUT("/:id/read", h.Notification.MarkRead)
		notifications.DELETE("/:id", h.Notification.Delete)
	}

	weaknesses := api.Group("/weaknesses")
	{
		weaknesses.GET("/types", h.Weakness.Types)
		weaknesses.GET("/stats", middleware.RequireRoles(models.RoleStudent), h.Weakness.Stats)
		weaknesses.GET("/mine", middleware.RequireRoles(models.RoleStudent), h.Weakness.Mine)
		weaknesses.POST("", middleware.RequireRoles(models.RoleStudent), h.Weakness.Report)
		weaknesses.DELETE("/:id", middleware.RequireRoles(models.RoleStudent), h.Weakness.Delete)
	}

	api.GET("/dashboard", middleware.RequireRoles(models.RoleAdmin), h.Dashboard.Overview)
}
