package routes

import (
	"net/http"
	"time"

	"escrim/app"
	"escrim/controllers"
	"escrim/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	Register(r, controllers.GetSrv(a), a.RDB)
}

func Register(r *gin.Engine, s *controllers.Srv, rdb *redis.Client) {
	logistics := controllers.NewLogisticsController(s)
	medic := controllers.NewMedicController(s)
	patient := controllers.NewPatientController(s)

	// 复用的中间件
	authMW := app.AuthRequired(s.AppSess, s.Repo, s.Log)
	seenMW := app.TouchLastSeen(s.Repo, rdb, 5*time.Minute)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	// ------------------------------
	// 认证（公开）
	// ------------------------------
	auth := r.Group("/auth")
	{
		auth.POST("/login", s.Login)
		auth.POST("/register", s.Register)
		auth.POST("/password", s.ChangePassword)

		auth.POST("/passkey/login/begin", s.BeginPasskeyLogin)
		auth.POST("/passkey/login/finish", s.FinishPasskeyLogin)
	}
	authed := auth.Group("", authMW, seenMW)
	{
		authed.POST("/logout", s.Logout)
		authed.GET("/whoami", s.WhoAmI)
	}

	api := r.Group("/api", authMW, seenMW)

	// 已登录用户绑定 passkey
	passkeys := api.Group("/passkeys")
	{
		passkeys.POST("/begin", s.BeginAddCredential)
		passkeys.POST("/finish", s.FinishAddCredential)
	}

	// ------------------------------
	// 后勤：库存、飞机、事件
	// ------------------------------
	logi := api.Group("/logistics", app.RoleRequired(models.RoleLogistician))
	{
		logi.GET("/medications", logistics.ListMedications)
		logi.POST("/medications", logistics.Restock)
		logi.GET("/medications/low-stock", logistics.LowStock)
		logi.GET("/medications/movements", logistics.ListMovements)
		logi.GET("/aircraft", logistics.ListAircraft)
		logi.POST("/aircraft", logistics.CreateAircraft)
		logi.PUT("/aircraft/:name", logistics.UpdateAircraft)
		logi.POST("/incidents", s.CreateIncident)
	}

	// ------------------------------
	// 医生：事件、处方
	// ------------------------------
	med := api.Group("/medic", app.RoleRequired(models.RoleMedic))
	{
		med.GET("/incidents", medic.ListIncidents)
		med.POST("/incidents", s.CreateIncident)
		med.GET("/prescriptions", medic.ListPrescriptions)
		med.POST("/prescriptions", medic.IssuePrescription)
		med.GET("/options", medic.Options)
	}

	// ------------------------------
	// 伤员：自己的档案
	// ------------------------------
	pat := api.Group("/patient", app.RoleRequired(models.RoleInjured))
	{
		pat.GET("/file", patient.File)
	}
}
