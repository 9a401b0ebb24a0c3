package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/scmsdev/scms-app/controllers"
	"github.com/scmsdev/scms-app/events"
	"github.com/scmsdev/scms-app/middlewares"
	"github.com/scmsdev/scms-app/models"
	"github.com/scmsdev/scms-app/services"
)

func SetupRouter(db *gorm.DB) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	// Lifecycle engine with the gorm-backed counter; hooks fan out to the
	// notification table and the websocket feed after each commit.
	seq := services.NewSequenceService(services.GormCounterStore{})
	crSvc := services.NewChangeRequestService(db, seq)
	crSvc.AddHook(services.NotificationHook(db))
	crSvc.AddHook(func(action string, cr *models.ChangeRequest, _ services.Actor) {
		events.BroadcastChangeRequest(action, cr)
	})

	userCtrl := controllers.NewUserController(db)
	crCtrl := controllers.NewChangeRequestController(db, crSvc)
	notificationCtrl := controllers.NewNotificationController(db)
	adminCtrl := controllers.NewAdminController(db)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())
	{
		auth.GET("/profile", userCtrl.GetProfile)
		auth.POST("/logout", userCtrl.Logout)

		// Change request lifecycle. Approve/reject carry no role middleware;
		// the engine answers 403 itself so a wrong-state call by an approver
		// still gets the transition error it deserves.
		crs := auth.Group("/change-requests")
		{
			crs.POST("", middlewares.RequireDeveloperRole(), crCtrl.Create)
			crs.GET("", crCtrl.List)
			crs.GET("/:id", crCtrl.Get)
			crs.PUT("/:id", middlewares.RequireDeveloperRole(), crCtrl.Update)
			crs.PUT("/:id/submit", middlewares.RequireDeveloperRole(), crCtrl.Submit)
			crs.PUT("/:id/approve", crCtrl.Approve)
			crs.PUT("/:id/reject", crCtrl.Reject)
			crs.DELETE("/:id", middlewares.RequireDeveloperRole(), crCtrl.Delete)
		}

		auth.GET("/notifications", notificationCtrl.GetAllNotifications)
		auth.PATCH("/notifications/:notif_id/read", notificationCtrl.MarkNotificationRead)
		auth.DELETE("/notifications/:notif_id", notificationCtrl.DeleteNotification)

		// Websocket feed (token via query param, same middleware).
		auth.GET("/ws", controllers.EventsHandler)

		admin := auth.Group("/admin")
		admin.Use(middlewares.RequireAdminRole())
		{
			admin.GET("/users", adminCtrl.GetAllUsers)
			admin.GET("/users/:id", adminCtrl.GetUser)
			admin.POST("/users", adminCtrl.CreateUser)
			admin.PUT("/users/:id", adminCtrl.UpdateUser)
			admin.DELETE("/users/:id", adminCtrl.DeleteUser)
			admin.GET("/statistics", adminCtrl.GetStatistics)
			admin.GET("/change-requests", adminCtrl.GetAllChangeRequests)
		}
	}

	return r
}
