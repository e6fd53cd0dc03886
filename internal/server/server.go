package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/rohitwebstep/synco-sub000/internal/account"
	"github.com/rohitwebstep/synco-sub000/internal/auth"
	"github.com/rohitwebstep/synco-sub000/internal/booking"
	"github.com/rohitwebstep/synco-sub000/internal/class"
	"github.com/rohitwebstep/synco-sub000/internal/config"
	"github.com/rohitwebstep/synco-sub000/internal/email"
	"github.com/rohitwebstep/synco-sub000/internal/payment"
	"github.com/rohitwebstep/synco-sub000/internal/plan"
	"github.com/rohitwebstep/synco-sub000/internal/venue"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	email  *email.Service
}

func New(db *sqlx.DB, cfg *config.Config, emailService *email.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(50, 100))

	accountHandler := account.NewHandler(db, cfg.JWTSecret, cfg.ParentDefaultPassword)
	venueHandler := venue.NewHandler(db)
	classHandler := class.NewHandler(db)
	planHandler := plan.NewHandler(db)

	bookingService := booking.NewService(
		db,
		booking.NewRepository(db),
		class.NewRepository(db),
		venue.NewRepository(db),
		plan.NewRepository(db),
		account.NewRepository(db, cfg.ParentDefaultPassword),
		payment.NewRepository(db),
		payment.NewRRNClient(cfg.RRNBaseURL, cfg.RRNAccessToken),
		payment.NewCardClient(cfg.CardBaseURL, cfg.CardInstID, cfg.CardAPIUser, cfg.CardAPIPass),
	)
	bookingHandler := booking.NewHandler(bookingService, emailService)

	public := router.Group("/auth")
	{
		public.POST("/login", accountHandler.Login)
		public.POST("/refresh", accountHandler.RefreshToken)
	}

	// Self-service creation flows. Unauthenticated bookings with
	// source=open get a parent account provisioned on the fly.
	open := router.Group("/open")
	open.Use(booking.ForceOpenSource())
	{
		open.POST("/bookings/free-trial", bookingHandler.CreateFreeTrial)
		open.POST("/bookings/membership", bookingHandler.CreateMembership)
		open.POST("/bookings/waiting-list", bookingHandler.CreateWaitingList)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", accountHandler.GetMe)

		protected.GET("/venues", venueHandler.ListVenues)
		protected.GET("/venues/:venueID", venueHandler.GetVenue)
		protected.GET("/venues/:venueID/classes", classHandler.ListSchedules)
		protected.GET("/classes/:classID", classHandler.GetSchedule)
		protected.GET("/plans", planHandler.ListPlans)
		protected.GET("/plans/:planID", planHandler.GetPlan)

		protected.POST("/bookings/free-trial", bookingHandler.CreateFreeTrial)
		protected.POST("/bookings/membership", bookingHandler.CreateMembership)
		protected.POST("/bookings/waiting-list", bookingHandler.CreateWaitingList)
		protected.GET("/bookings", bookingHandler.List)

		protected.POST("/bookings/:id/cancel", bookingHandler.Cancel)
		protected.POST("/bookings/:id/retry-payment", bookingHandler.RetryPayment)
		protected.GET("/bookings/:id/payments", bookingHandler.PaymentHistory)
		protected.POST("/bookings/:id/convert", bookingHandler.Convert)
		protected.PATCH("/bookings/:id/transfer", bookingHandler.Transfer)
		protected.PATCH("/bookings/:id/freeze", bookingHandler.Freeze)
		protected.PATCH("/bookings/:id/reactivate", bookingHandler.Reactivate)
		protected.PATCH("/bookings/:id/attendance", bookingHandler.MarkAttendance)
		protected.PATCH("/bookings/:id/students", bookingHandler.UpdateStudents)
		protected.DELETE("/bookings/:id/waiting-list", bookingHandler.RemoveFromWaitingList)
	}

	adminMiddleware := auth.RequireRole("admin")
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.POST("/accounts", accountHandler.Register)
		admin.POST("/venues", venueHandler.CreateVenue)
		admin.POST("/classes", classHandler.CreateSchedule)
		admin.POST("/plans", planHandler.CreatePlan)
		admin.GET("/bookings/due-cancellations", bookingHandler.DueCancellations)
		admin.POST("/bookings/run-due-cancellations", bookingHandler.RunDueCancellations)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	router.GET("/test-email", TestEmail(emailService))

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		email:  emailService,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:         ":" + port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
