package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/gigbridge/gigbridge-backend/internal/config"
	"github.com/gigbridge/gigbridge-backend/internal/db"
	"github.com/gigbridge/gigbridge-backend/internal/handlers"
	"github.com/gigbridge/gigbridge-backend/internal/middleware"
	"github.com/gigbridge/gigbridge-backend/internal/models"
	"github.com/gigbridge/gigbridge-backend/internal/realtime"
	"github.com/gigbridge/gigbridge-backend/internal/services/bids"
	"github.com/gigbridge/gigbridge-backend/internal/services/jobs"
	"github.com/gigbridge/gigbridge-backend/internal/services/notify"
	"github.com/gigbridge/gigbridge-backend/internal/services/payments"
	"github.com/gigbridge/gigbridge-backend/internal/services/razorpay"
)

func main() {
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.Bid{},
		&models.Payment{},
	); err != nil {
		logrus.Fatal(err)
	}

	rdb := realtime.NewRedis()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.Fatal("redis not reachable: ", err)
	}

	hub := realtime.NewHub()
	go hub.Run()

	bridge := realtime.NewBridge(rdb, hub)
	go bridge.Run(context.Background())

	var notifier notify.Sender = notify.LogSender{}
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}

	gateway := razorpay.NewRazorpayService(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)

	jobService := jobs.NewJobService(gdb)
	bidService := bids.NewBidService(gdb, jobService)
	paymentService := payments.NewPaymentService(gdb, gateway, jobService, notifier)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	jobH := handlers.NewJobHandler(jobService)
	bidH := handlers.NewBidHandler(bidService)
	paymentH := handlers.NewPaymentHandler(paymentService)
	chatH := handlers.NewChatRelayHandler(gdb, hub, bridge, cfg.JWTSecret)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/jobs", jobH.ListJobs)

	// gateway callback, authenticated by its signature header only
	api.Post("/payments/webhook", paymentH.HandleWebhook)

	// protected (JWT cookie)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/jobs/mine",
		middleware.RequireRoles(models.RoleJobProvider),
		jobH.ListMine,
	)
	protected.Post("/jobs",
		middleware.RequireRoles(models.RoleJobProvider),
		jobH.CreateJob,
	)
	protected.Get("/jobs/:id", jobH.GetJob)
	protected.Put("/jobs/:id",
		middleware.RequireRoles(models.RoleJobProvider),
		jobH.UpdateJob,
	)
	protected.Delete("/jobs/:id",
		middleware.RequireRoles(models.RoleJobProvider),
		jobH.DeleteJob,
	)

	protected.Post("/jobs/:id/bids",
		middleware.RequireRoles(models.RoleFreelancer),
		bidH.PlaceBid,
	)
	protected.Get("/jobs/:id/bids", bidH.GetJobBids)
	protected.Get("/bids/mine",
		middleware.RequireRoles(models.RoleFreelancer),
		bidH.GetMyBids,
	)
	protected.Patch("/bids/:id/accept",
		middleware.RequireRoles(models.RoleJobProvider),
		bidH.AcceptBid,
	)
	protected.Patch("/bids/:id/reject",
		middleware.RequireRoles(models.RoleJobProvider),
		bidH.RejectBid,
	)
	protected.Delete("/bids/:id",
		middleware.RequireRoles(models.RoleFreelancer),
		bidH.DeleteBid,
	)

	protected.Post("/payments/intent",
		middleware.RequireRoles(models.RoleJobProvider),
		paymentH.CreateIntent,
	)
	protected.Post("/payments/verify", paymentH.VerifyPayment)
	protected.Get("/payments/history", paymentH.GetHistory)

	// WebSocket relay (token via query param, the upgrade skips cookies)
	app.Get("/ws/chat", websocket.New(chatH.WebSocketHandler))

	logrus.Fatal(app.Listen(":" + cfg.AppPort))
}
