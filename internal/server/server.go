package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"projecthub-backend/internal/auth"
	"projecthub-backend/internal/config"
	"projecthub-backend/internal/handler"
	"projecthub-backend/internal/middleware"
	"projecthub-backend/internal/model"
	"projecthub-backend/internal/presence"
	"projecthub-backend/internal/realtime"
	"projecthub-backend/internal/service"
	"projecthub-backend/internal/storage"
	"projecthub-backend/internal/store"
)

// Server wires the Fiber app, REST handlers, and the realtime router.
type Server struct {
	app *fiber.App
	cfg *config.Config
	db  *gorm.DB

	jwtManager    *auth.JWTManager
	memberService *service.MemberService
	projectMW     *middleware.ProjectMiddleware

	registry realtime.Registry
	router   *realtime.Router
	presence *presence.Manager

	authHandler       *handler.AuthHandler
	projectHandler    *handler.ProjectHandler
	chatHandler       *handler.ChatHandler
	whiteboardHandler *handler.WhiteboardHandler
	storageHandler    *handler.StorageHandler
	healthHandler     *handler.HealthHandler
}

// New builds the server and all its collaborators. pm may be nil when
// Redis is unavailable; presence then degrades to OFFLINE everywhere.
func New(cfg *config.Config, db *gorm.DB, pm *presence.Manager) *Server {
	app := fiber.New(fiber.Config{
		AppName:         "ProjectHub Collaboration API",
		ServerHeader:    "Fiber",
		StrictRouting:   true,
		CaseSensitive:   true,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		Prefork:         false, // incompatible with websocket sessions
		ReadBufferSize:  16384,
		WriteBufferSize: 16384,
		BodyLimit:       10 * 1024 * 1024,
	})

	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	memberService := service.NewMemberService(db)

	chatStore := store.NewGormChatStore(db)
	boardStore := store.NewGormWhiteboardStore(db)

	registry := realtime.NewInMemoryRegistry()
	router := realtime.NewRouter(registry, chatStore, boardStore, pm, memberService, cfg.WebSocket.MaxChatLength)

	var s3Service *storage.S3Service
	if cfg.S3.BucketName != "" && cfg.S3.AccessKeyID != "" {
		var err error
		s3Service, err = storage.NewS3Service(context.Background(), cfg)
		if err != nil {
			log.Printf("[Server] S3 init failed: %v (attachments disabled)", err)
		} else {
			log.Printf("[Server] S3 ready (bucket: %s)", cfg.S3.BucketName)
		}
	} else {
		log.Println("[Server] S3 not configured (attachments disabled)")
	}

	return &Server{
		app:               app,
		cfg:               cfg,
		db:                db,
		jwtManager:        jwtManager,
		memberService:     memberService,
		projectMW:         middleware.NewProjectMiddleware(memberService),
		registry:          registry,
		router:            router,
		presence:          pm,
		authHandler:       handler.NewAuthHandler(db, jwtManager, cfg.Auth.SecureCookie),
		projectHandler:    handler.NewProjectHandler(db, pm),
		chatHandler:       handler.NewChatHandler(db, chatStore),
		whiteboardHandler: handler.NewWhiteboardHandler(db, boardStore),
		storageHandler:    handler.NewStorageHandler(s3Service),
		healthHandler:     handler.NewHealthHandler(db, pm),
	}
}

// SetupMiddleware installs the global middleware chain.
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes registers REST routes and the websocket endpoint.
func (s *Server) SetupRoutes() {
	s.app.Get("/health", s.healthHandler.Check)

	// brute force protection on credential endpoints
	authLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	authGroup := s.app.Group("/auth")
	authGroup.Post("/register", authLimiter, s.authHandler.Register)
	authGroup.Post("/login", authLimiter, s.authHandler.Login)
	authGroup.Post("/refresh", authLimiter, s.authHandler.RefreshToken)
	authGroup.Post("/logout", auth.AuthMiddleware(s.jwtManager), s.authHandler.Logout)
	authGroup.Get("/me", auth.AuthMiddleware(s.jwtManager), s.authHandler.GetMe)

	projects := s.app.Group("/api/projects", auth.AuthMiddleware(s.jwtManager))
	projects.Post("/", s.projectHandler.CreateProject)
	projects.Get("/", s.projectHandler.GetMyProjects)

	project := projects.Group("/:projectId", s.projectMW.RequireMembership())
	project.Get("/", s.projectHandler.GetProject)
	project.Get("/members", s.projectHandler.GetMembers)
	project.Post("/members", s.projectMW.RequireOwnership(), s.projectHandler.AddMembers)
	project.Delete("/leave", s.projectHandler.LeaveProject)

	project.Get("/chatrooms", s.chatHandler.ListChatRooms)
	project.Post("/chatrooms", s.chatHandler.CreateChatRoom)
	project.Get("/chatrooms/:chatId/messages", s.chatHandler.GetMessages)

	project.Get("/whiteboards", s.whiteboardHandler.ListWhiteboards)
	project.Post("/whiteboards", s.whiteboardHandler.CreateWhiteboard)
	project.Get("/whiteboards/:whiteboardId/elements", s.whiteboardHandler.GetElements)

	project.Post("/attachments/presign", s.storageHandler.PresignUpload)
	project.Post("/attachments/confirm", s.storageHandler.ConfirmUpload)
	project.Get("/attachments/download", s.storageHandler.PresignDownload)
	project.Delete("/attachments", s.storageHandler.DeleteAttachment)

	s.setupWebSocket()
}

// setupWebSocket registers the collaboration endpoint. Auth and project
// membership are verified before the upgrade so a rejected client gets an
// HTTP status, never a connected-then-closed session.
func (s *Server) setupWebSocket() {
	s.app.Get("/ws/collab/:projectId", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := auth.TokenFromRequest(c)
		if token == "" {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		claims, err := s.jwtManager.ValidateAccessToken(token)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		var user model.User
		if err := s.db.Select("is_active").First(&user, claims.UserID).Error; err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		if !user.IsActive {
			return c.SendStatus(fiber.StatusForbidden)
		}

		projectID, err := c.ParamsInt("projectId")
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		if !s.memberService.IsProjectMemberOrOwner(int64(projectID), claims.UserID) {
			return c.SendStatus(fiber.StatusForbidden)
		}

		role, _ := s.memberService.GetMemberRole(int64(projectID), claims.UserID)

		c.Locals("identity", realtime.Identity{
			UserID:   claims.UserID,
			Nickname: claims.Nickname,
			Role:     role.String(),
		})
		return c.Next()
	}, websocket.New(func(conn *websocket.Conn) {
		identity := conn.Locals("identity").(realtime.Identity)

		conn.SetReadLimit(s.cfg.WebSocket.MaxMessageSize)

		client := realtime.NewClient(conn, identity, s.cfg.WebSocket.SendBufferSize)
		log.Printf("[Server] ws connected: user %d (%s)", identity.UserID, identity.Nickname)
		s.router.Serve(client)
		log.Printf("[Server] ws disconnected: user %d", identity.UserID)
	}, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start runs the listener and blocks until shutdown.
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("[Server] shutting down...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("[Server] shutdown error: %v", err)
		}
	}()

	log.Printf("[Server] listening on %s", s.cfg.Server.Port)
	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown stops the server, draining in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
