package main

import (
	"log"

	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/miyabe/user-account-api/internal/config"
	"github.com/miyabe/user-account-api/internal/constants"
	"github.com/miyabe/user-account-api/internal/database"
	"github.com/miyabe/user-account-api/internal/handlers"
	"github.com/miyabe/user-account-api/internal/middleware"
	"github.com/miyabe/user-account-api/internal/repository"
	"github.com/miyabe/user-account-api/internal/services"
	"github.com/miyabe/user-account-api/internal/tokenverify"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Token verifier configuration (expected audience comes from the
	// environment, never from the request)
	verifierCfg, err := tokenverify.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to configure token verifier: %v", err)
	}

	// Initialize Gin router
	r := gin.Default()

	// Setup session middleware with Redis
	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(
		10,        // Redis pool size
		"tcp",     // network type
		redisAddr, // Redis address from config
		"",        // password (empty = no password)
		[]byte(cfg.SessionSecret), // authentication key
	)
	if err != nil {
		log.Fatalf("Failed to create Redis store: %v", err)
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: 2, // SameSite=Lax
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	// Initialize services and handlers
	userRepo := repository.NewUserRepository(database.GetDB())
	userService := services.NewUserService(userRepo)
	tokenService := services.NewTokenService(tokenverify.New(verifierCfg), userRepo)

	authHandler := handlers.NewAuthHandler(userService, tokenService)
	userHandler := handlers.NewUserHandler(userService)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "User Account API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Open endpoints
		api.POST("/register/", authHandler.Register)
		api.POST("/login/", authHandler.Login)
		api.POST("/logout/", authHandler.Logout)
		api.POST("/social-login/", authHandler.SocialLogin)

		// Protected endpoints
		api.POST("/verify-token/", middleware.RequireAuth(), authHandler.VerifyToken)
		api.GET("/get-user-detail/", middleware.RequireAuth(), authHandler.GetUserDetail)

		users := api.Group("/users")
		users.Use(middleware.RequireAuth())
		{
			users.GET("/", userHandler.ListUsers)
			users.GET("/:id/", userHandler.GetUser)
			users.PUT("/:id/", userHandler.UpdateUser)
			users.PATCH("/:id/", userHandler.UpdateUser)
			users.DELETE("/:id/", userHandler.DeleteUser)
		}
	}

	// Start server
	log.Printf("Server starting on %s", cfg.ServerAddr)
	if err := r.Run(cfg.ServerAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
