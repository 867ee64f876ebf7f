package main

import (
	"fmt"
	"log"
	"os"

	"stormneighbor-server/routes"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	storage.InitializeDB()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	// JWT verifiers
	resetTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("EMAIL_TOKEN_SECRET")))
	resetTokenVerifier.WithDefaultBlocklist()
	resetTokenVerifierMiddleware := resetTokenVerifier.Verify(func() interface{} {
		return new(utils.ForgotPasswordToken)
	})

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	// Health check endpoint - CRITICAL for Render
	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Post("/google", routes.GoogleLoginOrSignUp)
		user.Post("/apple", routes.AppleLoginOrSignUp)
		user.Post("/forgotpassword", routes.ForgotPassword)
		user.Post("/resetpassword", resetTokenVerifierMiddleware, routes.ResetPassword)
		user.Get("/search", accessTokenVerifierMiddleware, routes.SearchUsers)
		user.Patch("/{id}/pushtoken", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.AlterPushToken)
		user.Patch("/{id}/settings/notifications", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.AllowsNotifications)
		user.Patch("/{id}/profile", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.UpdateUserProfile)
		user.Get("/{id}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUser)
		user.Post("/feedback", accessTokenVerifierMiddleware, routes.CreateFeedback)
	}

	posts := app.Party("/api/posts")
	{
		posts.Get("/nearby", accessTokenVerifierMiddleware, routes.GetNearbyPosts)
		posts.Post("/", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.CreatePost)
		posts.Get("/{id:uint}", accessTokenVerifierMiddleware, routes.GetPost)
		posts.Patch("/{id:uint}", accessTokenVerifierMiddleware, routes.UpdatePost)
		posts.Delete("/{id:uint}", accessTokenVerifierMiddleware, routes.DeletePost)
		posts.Post("/{id:uint}/report", accessTokenVerifierMiddleware, routes.ReportPost)
	}

	comments := app.Party("/api/comments")
	{
		comments.Get("/", accessTokenVerifierMiddleware, routes.ListComments)
		comments.Post("/", accessTokenVerifierMiddleware, routes.CreateComment)
		comments.Patch("/{id:uint}", accessTokenVerifierMiddleware, routes.UpdateComment)
		comments.Delete("/{id:uint}", accessTokenVerifierMiddleware, routes.DeleteComment)
	}

	reactions := app.Party("/api/reactions")
	{
		reactions.Get("/", accessTokenVerifierMiddleware, routes.ListReactions)
		reactions.Post("/", accessTokenVerifierMiddleware, routes.AddReaction)
		reactions.Post("/remove", accessTokenVerifierMiddleware, routes.RemoveReaction)
	}

	conversation := app.Party("/api/conversation")
	{
		conversation.Post("/", accessTokenVerifierMiddleware, routes.CreateConversation)
		conversation.Get("/{id:uint}", accessTokenVerifierMiddleware, routes.GetConversationByID)
		conversation.Get("/user/{id}", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.GetConversationsByUserID)
		conversation.Post("/{id:uint}/read", accessTokenVerifierMiddleware, routes.MarkConversationRead)
		conversation.Post("/{id:uint}/deactivate", accessTokenVerifierMiddleware, routes.DeactivateConversation)
		conversation.Post("/{id:uint}/typing", accessTokenVerifierMiddleware, routes.Typing)
		conversation.Get("/{id:uint}/typing", accessTokenVerifierMiddleware, routes.ListTyping)
	}

	messages := app.Party("/api/messages")
	{
		messages.Post("/", accessTokenVerifierMiddleware, routes.CreateMessage)
		messages.Get("/", accessTokenVerifierMiddleware, routes.ListMessages)
		messages.Post("/state", accessTokenVerifierMiddleware, routes.SetMessagesRead)
		messages.Patch("/{id:uint}", accessTokenVerifierMiddleware, routes.EditMessage)
	}

	weather := app.Party("/api/weather")
	{
		weather.Get("/current", routes.GetCurrentWeather)
		weather.Get("/alerts", routes.ListWeatherAlerts)
	}

	upload := app.Party("/api/upload")
	{
		upload.Post("/", accessTokenVerifierMiddleware, routes.UploadImage)
		upload.Delete("/", accessTokenVerifierMiddleware, routes.DeleteImage)
	}

	notifications := app.Party("/api/notifications")
	{
		notifications.Get("/", accessTokenVerifierMiddleware, routes.ListNotifications)
		notifications.Patch("/{id:uint}/read", accessTokenVerifierMiddleware, routes.MarkNotificationRead)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/users", routes.AdminListUsers)
		admin.Patch("/users/{id:uint}/role", utils.SuperAdminOnlyMiddleware, routes.AdminChangeUserRole)
		admin.Get("/posts", routes.AdminListPosts)
		admin.Post("/posts/{id:uint}/remove", routes.AdminRemovePost)
		admin.Post("/posts/{id:uint}/restore", routes.AdminRestorePost)
		admin.Post("/conversations/{id:uint}/recount", routes.RecomputeConversationCounters)
		admin.Post("/weather/check", routes.CheckWeather)
		admin.Get("/feedback", routes.AdminListFeedback)
		admin.Get("/stats", routes.AdminStats)
		admin.Get("/activity", routes.AdminActivity)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
