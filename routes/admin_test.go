package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"stormneighbor-server/models"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestStorage points the package-global DB at an in-memory database.
// Max open connections is pinned to 1 because every sqlite connection gets
// its own :memory: database.
func setupTestStorage(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.Reaction{},
		&models.Conversation{},
		&models.Message{},
		&models.Feedback{},
		&models.AuditLog{},
		&models.WeatherAlert{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	storage.DB = db
	return db
}

// buildTestApp creates a minimal Iris app with the admin routes and JWT verifier
func buildTestApp(t *testing.T) *iris.Application {
	t.Helper()
	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")

	app := iris.New()
	app.Validator = validator.New()

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} { return new(utils.AccessToken) })

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/users", AdminListUsers)
		admin.Get("/stats", AdminStats)
	}

	posts := app.Party("/api/posts")
	{
		posts.Get("/nearby", accessTokenVerifierMiddleware, GetNearbyPosts)
	}

	if err := app.Build(); err != nil {
		t.Fatalf("build app: %v", err)
	}
	return app
}

// signTestToken returns a signed JWT with the given role
func signTestToken(role string) string {
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), 0)
	token, _ := signer.Sign(utils.AccessToken{ID: 1, Role: role})
	return string(token)
}

func TestAdminUsersRBAC(t *testing.T) {
	setupTestStorage(t)
	app := buildTestApp(t)

	// No token
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code == http.StatusOK {
		t.Fatalf("expected non-200 without token, got %d", resp.Code)
	}

	// User role -> 403 with the structured error body
	req2 := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req2.Header.Set("Authorization", "Bearer "+signTestToken("user"))
	resp2 := httptest.NewRecorder()
	app.ServeHTTP(resp2, req2)
	if resp2.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user role, got %d", resp2.Code)
	}
	var denied struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp2.Body.Bytes(), &denied); err != nil {
		t.Fatalf("decode 403 body: %v", err)
	}
	if denied.Error != "forbidden" || denied.Message == "" {
		t.Fatalf("unexpected 403 body: %s", resp2.Body.String())
	}

	// Admin role -> 200 (empty list OK)
	req3 := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req3.Header.Set("Authorization", "Bearer "+signTestToken("admin"))
	resp3 := httptest.NewRecorder()
	app.ServeHTTP(resp3, req3)
	if resp3.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin role, got %d", resp3.Code)
	}
}

func TestAdminStatsRBAC(t *testing.T) {
	setupTestStorage(t)
	app := buildTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken("super_admin"))
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for super_admin role, got %d", resp.Code)
	}
}
