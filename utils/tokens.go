package utils

import (
	"context"
	"os"
	"strconv"
	"time"

	"stormneighbor-server/models"
	"stormneighbor-server/storage"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

var bgContext = context.Background()

type AccessToken struct {
	ID   uint   `json:"ID"`
	Role string `json:"role"`
}

type ForgotPasswordToken struct {
	ID    uint   `json:"ID"`
	Email string `json:"email"`
}

type RefreshTokenInput struct {
	RefreshToken string `json:"refreshToken"`
}

func CreateForgotPasswordToken(id uint, email string) (string, error) {
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("EMAIL_TOKEN_SECRET"), 10*time.Minute)

	token, err := signer.Sign(ForgotPasswordToken{ID: id, Email: email})
	if err != nil {
		return "", err
	}
	return string(token), nil
}

// CreateTokenPair signs an access/refresh pair and allow-lists the refresh
// token in Redis so it can be revoked.
func CreateTokenPair(id uint) (*jwt.TokenPair, error) {
	accessTokenSigner := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), 24*time.Hour)
	refreshTokenSigner := jwt.NewSigner(jwt.HS256, os.Getenv("REFRESH_TOKEN_SECRET"), 365*24*time.Hour)

	userID := strconv.FormatUint(uint64(id), 10)
	refreshClaims := jwt.Claims{Subject: userID}

	// Embed the role so RBAC middleware can check it without a DB trip
	role := "user"
	var u models.User
	if err := storage.DB.Select("id, role").First(&u, id).Error; err == nil && u.Role != "" {
		role = u.Role
	}

	accessToken, err := accessTokenSigner.Sign(AccessToken{ID: id, Role: role})
	if err != nil {
		return nil, err
	}

	refreshToken, err := refreshTokenSigner.Sign(refreshClaims)
	if err != nil {
		return nil, err
	}

	var tokenPair jwt.TokenPair
	tokenPair.AccessToken = accessToken
	tokenPair.RefreshToken = refreshToken

	storage.Redis.Set(bgContext, string(refreshToken), "true", 365*24*time.Hour+5*time.Minute)

	return &tokenPair, nil
}

// RefreshToken exchanges a still allow-listed refresh token for a new pair.
func RefreshToken(ctx iris.Context) {
	token := jwt.GetVerifiedToken(ctx)
	tokenStr := string(token.Token)

	if _, err := storage.Redis.Get(bgContext, tokenStr).Result(); err != nil {
		CreateNotFound(ctx)
		return
	}

	claims := jwt.Get(ctx).(*jwt.Claims)
	id, idErr := strconv.ParseUint(claims.Subject, 10, 32)
	if idErr != nil {
		CreateInternalServerError(ctx)
		return
	}

	tokenPair, tokenErr := CreateTokenPair(uint(id))
	if tokenErr != nil {
		CreateInternalServerError(ctx)
		return
	}

	// The old refresh token is single-use
	storage.Redis.Del(bgContext, tokenStr)

	ctx.JSON(iris.Map{
		"accessToken":  string(tokenPair.AccessToken),
		"refreshToken": string(tokenPair.RefreshToken),
	})
}
