package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"stormneighbor-server/models"
	"stormneighbor-server/storage"
	"stormneighbor-server/utils"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"github.com/kataras/iris/v12"
	jsonWT "github.com/kataras/iris/v12/middleware/jwt"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slices"
)

func Register(ctx iris.Context) {
	var userInput RegisterUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var newUser models.User
	userExists, userExistsErr := getAndHandleUserExists(&newUser, userInput.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if userExists {
		utils.CreateEmailAlreadyRegistered(ctx)
		return
	}

	hashedPassword, hashErr := hashAndSaltPassword(userInput.Password)
	if hashErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	newUser = models.User{
		FirstName:     userInput.FirstName,
		LastName:      userInput.LastName,
		Email:         strings.ToLower(userInput.Email),
		Password:      hashedPassword,
		LocationCity:  userInput.LocationCity,
		LocationState: userInput.LocationState,
		SocialLogin:   false,
	}

	storage.DB.Create(&newUser)

	returnUser(newUser, ctx)
}

func Login(ctx iris.Context) {
	var userInput LoginUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existingUser models.User
	errorMsg := "Invalid email or password."
	userExists, userExistsErr := getAndHandleUserExists(&existingUser, userInput.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if !userExists {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	if existingUser.SocialLogin {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Social Login Account", ctx)
		return
	}

	passwordErr := bcrypt.CompareHashAndPassword([]byte(existingUser.Password), []byte(userInput.Password))
	if passwordErr != nil {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", errorMsg, ctx)
		return
	}

	returnUser(existingUser, ctx)
}

func GoogleLoginOrSignUp(ctx iris.Context) {
	var userInput SocialLoginInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	req, _ := http.NewRequest("GET", "https://www.googleapis.com/userinfo/v2/me", nil)
	req.Header.Set("Authorization", "Bearer "+userInput.AccessToken)
	res, googleErr := http.DefaultClient.Do(req)
	if googleErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	defer res.Body.Close()

	body, bodyErr := io.ReadAll(res.Body)
	if bodyErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var googleBody GoogleUserRes
	json.Unmarshal(body, &googleBody)

	if googleBody.Email == "" {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Invalid access token.", ctx)
		return
	}

	var user models.User
	userExists, userExistsErr := getAndHandleUserExists(&user, googleBody.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !userExists {
		user = models.User{
			FirstName:      googleBody.GivenName,
			LastName:       googleBody.FamilyName,
			Email:          googleBody.Email,
			SocialLogin:    true,
			SocialProvider: "Google",
		}
		storage.DB.Create(&user)
		returnUser(user, ctx)
		return
	}

	if user.SocialLogin && user.SocialProvider == "Google" {
		returnUser(user, ctx)
		return
	}

	utils.CreateEmailAlreadyRegistered(ctx)
}

func AppleLoginOrSignUp(ctx iris.Context) {
	var userInput AppleUserInput
	err := ctx.ReadJSON(&userInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	res, httpErr := http.Get("https://appleid.apple.com/auth/keys")
	if httpErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	defer res.Body.Close()

	body, bodyErr := io.ReadAll(res.Body)
	if bodyErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	jwks, jwksErr := keyfunc.NewJSON(body)
	if jwksErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	// The JWKS keyfunc selects the signing key matching the token's kid.
	token, tokenErr := jwt.Parse(userInput.IdentityToken, jwks.Keyfunc)
	if tokenErr != nil || !token.Valid {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Invalid user token.", ctx)
		return
	}

	email := fmt.Sprint(token.Claims.(jwt.MapClaims)["email"])
	if email == "" || email == "<nil>" {
		utils.CreateError(iris.StatusUnauthorized, "Unauthorized", "Invalid user token.", ctx)
		return
	}

	var user models.User
	userExists, userExistsErr := getAndHandleUserExists(&user, email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !userExists {
		user = models.User{Email: email, SocialLogin: true, SocialProvider: "Apple"}
		storage.DB.Create(&user)
		returnUser(user, ctx)
		return
	}

	if user.SocialLogin && user.SocialProvider == "Apple" {
		returnUser(user, ctx)
		return
	}

	utils.CreateEmailAlreadyRegistered(ctx)
}

func ForgotPassword(ctx iris.Context) {
	var emailInput EmailRegisteredInput
	err := ctx.ReadJSON(&emailInput)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	userExists, userExistsErr := getAndHandleUserExists(&user, emailInput.Email)
	if userExistsErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if !userExists {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Invalid email.", ctx)
		return
	}

	if user.SocialLogin {
		utils.CreateError(iris.StatusUnauthorized, "Credentials Error", "Social Login Account", ctx)
		return
	}

	token, tokenErr := utils.CreateForgotPasswordToken(user.ID, user.Email)
	if tokenErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	link := "stormneighbor://resetpassword/" + token
	subject := "Forgot Your Password?"
	html := `
	<p>It looks like you forgot your password.
	If you did, please click the link below to reset it.
	If you did not, disregard this email. Please update your password
	within 10 minutes, otherwise you will have to repeat this
	process. <a href=` + link + `>Click to Reset Password</a>
	</p><br />`

	emailSent, emailSentErr := utils.SendMail(user.Email, subject, html)
	if emailSentErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"emailSent": emailSent})
}

func ResetPassword(ctx iris.Context) {
	var password ResetPasswordInput
	err := ctx.ReadJSON(&password)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	hashedPassword, hashErr := hashAndSaltPassword(password.Password)
	if hashErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	claims := jsonWT.Get(ctx).(*utils.ForgotPasswordToken)

	storage.DB.Model(&models.User{}).Where("id = ?", claims.ID).Update("password", hashedPassword)

	ctx.JSON(iris.Map{"passwordReset": true})
}

// SearchUsers allows searching users by name or email (auth required)
func SearchUsers(ctx iris.Context) {
	q := ctx.URLParamDefault("q", "")
	limit := ctx.URLParamIntDefault("limit", 20)
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if len(q) < 1 {
		ctx.JSON(iris.Map{"success": true, "users": []interface{}{}})
		return
	}

	var users []models.User
	search := "%" + q + "%"
	storage.DB.Limit(limit).
		Where("lower(first_name) LIKE lower(?) OR lower(last_name) LIKE lower(?) OR lower(email) LIKE lower(?)", search, search, search).
		Select("id, first_name, last_name, avatar_url, location_city, location_state").
		Find(&users)
	ctx.JSON(iris.Map{"success": true, "users": users})
}

func GetUser(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var user models.User
	if err := storage.DB.First(&user, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	ctx.JSON(user)
}

// UpdateUserProfile lets the authenticated user edit display and home
// location fields.
func UpdateUserProfile(ctx iris.Context) {
	claims := jsonWT.Get(ctx).(*utils.AccessToken)

	var input UpdateProfileInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if input.Lat != nil || input.Lng != nil {
		if input.Lat == nil || input.Lng == nil {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "lat and lng must be provided together.", ctx)
			return
		}
	}

	var user models.User
	if err := storage.DB.First(&user, claims.ID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	updates := map[string]interface{}{
		"first_name":     input.FirstName,
		"last_name":      input.LastName,
		"bio":            input.Bio,
		"avatar_url":     input.AvatarURL,
		"location_city":  input.LocationCity,
		"location_state": input.LocationState,
	}
	if input.Lat != nil {
		updates["lat"] = input.Lat
		updates["lng"] = input.Lng
	}

	if err := storage.DB.Model(&user).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	storage.DB.First(&user, claims.ID)
	ctx.JSON(user)
}

func AlterPushToken(ctx iris.Context) {
	id := ctx.Params().Get("id")

	user := getUserByID(id, ctx)
	if user == nil {
		return
	}

	var req AlterPushTokenInput
	err := ctx.ReadJSON(&req)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var tokens []string
	if user.PushTokens != nil {
		if unmarshalErr := json.Unmarshal(user.PushTokens, &tokens); unmarshalErr != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	if req.Op == "add" {
		if !slices.Contains(tokens, req.Token) {
			tokens = append(tokens, req.Token)
		}
	} else if req.Op == "remove" {
		kept := tokens[:0]
		for _, token := range tokens {
			if token != req.Token {
				kept = append(kept, token)
			}
		}
		tokens = kept
	}

	marshalled, marshalErr := json.Marshal(tokens)
	if marshalErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if err := storage.DB.Model(user).Update("push_tokens", marshalled).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusNoContent)
}

func AllowsNotifications(ctx iris.Context) {
	id := ctx.Params().Get("id")

	user := getUserByID(id, ctx)
	if user == nil {
		return
	}

	var req AllowsNotificationsInput
	err := ctx.ReadJSON(&req)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if err := storage.DB.Model(user).Update("allows_notifications", req.AllowsNotifications).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusNoContent)
}

func getAndHandleUserExists(user *models.User, email string) (exists bool, err error) {
	userExistsQuery := storage.DB.Where("email = ?", strings.ToLower(email)).Limit(1).Find(user)
	if userExistsQuery.Error != nil {
		return false, userExistsQuery.Error
	}
	return userExistsQuery.RowsAffected > 0, nil
}

func hashAndSaltPassword(password string) (hashedPassword string, err error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func getUserByID(id string, ctx iris.Context) *models.User {
	var user models.User
	if err := storage.DB.First(&user, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return nil
	}
	return &user
}

func returnUser(user models.User, ctx iris.Context) {
	tokenPair, tokenErr := utils.CreateTokenPair(user.ID)
	if tokenErr != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{
		"ID":                  user.ID,
		"firstName":           user.FirstName,
		"lastName":            user.LastName,
		"email":               user.Email,
		"avatarURL":           user.AvatarURL,
		"locationCity":        user.LocationCity,
		"locationState":       user.LocationState,
		"role":                user.Role,
		"allowsNotifications": user.AllowsNotifications,
		"accessToken":         string(tokenPair.AccessToken),
		"refreshToken":        string(tokenPair.RefreshToken),
	})
}

type RegisterUserInput struct {
	FirstName     string `json:"firstName" validate:"required,max=256"`
	LastName      string `json:"lastName" validate:"required,max=256"`
	Email         string `json:"email" validate:"required,max=256,email"`
	Password      string `json:"password" validate:"required,min=8,max=256"`
	LocationCity  string `json:"locationCity" validate:"max=128"`
	LocationState string `json:"locationState" validate:"max=64"`
}

type LoginUserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SocialLoginInput struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

type AppleUserInput struct {
	IdentityToken string `json:"identityToken" validate:"required"`
}

type GoogleUserRes struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

type EmailRegisteredInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordInput struct {
	Password string `json:"password" validate:"required,min=8,max=256"`
}

type AlterPushTokenInput struct {
	Token string `json:"token" validate:"required"`
	Op    string `json:"op" validate:"required,oneof=add remove"`
}

type AllowsNotificationsInput struct {
	AllowsNotifications *bool `json:"allowsNotifications" validate:"required"`
}

type UpdateProfileInput struct {
	FirstName     string   `json:"firstName" validate:"required,max=256"`
	LastName      string   `json:"lastName" validate:"required,max=256"`
	Bio           string   `json:"bio" validate:"max=2000"`
	AvatarURL     string   `json:"avatarURL" validate:"max=512"`
	LocationCity  string   `json:"locationCity" validate:"max=128"`
	LocationState string   `json:"locationState" validate:"max=64"`
	Lat           *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng           *float64 `json:"lng" validate:"omitempty,gte=-180,lte=180"`
}
