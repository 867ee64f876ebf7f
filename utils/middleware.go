package utils

import (
	"strconv"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// UserIDMiddleware rejects requests whose {id} route param does not match the
// authenticated user.
func UserIDMiddleware(ctx iris.Context) {
	id := ctx.Params().Get("id")

	claims := jwt.Get(ctx).(*AccessToken)
	userID := strconv.FormatUint(uint64(claims.ID), 10)

	if userID != id {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}
	ctx.Next()
}

// UserIDFromTokenMiddleware extracts the user ID from the JWT and stores it
// in the request context. Use on routes without an {id} URL parameter.
func UserIDFromTokenMiddleware(ctx iris.Context) {
	claims := jwt.Get(ctx).(*AccessToken)
	ctx.Values().Set("userID", claims.ID)
	ctx.Next()
}

// AdminOnlyMiddleware ensures the requester has admin or super_admin role
func AdminOnlyMiddleware(ctx iris.Context) {
	claims := jwt.Get(ctx).(*AccessToken)
	if claims.Role != "admin" && claims.Role != "super_admin" {
		JSONError(ctx, iris.StatusForbidden, "forbidden", "admin access required")
		return
	}
	ctx.Values().Set("userID", claims.ID)
	ctx.Next()
}

// SuperAdminOnlyMiddleware ensures only super admins can access
func SuperAdminOnlyMiddleware(ctx iris.Context) {
	claims := jwt.Get(ctx).(*AccessToken)
	if claims.Role != "super_admin" {
		JSONError(ctx, iris.StatusForbidden, "forbidden", "super_admin access required")
		return
	}
	ctx.Next()
}
