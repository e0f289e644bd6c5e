package model

import "github.com/golang-jwt/jwt"

// UserClaims carries the authenticated user identity through the API layer.
type UserClaims struct {
	UserName string `json:"userName"`
	jwt.StandardClaims
}
