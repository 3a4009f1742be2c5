package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles recognised by the appeal API.
type UserRole string

const (
	RoleEmployee UserRole = "EMPLOYEE"
	RoleReviewer UserRole = "REVIEWER"
	RoleHRAdmin  UserRole = "HR_ADMIN"
	RoleAdmin    UserRole = "ADMIN"
)

// IsOperator reports whether the role may act on appeals on behalf of employees.
func (r UserRole) IsOperator() bool {
	return r == RoleHRAdmin || r == RoleAdmin
}

// IsPrivileged reports whether the role may review appeals.
func (r UserRole) IsPrivileged() bool {
	return r == RoleReviewer || r.IsOperator()
}

// JWTClaims represents the JWT payload issued by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor identifies who performs an action.
type Actor struct {
	ID   string
	Role UserRole
	Name string
}

// ActorFromClaims builds an Actor from validated token claims.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Role: claims.Role, Name: claims.FullName}
}

// SystemActor is used for actions taken by background processes.
var SystemActor = Actor{ID: "system", Role: RoleAdmin, Name: "system"}
