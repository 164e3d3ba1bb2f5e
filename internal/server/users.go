package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"tripline/internal/app"
	"tripline/internal/domain"
	"tripline/internal/repo"
)

type CreateUserRequest struct {
	Email string `json:"email" format:"email"`
	Name  string `json:"name,omitempty"`
}

type DevLoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func registerUsers(api huma.API, a app.App) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		email := strings.TrimSpace(input.Body.Email)
		if email == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email is required", nil)
		}
		if _, err := a.Repo.GetUserByEmail(ctx, email); err == nil {
			return nil, newAPIError(http.StatusConflict, "conflict", "user already exists", nil)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, handleError(err)
		}
		u, err := a.Repo.InsertUser(ctx, email, strings.TrimSpace(input.Body.Name))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Get the authenticated user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: user}, nil
	})
}

// registerDevAuth issues signed tokens for local development. Only useful
// when a JWT secret is configured; production deployments front the API with
// an external identity provider issuing the same claims.
func registerDevAuth(api huma.API, a app.App, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "Issue a development bearer token",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(authCfg.JWTSecret) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "dev login requires auth.jwt_secret", nil)
		}
		email := strings.TrimSpace(input.Body.Email)
		if email == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email is required", nil)
		}
		user, err := a.Repo.GetUserByEmail(ctx, email)
		if errors.Is(err, repo.ErrNotFound) {
			name := strings.TrimSpace(input.Body.Name)
			if name == "" {
				name = email
			}
			user, err = a.Repo.InsertUser(ctx, email, name)
		}
		if err != nil {
			return nil, handleError(err)
		}
		now := time.Now()
		claims := jwtClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   strconv.FormatInt(user.ID, 10),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			},
			Email: user.Email,
			Name:  user.Name,
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(authCfg.JWTSecret))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token, User: user}}, nil
	})
}
