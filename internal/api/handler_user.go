package api

import (
	"context"
	"errors"
	"net/http"

	"geousers/internal/users"
	"geousers/pkg/health"
	"geousers/pkg/logger"
	"geousers/pkg/middleware"
	"geousers/pkg/models"

	"github.com/gin-gonic/gin"
)

// UserService is the set of user operations the handlers expose.
type UserService interface {
	CreateUser(ctx context.Context, payload map[string]any) (string, error)
	GetUser(ctx context.Context, id string) (models.UserRecord, error)
	UpdateUser(ctx context.Context, id string, payload map[string]any) error
	DeleteUser(ctx context.Context, id string) error
}

// HealthReporter builds the dependency status document.
type HealthReporter interface {
	Report(ctx context.Context) health.Report
}

// UserHandler handles user-related HTTP requests.
type UserHandler struct {
	Users  UserService
	Health HealthReporter
	Log    *logger.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc UserService, hr HealthReporter, log *logger.Logger) *UserHandler {
	return &UserHandler{Users: svc, Health: hr, Log: log.With("service", "UserHandler")}
}

// CreateUser godoc
// @Summary      Create a new user
// @Description  Stores the profile and optional location, then publishes a UserCreated event
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request  body      models.CreateUserRequest  true  "Create user request"
// @Success      201      {object}  models.WriteResponse
// @Failure      400      {object}  models.ErrorResponse
// @Failure      500      {object}  models.ErrorResponse
// @Failure      503      {object}  map[string]interface{}
// @Router       /users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	id, err := h.Users.CreateUser(c.Request.Context(), payload)
	if err != nil {
		h.writeError(c, err, "failed to create user")
		return
	}

	h.Log.Info("User created", "user_id", id, "correlation_id", correlationID)
	c.JSON(http.StatusCreated, models.WriteResponse{ID: id, Message: "user created"})
}

// GetUser godoc
// @Summary      Get a user by ID
// @Description  Returns the profile merged with the stored location, if any
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Failure      503  {object}  map[string]interface{}
// @Router       /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	rec, err := h.Users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, rec.ToMap())
}

// UpdateUser godoc
// @Summary      Update an existing user
// @Description  Applies a partial update; a location replaces or creates the stored point
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "User ID"
// @Param        request  body      models.UpdateUserRequest  true  "Update user request"
// @Success      200      {object}  models.WriteResponse
// @Failure      400      {object}  models.ErrorResponse
// @Failure      404      {object}  models.ErrorResponse
// @Failure      500      {object}  models.ErrorResponse
// @Failure      503      {object}  map[string]interface{}
// @Router       /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	userID := c.Param("id")

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	if err := h.Users.UpdateUser(c.Request.Context(), userID, payload); err != nil {
		h.writeError(c, err, "failed to update user")
		return
	}

	h.Log.Info("User updated", "user_id", userID, "correlation_id", correlationID)
	c.JSON(http.StatusOK, models.WriteResponse{ID: userID, Message: "user updated"})
}

// DeleteUser godoc
// @Summary      Delete a user
// @Description  Removes the profile and location, then publishes a UserDeleted event
// @Tags         users
// @Param        id   path      string  true  "User ID"
// @Success      204
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Failure      503  {object}  map[string]interface{}
// @Router       /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID := c.Param("id")
	if err := h.Users.DeleteUser(c.Request.Context(), userID); err != nil {
		h.writeError(c, err, "failed to delete user")
		return
	}

	h.Log.Info("User deleted", "user_id", userID, "correlation_id", middleware.GetCorrelationID(c))
	c.Status(http.StatusNoContent)
}

// HealthCheck godoc
// @Summary      Dependency status
// @Description  Reports environment variables, dependency checks and startup errors
// @Tags         health
// @Produce      json
// @Success      200  {object}  health.Report
// @Failure      503  {object}  health.Report
// @Router       /health [get]
func (h *UserHandler) HealthCheck(c *gin.Context) {
	report := h.Health.Report(c.Request.Context())
	status := http.StatusOK
	if !report.OK() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// writeError maps coordinator errors onto status codes. Storage details
// stay in the log.
func (h *UserHandler) writeError(c *gin.Context, err error, fallback string) {
	var uerr *users.Error
	switch {
	case errors.Is(err, users.ErrInvalidInput):
		msg := err.Error()
		if errors.As(err, &uerr) && uerr.Err != nil {
			msg = uerr.Err.Error()
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
	case errors.Is(err, users.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
	case errors.Is(err, users.ErrDependencyUnavailable):
		h.Log.Error("Dependency unavailable", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "service unavailable: " + err.Error(),
			"health": h.Health.Report(c.Request.Context()),
		})
	default:
		h.Log.Error(fallback, "path", c.FullPath(), "correlation_id", middleware.GetCorrelationID(c), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fallback})
	}
}
