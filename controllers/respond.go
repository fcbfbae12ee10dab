package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"ethesis-api/middleware"
	"ethesis-api/models"
	"ethesis-api/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	var unavailable *services.UpstreamUnavailableError
	var rejected *services.UpstreamRejectedError
	var bindErrs validator.ValidationErrors

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "The given data was invalid.",
			"errors":  verr.Fields,
		})
	case errors.As(err, &bindErrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "The given data was invalid.",
			"errors":  bindingFieldErrors(bindErrs),
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": credentialMessage(err)})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "You are not allowed to access this resource"})
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrScanNotFound), errors.Is(err, services.ErrDirectorySyncRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Resource not found"})
	case errors.Is(err, services.ErrDirectorySyncAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, services.ErrScanQueueFull), errors.Is(err, services.ErrScanQueueClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &unavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "The " + unavailable.Service + " service is unavailable"})
	case errors.As(err, &rejected):
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": rejected.Message})
	default:
		log.Printf("[%s %s] unexpected error: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
	}
}

// credentialMessage keeps the directory's own wording when it sent one.
func credentialMessage(err error) string {
	msg := err.Error()
	prefix := services.ErrInvalidCredentials.Error() + ": "
	if strings.HasPrefix(msg, prefix) && len(msg) > len(prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return "Invalid email or password"
}

func bindingFieldErrors(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := toSnake(fe.Field())
		switch fe.Tag() {
		case "required":
			fields[field] = "The " + field + " field is required."
		case "email":
			fields[field] = "The " + field + " must be a valid email address."
		case "oneof":
			fields[field] = "The selected " + field + " is invalid."
		default:
			fields[field] = "The " + field + " field is invalid."
		}
	}
	return fields
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthenticated"})
		return nil, false
	}
	return user, true
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func paginationParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
