package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"resto-pos/internal/gateway/middleware"
	"resto-pos/internal/utils"
)

type APIResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Meta    interface{}       `json:"meta,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func validationResponse(verr *utils.ValidationError) APIResponse {
	return APIResponse{
		Success: false,
		Message: "Validation failed",
		Errors:  verr.Fields,
	}
}

// bindingError turns a gin binding failure into field messages.
func bindingError(err error) *utils.ValidationError {
	verr := &utils.ValidationError{}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("body", "invalid request format")
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fieldPath(fe.Namespace()), fieldMessage(fe))
	}
	return verr
}

// fieldPath drops the struct name and writes indexes the way clients send
// them: items.0.quantity.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		namespace = namespace[i+1:]
	}
	namespace = strings.ReplaceAll(namespace, "[", ".")
	return strings.ReplaceAll(namespace, "]", "")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "is invalid"
}

func writeError(c *gin.Context, err error) {
	var verr *utils.ValidationError
	var failure *utils.TransactionFailure
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, validationResponse(verr))
	case errors.Is(err, utils.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, utils.ErrConflict), errors.Is(err, utils.ErrInvalidTransition):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.As(err, &failure):
		c.JSON(http.StatusInternalServerError, errorResponse(utils.TransactionFailureMessage))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal server error"))
	}
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, validationResponse(utils.NewValidationError(name, "must be a positive integer")))
		return 0, false
	}
	return id, true
}

func actorID(c *gin.Context) int64 {
	return c.GetInt64(middleware.ActorIDKey)
}
