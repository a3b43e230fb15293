package handler

import (
	"errors"
	"net/http"
	"reflect"

	"metersquare/internal/apierror"
	"metersquare/internal/middleware"
	"metersquare/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindBadRequest, "invalid JSON: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

// bindOptional is bindAndValidate for endpoints whose body may be omitted.
func bindOptional(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return runValidation(c, req)
	}
	return bindAndValidate(c, req)
}

// bindQuery is bindAndValidate for query-string filters.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindBadRequest, "invalid query: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

func runValidation(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// pathID parses the :name path parameter as a uuid.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindBadRequest, "invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// actor builds the service actor from the JWT claims. Routes without
// JWTAuth get the zero actor, which every mutating service call rejects.
func actor(c *gin.Context) service.Actor {
	claims := middleware.GetClaims(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{UserID: claims.UserUUID, Name: claims.Name, Role: claims.RoleValue}
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case service.KindValidation:
		return http.StatusUnprocessableEntity
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict, service.KindItemUnavailable, service.KindInsufficientStock:
		return http.StatusConflict
	case service.KindNotAuthenticated:
		return http.StatusUnauthorized
	case service.KindNotAuthorized:
		return http.StatusForbidden
	case service.KindContention:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope for err. Unclassified errors are
// logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var ke service.KindError
	if !errors.As(err, &ke) {
		log.Error().
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Err(err).
			Msg("unhandled service error")
		c.JSON(http.StatusInternalServerError, apierror.New(apierror.KindInternal, "internal server error"))
		return
	}

	body := apierror.New(ke.Kind(), err.Error())
	var (
		verr *service.ValidationError
		cerr *service.ConflictError
		serr *service.InsufficientStockError
		uerr *service.ItemUnavailableError
	)
	switch {
	case errors.As(err, &verr):
		body.Fields = verr.Fields
	case errors.As(err, &cerr):
		body.Reason = cerr.Reason
	case errors.As(err, &serr):
		body.Shortages = serr.Shortages
	case errors.As(err, &uerr):
		body.Items = uerr.Items
	}
	if ke.Kind() == service.KindContention {
		c.Header("Retry-After", "1")
	}
	c.JSON(statusFor(ke.Kind()), body)
}
