package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/hire-api/internal/model"
	apperrors "github.com/jwalitptl/hire-api/pkg/errors"
	"github.com/jwalitptl/hire-api/pkg/httputil"
)

var domainPattern = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)

// ValidationConfig represents validation configuration
type ValidationConfig struct {
	CustomValidators    map[string]validator.Func
	CustomErrorMessages map[string]string
}

func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		CustomValidators: map[string]validator.Func{
			"tenant_domain":    validateTenantDomain,
			"billing_interval": validateBillingInterval,
		},
		CustomErrorMessages: map[string]string{
			"required":         "is required",
			"email":            "must be a valid email address",
			"min":              "is too short",
			"max":              "is too long",
			"tenant_domain":    "must be a valid domain name",
			"billing_interval": "must be month or year",
		},
	}
}

func validateTenantDomain(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len(s) <= 253 && domainPattern.MatchString(s)
}

func validateBillingInterval(fl validator.FieldLevel) bool {
	return model.BillingInterval(fl.Field().String()).Valid()
}

var (
	registerOnce sync.Once
	registerErr  error
	messages     map[string]string
)

// RegisterValidators installs the custom binding tags and makes validation
// errors report json field names. It is safe to call more than once.
func RegisterValidators(config ValidationConfig) error {
	registerOnce.Do(func() {
		messages = config.CustomErrorMessages
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("binding validator is not go-playground/validator")
			return
		}
		for tag, fn := range config.CustomValidators {
			if err := v.RegisterValidation(tag, fn); err != nil {
				registerErr = fmt.Errorf("failed to register %s: %w", tag, err)
				return
			}
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return registerErr
}

// BindJSON binds the request body into obj. On failure it responds with a
// 400 listing every invalid field and reports false.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithError(c, BindError(err))
		return false
	}
	return true
}

// BindError converts a binding failure into a validation error.
func BindError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("invalid request body")
	}

	details := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg := messages[e.Tag()]
		if msg == "" {
			msg = fmt.Sprintf("failed on %s", e.Tag())
		}
		details = append(details, e.Field()+" "+msg)
	}
	return apperrors.Validation("invalid request", details...)
}
