package middleware

import (
	stderrors "errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/roadmap-service/pkg/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

var (
	initOnce sync.Once

	enumsMu sync.Mutex
	enums   = map[string][]string{}
)

// fixedMessages holds the message of every tag whose text needs no enum lookup
var fixedMessages = map[string]string{
	"required":   "is required",
	"identifier": "must be an identifier (letters, digits, '.', '_' or '-')",
	"iso_date":   "must be a date in YYYY-MM-DD format",
}

// paramMessages prefix the tag parameter
var paramMessages = map[string]string{
	"min":   "must be at least ",
	"max":   "must be at most ",
	"gte":   "must be greater than or equal to ",
	"oneof": "must be one of: ",
}

// bindingEngine is gin's validator, which binds request DTOs
func bindingEngine() *validator.Validate {
	v, _ := binding.Validator.Engine().(*validator.Validate)
	return v
}

// InitValidator registers the custom tags and reports fields by their JSON
// name. Safe to call repeatedly.
func InitValidator() {
	initOnce.Do(func() {
		v := bindingEngine()
		if v == nil {
			return
		}
		_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierPattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("iso_date", func(fl validator.FieldLevel) bool {
			_, err := time.Parse(time.DateOnly, fl.Field().String())
			return err == nil
		})
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
				return name
			}
			if name, _, _ := strings.Cut(f.Tag.Get("form"), ","); name != "" && name != "-" {
				return name
			}
			return f.Name
		})
	})
}

// RegisterEnum makes tag accept exactly values, case-sensitive. A second
// registration of tag replaces the first.
func RegisterEnum(tag string, values ...string) {
	InitValidator()

	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	enumsMu.Lock()
	enums[tag] = append([]string(nil), values...)
	enumsMu.Unlock()

	if v := bindingEngine(); v != nil {
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			_, ok := allowed[fl.Field().String()]
			return ok
		})
	}
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fixedMessages[fe.Tag()]; ok {
		return msg
	}
	if prefix, ok := paramMessages[fe.Tag()]; ok {
		return prefix + fe.Param()
	}
	enumsMu.Lock()
	values, ok := enums[fe.Tag()]
	enumsMu.Unlock()
	if ok {
		return "must be one of: " + strings.Join(values, ", ")
	}
	return "is invalid"
}

// bindError turns a gin binding error into a 400 with per-field messages
// when validation failed, or a plain bad request when decoding did.
func bindError(err error, what string) *errors.AppError {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.ErrBadRequest("invalid " + what + ": " + err.Error())
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return errors.ErrValidationWithFields("validation failed", fields)
}

// BindAndValidate decodes the JSON body into obj and validates it
func BindAndValidate(c *gin.Context, obj any) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindError(err, "request body")
	}
	return nil
}

// BindQuery decodes the query string into obj and validates it
func BindQuery(c *gin.Context, obj any) *errors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		return bindError(err, "query")
	}
	return nil
}

// InputSanitizer drops NUL bytes and surrounding blanks from query values
func InputSanitizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		for _, values := range query {
			for i, v := range values {
				values[i] = strings.TrimSpace(strings.ReplaceAll(v, "\x00", ""))
			}
		}
		c.Request.URL.RawQuery = query.Encode()
		c.Next()
	}
}

// ContentType answers 415 to write requests carrying a non-JSON body
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength > 0 && !strings.HasPrefix(c.GetHeader("Content-Type"), "application/json") {
				AbortWithAppError(c, errors.NewAppError("INVALID_CONTENT_TYPE", "Content-Type must be application/json", http.StatusUnsupportedMediaType))
				return
			}
		}
		c.Next()
	}
}
