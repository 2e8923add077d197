package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"opsportal/internal/config"
	"opsportal/internal/engine/auth"
	"opsportal/internal/events"
	"opsportal/internal/logging"
	"opsportal/internal/process"
	"opsportal/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Registry process.Registry
	Auth     auth.Service
	Config   *config.Config
	Now      func() time.Time
	Logger   *slog.Logger
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	r := repo.Repo{DB: db}
	w := events.Writer{DB: db, Now: time.Now}
	return Engine{
		DB:       db,
		Repo:     r,
		Events:   w,
		Registry: process.Registry{Repo: r, Events: w, Now: time.Now},
		Auth:     auth.Service{DB: db},
		Config:   cfg,
		Now:      time.Now,
		Logger:   logging.WithModule("engine"),
	}
}

// WithClock returns a copy of e whose writers all read time from now.
func (e Engine) WithClock(now func() time.Time) Engine {
	e.Now = now
	e.Events.Now = now
	e.Registry.Now = now
	e.Registry.Events.Now = now
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// ValidationError is an input problem tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigurationError means the system itself is misconfigured, for example
// the active process definition cannot be loaded. Nothing is written when it
// is returned.
type ConfigurationError struct {
	Err error
}

func (e ConfigurationError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e ConfigurationError) Unwrap() error { return e.Err }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks struct tags and reports the first failing field as a ValidationError.
func Validate(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return ValidationError{Field: fe.Field(), Message: validationMessage(fe)}
	}
	return ValidationError{Message: err.Error()}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "url":
		return "must be a valid URL"
	case "datetime":
		return "must be an RFC3339 timestamp"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func optionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
