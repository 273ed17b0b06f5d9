package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// SetLogLevel aligns the package logger with the configured LOG_LEVEL
func SetLogLevel(level string) {
	if parsed, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// validatorInstance returns the shared validator; it caches struct metadata
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report fields by their JSON name
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// validateStruct runs the validate tags of v and maps violations to field reasons
func validateStruct(v any) map[string]string {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"record": err.Error()}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "required"
		case "max":
			fields[fe.Field()] = fmt.Sprintf("must be at most %s characters", fe.Param())
		case "min":
			fields[fe.Field()] = fmt.Sprintf("must be at least %s characters", fe.Param())
		case "len":
			fields[fe.Field()] = fmt.Sprintf("must be %s characters long", fe.Param())
		case "url":
			fields[fe.Field()] = "must be a valid URL"
		case "email":
			fields[fe.Field()] = "must be a valid email address"
		case "hexcolor":
			fields[fe.Field()] = "must be a #RRGGBB color"
		default:
			fields[fe.Field()] = fmt.Sprintf("failed the %q rule", fe.Tag())
		}
	}
	return fields
}
