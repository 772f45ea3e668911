package api

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"futureintern/internship-app/internal/domain"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators installs the custom binding tags on gin's validator.
// It is safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("unexpected validator engine")
			return
		}

		// Report JSON names in field errors.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})

		validators := map[string]validator.Func{
			"internship_domain": func(fl validator.FieldLevel) bool { return domain.IsValidDomain(fl.Field().String()) },
			"qualification":     func(fl validator.FieldLevel) bool { return domain.IsValidQualification(fl.Field().String()) },
			"linkedin":          func(fl validator.FieldLevel) bool { return isLinkedInHost(fl.Field().String()) },
		}
		for tag, fn := range validators {
			if err := v.RegisterValidation(tag, fn); err != nil {
				registerErr = fmt.Errorf("register %s: %w", tag, err)
				return
			}
		}
	})
	return registerErr
}

// isLinkedInHost checks only the host; pair the tag with http_url.
func isLinkedInHost(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com")
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	if field == "contact" && fe.Tag() != "required" {
		return "Valid 10-digit contact number required"
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Valid email required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "internship_domain":
		return "Valid domain required"
	case "qualification":
		return "Valid qualification required"
	case "http_url":
		return "Valid URL required"
	case "linkedin":
		return "Valid LinkedIn URL required"
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
