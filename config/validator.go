package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/BrianJOC/distro-bootstrap/phases"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	featureNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	packageNamePattern = regexp.MustCompile(`^[A-Za-z0-9@][A-Za-z0-9._+:@-]*$`)
	sshGitPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+:[a-zA-Z0-9._/~-]+$`)
)

// validatorInstance returns the shared validator with the config rules
// registered.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("profile", func(fl validator.FieldLevel) bool {
			_, err := phases.ParseProfile(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("feature_name", func(fl validator.FieldLevel) bool {
			return featureNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("package_name", func(fl validator.FieldLevel) bool {
			return packageNamePattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("abs_path", func(fl validator.FieldLevel) bool {
			return filepath.IsAbs(fl.Field().String())
		})

		_ = v.RegisterValidation("git_url", func(fl validator.FieldLevel) bool {
			raw := strings.TrimSpace(fl.Field().String())
			if raw == "" {
				return false
			}
			if u, err := url.Parse(raw); err == nil {
				switch strings.ToLower(u.Scheme) {
				case "http", "https", "ssh", "git", "file":
					return u.Host != "" || u.Scheme == "file"
				}
			}
			return sshGitPattern.MatchString(raw) || filepath.IsAbs(raw)
		})

		validateInst = v
	})

	return validateInst
}

// convertValidationError normalizes validator errors into ValidationError.
func convertValidationError(err error) error {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		ve := ves[0]
		field := yamlishFieldName(ve)
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag()),
			Err:     err,
		}
	}
	return ValidationError{Field: "config", Message: err.Error(), Err: err}
}

func yamlishFieldName(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	lowered := make([]string, 0, len(parts))
	for _, part := range parts {
		lowered = append(lowered, toSnake(part))
	}
	return strings.Join(lowered, ".")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && s[i-1] != '[' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
