// Package env binds environment variables onto provider config fields and
// renders validator errors in terms of those variables.
package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Var binds one environment variable to a config field. Unset or empty
// variables leave the field untouched.
type Var struct {
	Key   string
	apply func(string) error
}

func String(key string, dst *string) Var {
	return Var{Key: key, apply: func(v string) error {
		*dst = v
		return nil
	}}
}

func Int(key string, dst *int) Var {
	return Var{Key: key, apply: func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}}
}

func Float32(key string, dst *float32) Var {
	return Var{Key: key, apply: func(v string) error {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return err
		}
		*dst = float32(f)
		return nil
	}}
}

// Seconds reads a whole number of seconds into a duration.
func Seconds(key string, dst *time.Duration) Var {
	return Var{Key: key, apply: func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = time.Duration(n) * time.Second
		return nil
	}}
}

// Load applies every set variable in order and reports all malformed values.
func Load(vars ...Var) error {
	var errs []error
	for _, v := range vars {
		raw, ok := os.LookupEnv(v.Key)
		if !ok || raw == "" {
			continue
		}
		if err := v.apply(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", v.Key, raw, err))
		}
	}
	return errors.Join(errs...)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg's validate tags. The first failing field is reported
// under its entry in names, falling back to the Go field name.
func Validate(cfg any, names map[string]string) error {
	err := validate.Struct(cfg)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fe := verrs[0]
	lookup := func(field string) string {
		if n, ok := names[field]; ok {
			return n
		}
		return field
	}
	return errors.New(describe(lookup(fe.Field()), lookup(fe.Param()), fe))
}

func describe(name, param string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "required_with":
		return fmt.Sprintf("%s must be set when %s is set", name, param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", name, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", name, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q, got %v", name, fe.Tag(), fe.Value())
	}
}
