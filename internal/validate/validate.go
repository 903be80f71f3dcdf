package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"qrshop/internal/domain"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	rePhone = regexp.MustCompile(`^[0-9]{7,15}$`)
	reTaxID = regexp.MustCompile(`^[0-9]{5,15}$`)
	reRef   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("movementkind", func(fl validator.FieldLevel) bool {
			return domain.MovementKind(fl.Field().String()).Valid()
		})
	})
	return v
}

// Struct checks s against its validate tags and reports the first failing
// field as a *domain.ValidationError named after its json key.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.Invalid("", "invalid request")
	}
	fe := verrs[0]
	return domain.Invalid(fe.Field(), message(fe))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt", "min":
		return "must be at least " + minOf(fe)
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email"
	case "numeric":
		return "must be a number"
	case "oneof", "movementkind":
		return "has an unsupported value"
	}
	return "is invalid"
}

func minOf(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		if n, err := strconv.Atoi(fe.Param()); err == nil {
			return strconv.Itoa(n + 1)
		}
	}
	return fe.Param()
}

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 100 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Phone accepts a local number with optional spaces or dashes and returns
// its digits.
func Phone(s string) (string, bool) {
	s = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	return s, rePhone.MatchString(s)
}

func TaxID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reTaxID.MatchString(s)
}

// ID parses a positive numeric route parameter.
func ID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil && n > 0
}

// Reference validates a provider transaction id or order reference token.
func Reference(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reRef.MatchString(s)
}
