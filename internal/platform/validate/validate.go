// Package validate holds the process-wide validator with English translations.
// Options structs and decoded documents (credentials, sink manifests) are checked through it
package validate

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Svc holds a singleton validator and translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Svc

	// warehouse identifiers shared by BigQuery datasets/tables and ClickHouse databases/tables
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,1023}$`)
)

// Get returns the validator singleton, initializing on first use
func Get() *Svc {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// messages name the env key or json key the user actually controls
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"env", "json"} {
				tag := fld.Tag.Get(key)
				if idx := strings.Index(tag, ","); idx >= 0 {
					tag = tag[:idx]
				}
				if tag != "" && tag != "-" {
					return tag
				}
			}
			return fld.Name
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)
		registerShort(v, trans, "min", "{0} must be at least {1}")
		registerShort(v, trans, "max", "{0} must be at most {1}")

		_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
			return identRe.MatchString(fl.Field().String())
		})
		registerShort(v, trans, "ident", "{0} must be a warehouse identifier (letters, digits, underscore)")

		svc = &Svc{Validator: v, Translator: trans}
	})
	return svc
}

// Struct validates s and maps the first failure to an InvalidArgument error carrying the field
func Struct(s any) error {
	err := Get().Validator.Struct(s)
	if err == nil {
		return nil
	}
	if inv, ok := err.(*validator.InvalidValidationError); ok {
		logger.Get().Error().Err(inv).Msg("validator internal error")
		return perr.Wrap(inv, perr.ErrorCodeUnknown, "validation error")
	}
	field, msg := FieldAndMessage(err)
	return perr.WithField(perr.New(perr.ErrorCodeInvalidArgument, msg), field)
}

// FieldAndMessage returns the first failing field and its translated message
func FieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			return fe.Field(), fe.Translate(Get().Translator)
		}
	}
	return "", err.Error()
}

// registerShort installs a one-line translation; {0} is the field and {1} the param
func registerShort(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error { return ut.Add(tag, text, true) },
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
