// Package validate provides struct tag validation for option structs
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	perr "feedmirror/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// FieldLevel aliases validator.FieldLevel
type FieldLevel = validator.FieldLevel

// FieldError aliases validator.FieldError
type FieldError = validator.FieldError

// Svc holds a singleton validator and translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Svc
)

// identRe matches a bare sql identifier
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Init initializes the singleton validator with english translations
func Init() *Svc {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// messages name the env key when there is one, then json, then the field
		v.RegisterTagNameFunc(tagName)

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerShort(v, trans, "min", "{0} must be at least {1}")
		registerShort(v, trans, "max", "{0} must be at most {1}")

		_ = v.RegisterValidation("ident", func(fl FieldLevel) bool {
			return identRe.MatchString(fl.Field().String())
		})
		registerShort(v, trans, "ident", "{0} must be a plain identifier")

		svc = &Svc{Validator: v, Translator: trans}
	})
	return svc
}

// Get returns the validator singleton, initializing on first use
func Get() *Svc {
	if svc == nil {
		return Init()
	}
	return svc
}

// RegisterValidation registers a custom tag
func RegisterValidation(tag string, fn validator.Func) error {
	return Get().Validator.RegisterValidation(tag, fn)
}

// Struct validates v and maps the first failure to a validation error carrying the field name
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return perr.Wrap(inv, perr.ErrorCodeInvalidArgument, "validator internal error")
	}
	field, msg := FieldAndMessage(err)
	e := perr.Newf(perr.ErrorCodeValidation, "%s", msg)
	if field != "" {
		e = perr.WithField(e, field)
	}
	return e
}

// FieldAndMessage returns the first field and translated message
func FieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return "", inv.Error()
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			return fe.Field(), fe.Translate(Get().Translator)
		}
	}
	return "", err.Error()
}

func tagName(fld reflect.StructField) string {
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
}

func registerShort(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
