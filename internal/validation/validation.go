// Package validation checks operator input against struct tags and turns
// failures into apperr.ValidationError with one english message per field.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/datetime"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

var mobilePattern = regexp.MustCompile(`^\d{10}$`)

const (
	mobileTag   = "mobile"
	notBlankTag = "notblank"
)

type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
	enums      map[string][]string
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
		enums:    make(map[string][]string),
	}

	_en := en.New()
	uni := ut.New(_en, _en)
	v.translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v.validate, v.translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Dates validate as their "YYYY-MM-DD" form, money as a number.
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(datetime.Date); ok && !d.IsZero() {
			return d.String()
		}
		return ""
	}, datetime.Date{})
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.validate.RegisterValidation(mobileTag, func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
	_ = v.validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.registerMessage(mobileTag, "{0} must be 10 digits")
	v.registerMessage(notBlankTag, "{0} cannot be blank")

	return v
}

// RegisterEnum adds a tag accepting only the listed values. Values may
// contain spaces, which the built-in oneof tag cannot express.
func (v *Validator) RegisterEnum(tag string, values ...string) {
	allowed := slices.Clone(values)
	v.enums[tag] = allowed
	_ = v.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return slices.Contains(allowed, fl.Field().String())
	})
	v.registerMessage(tag, "{0} must be one of "+strings.Join(allowed, ", "))
}

func (v *Validator) registerMessage(tag, text string) {
	_ = v.validate.RegisterTranslation(tag, v.translator,
		func(tr ut.Translator) error {
			return tr.Add(tag, text, true)
		},
		func(tr ut.Translator, fe validator.FieldError) string {
			msg, err := tr.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

// Struct validates s and returns a *apperr.ValidationError listing every
// failing field, or nil.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fe.Field(),
			Message: fe.Translate(v.translator),
		})
	}
	return apperr.NewValidationError(fields...)
}
