package validation_test

import (
	"errors"
	"testing"

	"github.com/Younus004/wisdom/internal/apperr"
	"github.com/Younus004/wisdom/internal/datetime"
	"github.com/Younus004/wisdom/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Name   string          `json:"name" validate:"notblank"`
	Mobile string          `json:"mobile" validate:"mobile"`
	Mode   string          `json:"mode" validate:"payment_mode"`
	Due    datetime.Date   `json:"due" validate:"required"`
	Fee    decimal.Decimal `json:"fee" validate:"gte=0"`
}

func newValidator() *validation.Validator {
	v := validation.New()
	v.RegisterEnum("payment_mode", "Cash", "Online Transfer")
	return v
}

func valid() form {
	return form{
		Name:   "Asha",
		Mobile: "9876543210",
		Mode:   "Online Transfer",
		Due:    datetime.Date{Year: 2026, Month: 6, Day: 1},
		Fee:    decimal.NewFromInt(500),
	}
}

func fieldMessages(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
	out := make(map[string]string)
	for _, f := range ve.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestValidator_Struct(t *testing.T) {
	v := newValidator()

	t.Run("valid form passes", func(t *testing.T) {
		assert.NoError(t, v.Struct(valid()))
	})

	t.Run("mobile must be ten digits", func(t *testing.T) {
		f := valid()
		f.Mobile = "98765"
		msgs := fieldMessages(t, v.Struct(f))
		assert.Equal(t, "mobile must be 10 digits", msgs["mobile"])
	})

	t.Run("enum with spaces", func(t *testing.T) {
		f := valid()
		f.Mode = "Barter"
		msgs := fieldMessages(t, v.Struct(f))
		assert.Equal(t, "mode must be one of Cash, Online Transfer", msgs["mode"])
	})

	t.Run("blank name and zero date", func(t *testing.T) {
		f := valid()
		f.Name = "   "
		f.Due = datetime.Date{}
		msgs := fieldMessages(t, v.Struct(f))
		assert.Equal(t, "name cannot be blank", msgs["name"])
		assert.Contains(t, msgs, "due")
	})

	t.Run("negative money", func(t *testing.T) {
		f := valid()
		f.Fee = decimal.NewFromInt(-1)
		msgs := fieldMessages(t, v.Struct(f))
		assert.Contains(t, msgs, "fee")
	})
}
