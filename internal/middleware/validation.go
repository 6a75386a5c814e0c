package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"stockpipe/internal/config"
	apperrors "stockpipe/internal/errors"
)

// TickerParam is the repeatable query parameter selecting tickers
const TickerParam = "ticker"

// tickerQuery is the validated form of the ticker selection
type tickerQuery struct {
	Tickers []string `validate:"max=200,dive,min=1,max=16,ticker"`
}

// QueryValidator validates query parameters with struct tags
type QueryValidator struct {
	validate *validator.Validate
}

// NewQueryValidator creates a query validator with the custom ticker rule
func NewQueryValidator() *QueryValidator {
	v := validator.New()
	_ = v.RegisterValidation("ticker", isValidTicker)
	return &QueryValidator{validate: v}
}

// Tickers returns the ticker selection of r, upper-cased and de-duplicated in
// request order. Both ?ticker=A&ticker=B and ?ticker=A,B are accepted. No
// tickers means no filter.
func (v *QueryValidator) Tickers(r *http.Request) ([]string, error) {
	var q tickerQuery
	seen := make(map[string]bool)
	for _, raw := range r.URL.Query()[TickerParam] {
		for _, part := range strings.Split(raw, ",") {
			t := strings.ToUpper(strings.TrimSpace(part))
			if seen[t] {
				continue
			}
			seen[t] = true
			q.Tickers = append(q.Tickers, t)
		}
	}

	if err := v.validate.Struct(q); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, err
		}
		out := make([]apperrors.ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, apperrors.ValidationError{
				Field:   TickerParam,
				Message: formatTickerError(fe),
			})
		}
		return nil, apperrors.NewValidationErrors(out)
	}
	return q.Tickers, nil
}

func formatTickerError(fe validator.FieldError) string {
	value := fmt.Sprint(fe.Value())
	switch fe.Tag() {
	case "max":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("at most %d tickers may be selected", config.MaxTickersPerView)
		}
		return fmt.Sprintf("ticker %q must be at most %d characters", value, config.MaxTickerLength)
	case "min":
		return "ticker must not be empty"
	case "ticker":
		return fmt.Sprintf("ticker %q may only contain letters, digits, '.' and '-'", value)
	default:
		return fmt.Sprintf("ticker %q failed %s validation", value, fe.Tag())
	}
}

// isValidTicker validates ticker symbol characters
func isValidTicker(fl validator.FieldLevel) bool {
	for _, ch := range fl.Field().String() {
		if !((ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '.' || ch == '-') {
			return false
		}
	}
	return true
}
