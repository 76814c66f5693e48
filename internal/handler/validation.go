package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// RequestValidator validates decoded request bodies and renders failures
// as field-level messages in plain English.
type RequestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewRequestValidator() (*RequestValidator, error) {
	locale := en.New()
	uni := ut.New(locale, locale)

	translator, ok := uni.GetTranslator("en")
	if !ok {
		return nil, errors.New("failed to get en translator")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
		return nil, err
	}

	return &RequestValidator{validate: validate, translator: translator}, nil
}

// decodeValid decodes the JSON body into v and validates it. A false return
// means the response has already been written.
func (rv *RequestValidator) decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}

	if err := rv.validate.Struct(v); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			writeFieldErrors(w, rv.translate(validationErrs))
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request")
		return false
	}

	return true
}

func (rv *RequestValidator) translate(errs validator.ValidationErrors) []fieldError {
	out := make([]fieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, fieldError{
			Field: strings.ToLower(fe.Field()[:1]) + fe.Field()[1:],
			Msg:   fe.Translate(rv.translator),
		})
	}

	return out
}
