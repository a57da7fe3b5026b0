package errors

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	translator     ut.Translator
	translatorOnce sync.Once
)

// Translator returns the English translator registered on gin's validator.
func Translator() ut.Translator {
	translatorOnce.Do(func() {
		eng := en.New()
		uni := ut.New(eng, eng)
		translator, _ = uni.GetTranslator("en")
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = en_translations.RegisterDefaultTranslations(v, translator)
		}
	})
	return translator
}

// ValidationMessage turns a binding error into a human readable sentence.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		trans := Translator()
		messages := make([]string, 0, len(verrs))
		for _, e := range verrs {
			messages = append(messages, e.Translate(trans))
		}
		return strings.Join(messages, ", ")
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return "Invalid value for field " + typeErr.Field
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "Malformed JSON body"
	}

	return "Invalid request body"
}
