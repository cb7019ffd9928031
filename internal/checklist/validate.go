package checklist

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldError points at one invalid field, e.g. "section1.q11_foto_pdst".
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Path + ": " + e.Message
}

const (
	msgRequired      = "Campo obrigatório"
	msgInvalidOption = "Opção inválida"
	msgMinPhotos     = "Adicione pelo menos %d foto(s)"
	msgNotNumber     = "Informe um número válido"
	msgNotText       = "Informe um texto"
	msgNotPhotos     = "Lista de fotos inválida"
)

// Validate checks a submission for final submit. Conditional questions are
// required only when their parent is YES. Unknown keys are not reported here.
func (c *Catalog) Validate(sub *Submission) []FieldError {
	var errs []FieldError
	for _, q := range c.questions {
		info, _ := c.Section(q.Section)
		path := info.Key + "." + q.Key
		value, present := sub.Section(q.Section).Get(q.Key)
		if present && isEmpty(value) {
			present = false
		}

		if !present {
			if c.required(sub, q) {
				if q.Kind == KindPhotoArray {
					errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf(msgMinPhotos, max(q.MinPhotos, 1))})
				} else {
					errs = append(errs, FieldError{Path: path, Message: msgRequired})
				}
			}
			continue
		}

		switch q.Kind {
		case KindChoice:
			text, ok := value.(String)
			if !ok || !q.allows(Answer(strings.ToUpper(strings.TrimSpace(string(text))))) {
				errs = append(errs, FieldError{Path: path, Message: msgInvalidOption})
			}
		case KindFreeText:
			switch typed := value.(type) {
			case String:
				if q.Numeric {
					if _, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(string(typed)), ",", "."), 64); err != nil {
						errs = append(errs, FieldError{Path: path, Message: msgNotNumber})
					}
				}
			case Number:
			default:
				errs = append(errs, FieldError{Path: path, Message: msgNotText})
			}
		case KindPhotoArray:
			urls, ok := photoURLs(value)
			if !ok {
				errs = append(errs, FieldError{Path: path, Message: msgNotPhotos})
				continue
			}
			if len(urls) < q.MinPhotos {
				errs = append(errs, FieldError{Path: path, Message: fmt.Sprintf(msgMinPhotos, q.MinPhotos)})
			}
		}
	}
	return errs
}

func (c *Catalog) required(sub *Submission, q Question) bool {
	if q.Optional {
		return false
	}
	if q.ConditionalOn == "" {
		return true
	}
	parent, ok := c.Lookup(q.ConditionalOn)
	if !ok {
		return false
	}
	value, ok := sub.Section(parent.Section).Get(parent.Key)
	if !ok {
		return false
	}
	text, ok := value.(String)
	return ok && NormalizeAnswer(string(text)) == AnswerYes
}
