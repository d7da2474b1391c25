package processing

import (
	"errors"
	"fmt"
)

// Kind classifies why a run stopped.
type Kind int

const (
	KindUnexpected Kind = iota
	KindSourceFetch
	KindParse
	KindPeriodNotFound
	KindLayoutNotFound
)

func (k Kind) String() string {
	switch k {
	case KindSourceFetch:
		return "source_fetch"
	case KindParse:
		return "parse"
	case KindPeriodNotFound:
		return "period_not_found"
	case KindLayoutNotFound:
		return "layout_not_found"
	default:
		return "unexpected"
	}
}

// RunError is a fatal failure of one reconciliation run.
type RunError struct {
	Kind Kind
	Err  error
}

func (e *RunError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown in the status post when the run fails.
func (e *RunError) UserMessage() string {
	switch e.Kind {
	case KindSourceFetch:
		return fmt.Sprintf("❌ Не удалось получить файл: %v", e.Err)
	case KindParse:
		return fmt.Sprintf("❌ Ошибка Excel: %v", e.Err)
	case KindPeriodNotFound:
		return "⚠️ Не найден период дат."
	case KindLayoutNotFound:
		return "❌ Не найдена колонка 'Фамилия'."
	default:
		return fmt.Sprintf("💥 Ошибка: %v", e.Err)
	}
}

func newRunError(kind Kind, err error) *RunError {
	return &RunError{Kind: kind, Err: err}
}

// AsRunError returns err as a *RunError, classifying anything else as
// unexpected.
func AsRunError(err error) *RunError {
	var re *RunError
	if errors.As(err, &re) {
		return re
	}
	return newRunError(KindUnexpected, err)
}
