package shop

import "errors"

// InternalErrorMessage is what customers see for anything unexpected.
const InternalErrorMessage = "Une erreur interne est survenue"

// ActionResult is the outcome of an admin action as the back office reads it.
type ActionResult struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(data interface{}) ActionResult {
	return ActionResult{Success: true, Data: data}
}

func Failed(err error) ActionResult {
	return ActionResult{Error: UserMessage(err)}
}

// IsUserError reports whether err is meant to be shown to the user as is.
func IsUserError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}

// UserMessage hides internal failures behind a generic French message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsUserError(err):
		return err.Error()
	case errors.Is(err, ErrPayment):
		return "Le paiement n'a pas pu être initialisé, veuillez réessayer"
	default:
		return InternalErrorMessage
	}
}
