package shop

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPayment           = errors.New("payment provider failure")
)

// ValidationError is a user-facing input problem. Message is shown as is.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the entity that could not be resolved.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " introuvable"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

// ConflictError covers duplicate keys and referential conflicts.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func conflict(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is returned when the workflow forbids From -> To.
type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("Transition de statut invalide : %s → %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrConflict
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validateInput runs the struct tags and turns the first failure into a
// ValidationError.
func validateInput(in interface{}) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return invalid(field, "Le champ %s est requis", field)
	case "email":
		return invalid(field, "Adresse e-mail invalide")
	case "url":
		return invalid(field, "URL invalide pour %s", field)
	case "oneof":
		return invalid(field, "Valeur invalide pour %s", field)
	case "min", "gte", "gt":
		return invalid(field, "Valeur trop petite pour %s", field)
	case "max", "lte", "lt":
		return invalid(field, "Valeur trop grande pour %s", field)
	default:
		return invalid(field, "Valeur invalide pour %s", field)
	}
}

// storeErr maps repository failures onto the user-facing kinds above.
func storeErr(err error, entity, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(entity)
	case errors.Is(err, repository.ErrDuplicate):
		return conflict("%s existe déjà", entity)
	case errors.Is(err, repository.ErrCategoryInUse):
		return conflict("Cette catégorie contient encore des produits")
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
