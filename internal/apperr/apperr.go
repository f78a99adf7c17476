// Package apperr defines the error taxonomy shared by the store, service and
// HTTP layers. Every error carries enough structured context for a client to
// render a message without parsing free text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInsufficientStock
	KindOutOfStock
	KindEmptyCart
	KindUnauthorized
	KindForbidden
	KindConflict
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindOutOfStock:
		return "OUT_OF_STOCK"
	case KindEmptyCart:
		return "EMPTY_CART"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindConflict:
		return "CONFLICT"
	case KindInvalid:
		return "INVALID"
	default:
		return "INTERNAL_ERROR"
	}
}

// HTTPStatus maps a kind to the status code the API responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInsufficientStock, KindOutOfStock, KindEmptyCart, KindInvalid:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Details is the structured context attached to an error. Zero fields are
// omitted from the JSON rendering.
type Details struct {
	Entity      string `json:"entity,omitempty"`
	ID          int64  `json:"id,omitempty"`
	ProductID   int64  `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Requested   int    `json:"requested,omitempty"`
	Available   *int   `json:"available,omitempty"`
}

type Error struct {
	Kind    Kind
	Message string
	Details Details
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound)
// holds for every not-found error regardless of its details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is. Never returned directly; constructors below build
// errors with context.
var (
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrOutOfStock        = &Error{Kind: KindOutOfStock, Message: "out of stock"}
	ErrEmptyCart         = &Error{Kind: KindEmptyCart, Message: "cart is empty"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalid           = &Error{Kind: KindInvalid, Message: "invalid input"}
)

func NotFound(entity string, id int64) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %d not found", entity, id),
		Details: Details{Entity: entity, ID: id},
	}
}

func InsufficientStock(productID int64, name string, requested, available int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("not enough stock for %s: available %d, requested %d", name, available, requested),
		Details: Details{
			Entity:      "product",
			ProductID:   productID,
			ProductName: name,
			Requested:   requested,
			Available:   &available,
		},
	}
}

func OutOfStock(productID int64, name string) *Error {
	zero := 0
	return &Error{
		Kind:    KindOutOfStock,
		Message: fmt.Sprintf("%s is out of stock", name),
		Details: Details{
			Entity:      "product",
			ProductID:   productID,
			ProductName: name,
			Available:   &zero,
		},
	}
}

func EmptyCart(userID int64) *Error {
	return &Error{
		Kind:    KindEmptyCart,
		Message: "cart is empty",
		Details: Details{Entity: "user", ID: userID},
	}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

func Invalid(message string) *Error {
	return &Error{Kind: KindInvalid, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
