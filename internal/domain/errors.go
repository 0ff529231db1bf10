package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrMessageNotFound   = errors.New("message not found")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidInput      = errors.New("invalid input")
)

// Kind classifies every error the chat core can surface to a caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotAuthenticated
	KindPermissionDenied
	KindAlreadyInState
	KindNotFound
	KindQuotaExceeded
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindPermissionDenied:
		return "permission_denied"
	case KindAlreadyInState:
		return "already_in_state"
	case KindNotFound:
		return "not_found"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Reason is the fine-grained cause of a rejection.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonRoomNotFound        Reason = "room_not_found"
	ReasonMessageNotFound     Reason = "message_not_found"
	ReasonActorBanned         Reason = "actor_banned"
	ReasonActorKicked         Reason = "actor_kicked"
	ReasonRequiresAdmin       Reason = "requires_admin"
	ReasonRequiresMasterAdmin Reason = "requires_master_admin"
	ReasonAlreadyAdmin        Reason = "already_admin"
	ReasonAlreadyBanned       Reason = "already_banned"
	ReasonAlreadyMasterAdmin  Reason = "already_master_admin"
	ReasonNotMasterAdmin      Reason = "not_master_admin"
	ReasonNotBanned           Reason = "not_banned"
	ReasonMissingTarget       Reason = "missing_target"
	ReasonUnknownAction       Reason = "unknown_action"
	ReasonRoomQuota           Reason = "room_quota"
	ReasonMessageRate         Reason = "message_rate"
)

var reasonKinds = map[Reason]Kind{
	ReasonRoomNotFound:        KindNotFound,
	ReasonMessageNotFound:     KindNotFound,
	ReasonActorBanned:         KindPermissionDenied,
	ReasonActorKicked:         KindPermissionDenied,
	ReasonRequiresAdmin:       KindPermissionDenied,
	ReasonRequiresMasterAdmin: KindPermissionDenied,
	ReasonAlreadyAdmin:        KindAlreadyInState,
	ReasonAlreadyBanned:       KindAlreadyInState,
	ReasonAlreadyMasterAdmin:  KindAlreadyInState,
	ReasonNotMasterAdmin:      KindAlreadyInState,
	ReasonNotBanned:           KindAlreadyInState,
	ReasonMissingTarget:       KindValidation,
	ReasonUnknownAction:       KindValidation,
	ReasonRoomQuota:           KindQuotaExceeded,
	ReasonMessageRate:         KindQuotaExceeded,
}

var reasonMessages = map[Reason]string{
	ReasonRoomNotFound:        "Room not found",
	ReasonMessageNotFound:     "Message not found",
	ReasonActorBanned:         "You are banned from this room",
	ReasonActorKicked:         "You have been kicked from this room, try again later",
	ReasonRequiresAdmin:       "Only admins can do this",
	ReasonRequiresMasterAdmin: "Only master admins can do this",
	ReasonAlreadyAdmin:        "User is already an admin",
	ReasonAlreadyBanned:       "User is already banned",
	ReasonAlreadyMasterAdmin:  "User is already a master admin",
	ReasonNotMasterAdmin:      "User is not a master admin",
	ReasonNotBanned:           "User is not banned",
	ReasonMissingTarget:       "A target user is required",
	ReasonUnknownAction:       "Unknown moderation action",
	ReasonRoomQuota:           "You have reached the maximum number of rooms",
	ReasonMessageRate:         "You are sending messages too fast",
}

// Kind reports the error kind a reason belongs to.
func (r Reason) Kind() Kind {
	return reasonKinds[r]
}

// Message returns the human readable text for a reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// Error is the typed error surfaced by the chat core.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a typed error against the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrRoomNotFound:
		return e.Reason == ReasonRoomNotFound
	case ErrMessageNotFound:
		return e.Reason == ReasonMessageNotFound
	case ErrNotAuthenticated:
		return e.Kind == KindNotAuthenticated
	case ErrQuotaExceeded:
		return e.Kind == KindQuotaExceeded
	case ErrStoreUnavailable:
		return e.Kind == KindStoreUnavailable
	}
	return false
}

// Denied builds the error for a rejection reason.
func Denied(reason Reason) *Error {
	return &Error{
		Kind:    reason.Kind(),
		Reason:  reason,
		Message: reason.Message(),
	}
}

// NotAuthenticated is returned when an action needs an identity and none was supplied.
func NotAuthenticated() *Error {
	return &Error{
		Kind:    KindNotAuthenticated,
		Message: "You need to sign in to do this",
	}
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	Field string
	Err   error
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", v.Field, v.Err)
}

func (v *ValidationError) Unwrap() error {
	return v.Err
}

// Unavailable wraps a back-end failure so that callers can tell it apart from business rejections.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// KindOf classifies any error returned by the chat core.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrMessageNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuotaExceeded
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	}
	return KindUnknown
}
