package id

import "errors"

var (
	// ErrInvalidUUID UUID 格式错误。
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrInvalidULID ULID 格式错误。
	ErrInvalidULID = errors.New("invalid ULID format")
)
