package ebus

import "errors"

var (
	// ErrInvalidToken indicates that a reply was attempted with a RequestToken that does not belong
	// to the request currently pending on the driver, or after that request was answered.
	ErrInvalidToken = errors.New("ebus: invalid or expired request token")

	// ErrPayloadTooLarge indicates that a payload exceeds MaxDataLen bytes.
	ErrPayloadTooLarge = errors.New("ebus: payload too large")

	// ErrInvalidEscape indicates an escape symbol followed by a code other than 0x00 or 0x01.
	ErrInvalidEscape = errors.New("ebus: invalid escape sequence")

	// ErrIncompleteEscape indicates that a byte sequence ends with a dangling escape symbol.
	ErrIncompleteEscape = errors.New("ebus: incomplete escape sequence")
)
