package recorder

import "errors"

var (
	ErrQueueFull       = errors.New("tape queue full")
	ErrClosed          = errors.New("tape writer closed")
	ErrNotStarted      = errors.New("tape writer not started")
	ErrAlreadyStarted  = errors.New("tape writer already started")
	ErrPayloadTooLarge = errors.New("tape payload too large")

	ErrInvalidMagic            = errors.New("tape invalid magic")
	ErrUnsupportedRecordVer    = errors.New("tape unsupported record version")
	ErrInvalidRecordHeaderSize = errors.New("tape invalid header size")
	ErrChecksumMismatch        = errors.New("tape checksum mismatch")
)
