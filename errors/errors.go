package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrOnlyCensoredFiles = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords        = fmt.Errorf("no words have been found")

	ErrValidation      = fmt.Errorf("invalid input")
	ErrPayloadTooLarge = fmt.Errorf("payload exceeds the upload limit")
	ErrBlobNotFound    = fmt.Errorf("blob not found")
	ErrBlobExists      = fmt.Errorf("blob already exists")
	ErrSinkClosed      = fmt.Errorf("write sink already closed")
)
