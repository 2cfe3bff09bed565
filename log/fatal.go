package log

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Common errors that can happen on node startup.
var (
	ErrMalformedConfig  = newFatalError("ERR_MALFORMED_CONFIG", "config file is malformed: %v")
	ErrEnsureDataDir    = newFatalError("ERR_ENSURE_DATA_DIR", "could not open/create data dir %v: %v")
	ErrRetrieveIdentity = newFatalError("ERR_RETRIEVE_IDENTITY", "could not retrieve identity: %v")
	ErrOpenDatabase     = newFatalError("ERR_OPEN_DATABASE", "could not open database %v: %v")
)

// fatalError describes an error that stops the node before it starts serving.
type fatalError struct {
	Code string
	Text string
	Args []any
}

func newFatalError(code, text string) func(args ...any) *fatalError {
	return func(args ...any) *fatalError {
		return &fatalError{
			Code: code,
			Text: text,
			Args: args,
		}
	}
}

func (fe fatalError) Error() string {
	return fmt.Sprintf(fe.Text, fe.Args...)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (fe fatalError) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("code", fe.Code)
	encoder.AddString("error", fe.Error())
	return nil
}
