package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrNeedMoreInput is returned by Decoder.Decode when the decoder
	// did not produce a picture yet.
	ErrNeedMoreInput = errors.New("the decoder needs more input")

	// ErrNoOutput is returned by Encoder.Encode when there is no packet
	// to emit.
	ErrNoOutput = errors.New("the encoder has no output")

	ErrNoVideoStream = errors.New("no video stream")
)

type ErrOpen struct {
	Path string
	Err  error
}

func (e ErrOpen) Error() string {
	return fmt.Sprintf("unable to open '%s': %v", e.Path, e.Err)
}

func (e ErrOpen) Unwrap() error {
	return e.Err
}

type ErrDecode struct {
	Err error
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("unable to decode: %v", e.Err)
}

func (e ErrDecode) Unwrap() error {
	return e.Err
}

type ErrEncode struct {
	Err error
}

func (e ErrEncode) Error() string {
	return fmt.Sprintf("unable to encode: %v", e.Err)
}

func (e ErrEncode) Unwrap() error {
	return e.Err
}

type ErrScale struct {
	Err error
}

func (e ErrScale) Error() string {
	return fmt.Sprintf("unable to scale: %v", e.Err)
}

func (e ErrScale) Unwrap() error {
	return e.Err
}

type ErrWrite struct {
	Err error
}

func (e ErrWrite) Error() string {
	return fmt.Sprintf("unable to write: %v", e.Err)
}

func (e ErrWrite) Unwrap() error {
	return e.Err
}

type ErrSeek struct {
	Err error
}

func (e ErrSeek) Error() string {
	return fmt.Sprintf("unable to seek: %v", e.Err)
}

func (e ErrSeek) Unwrap() error {
	return e.Err
}

type ErrClosed struct{}

func (ErrClosed) Error() string {
	return "closed"
}
