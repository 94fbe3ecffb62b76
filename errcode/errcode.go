// Package errcode defines the closed set of SMBus/SBS result codes.
package errcode

import (
	"context"
	"errors"
	"os"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Fail           Code = "fail" // generic fallback
	InvalidArg     Code = "invalid_arg"
	BadCRC         Code = "bad_crc"
	Timeout        Code = "timeout"
	UnexpectedData Code = "unexpected_data"
	Overflow       Code = "overflow" // strict block reads only
)

// Phase codes identify the bus phase at which a transport gave up.
// Only the primitive layer produces them; upper layers see Fail.
const (
	StartSent         Code = "start_sent"
	RepeatedStartSent Code = "repeated_start_sent"
	AddrWriteAck      Code = "addr_w_ack"
	AddrWriteNack     Code = "addr_w_nack"
	DataSentAck       Code = "data_tx_ack"
	DataSentNack      Code = "data_tx_nack"
	ArbitrationLost   Code = "arbitration_lost"
	AddrReadAck       Code = "addr_r_ack"
	AddrReadNack      Code = "addr_r_nack"
	DataRecvAck       Code = "data_rx_ack"
	DataRecvNack      Code = "data_rx_nack"
)

var phases = [...]Code{
	StartSent, RepeatedStartSent, AddrWriteAck, AddrWriteNack,
	DataSentAck, DataSentNack, ArbitrationLost, AddrReadAck,
	AddrReadNack, DataRecvAck, DataRecvNack,
}

// IsPhase reports whether c is one of the phase-level transport codes.
func IsPhase(c Code) bool {
	for _, p := range phases {
		if c == p {
			return true
		}
	}
	return false
}

// Coarse folds phase codes into Fail. Other codes pass through.
func Coarse(c Code) Code {
	if IsPhase(c) {
		return Fail
	}
	return c
}

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.Timeout) match a wrapped *E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Wrap builds an *E carrying op and cause. A nil cause with code OK yields nil.
func Wrap(c Code, op string, cause error) error {
	if c == OK && cause == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: cause}
}

// Of extracts a Code from an error, defaulting to Fail.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Fail
}

// MapDriverErr maps low-level transport errors to a Code.
// Transports that already speak Code are passed through untouched.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return Timeout
	}
	type timeout interface{ Timeout() bool }
	var t timeout
	if errors.As(err, &t) && t.Timeout() {
		return Timeout
	}
	return Fail
}
