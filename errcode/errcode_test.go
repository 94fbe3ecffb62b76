package errcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"ok":               OK,
		"fail":             Fail,
		"invalid_arg":      InvalidArg,
		"bad_crc":          BadCRC,
		"timeout":          Timeout,
		"unexpected_data":  UnexpectedData,
		"addr_w_nack":      AddrWriteNack,
		"arbitration_lost": ArbitrationLost,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestCoarseFoldsPhases(t *testing.T) {
	for _, p := range phases {
		if !IsPhase(p) {
			t.Fatalf("%s not recognised as phase", p)
		}
		if got := Coarse(p); got != Fail {
			t.Fatalf("Coarse(%s) = %s, want fail", p, got)
		}
	}
	for _, c := range []Code{OK, Fail, InvalidArg, BadCRC, Timeout, UnexpectedData, Overflow} {
		if IsPhase(c) {
			t.Fatalf("%s wrongly treated as phase", c)
		}
		if Coarse(c) != c {
			t.Fatalf("Coarse(%s) changed the code", c)
		}
	}
}

func TestOfUnwraps(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should map to ok")
	}
	if Of(BadCRC) != BadCRC {
		t.Fatal("bare code lost")
	}
	e := Wrap(Fail, "read_word", AddrWriteNack)
	if Of(e) != Fail {
		t.Fatalf("Of(E) = %s", Of(e))
	}
	if !errors.Is(e, AddrWriteNack) {
		t.Fatal("phase cause not reachable through errors.Is")
	}
	if !errors.Is(e, Fail) {
		t.Fatal("own code not matched by errors.Is")
	}
	wrapped := fmt.Errorf("ctx: %w", Wrap(Timeout, "block_read", nil))
	if Of(wrapped) != Timeout {
		t.Fatalf("Of(fmt-wrapped) = %s", Of(wrapped))
	}
	if Of(errors.New("boom")) != Fail {
		t.Fatal("foreign error should default to fail")
	}
	if Wrap(OK, "x", nil) != nil {
		t.Fatal("Wrap(OK, nil) must be nil")
	}
}

type netTimeout struct{}

func (netTimeout) Error() string { return "i/o timeout" }
func (netTimeout) Timeout() bool { return true }

func TestMapDriverErr(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{DataSentNack, DataSentNack},
		{fmt.Errorf("tx: %w", ArbitrationLost), ArbitrationLost},
		{context.DeadlineExceeded, Timeout},
		{os.ErrDeadlineExceeded, Timeout},
		{netTimeout{}, Timeout},
		{errors.New("nack"), Fail},
	}
	for _, c := range cases {
		if got := MapDriverErr(c.err); got != c.want {
			t.Fatalf("MapDriverErr(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestErrorString(t *testing.T) {
	e := &E{C: InvalidArg, Op: "block_write", Msg: "empty payload"}
	if got, want := e.Error(), "block_write: invalid_arg: empty payload"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
