// Package smbustest provides a simulated SMBus segment for host-side tests.
//
// Bus implements tinygo's drivers.I2C and routes each Tx to the Target
// attached at the address, recording every exchange. Device is a register
// model that speaks SMBus framing (count bytes, optional PEC).
package smbustest

import (
	"errors"
	"sync"
	"time"

	"smartbattery-go/errcode"
)

// Target answers transactions for one 7-bit address.
type Target interface {
	Tx(w, r []byte) error
}

// Tx is one recorded exchange. R holds what the target returned.
type Tx struct {
	Addr uint16
	W    []byte
	R    []byte
}

// Bus is a simulated segment. The zero value is not usable; call New.
type Bus struct {
	mu      sync.Mutex
	targets map[uint16]Target
	log     []Tx

	failIn  int
	failErr error

	closed  bool
	Speed   uint32
	Timeout time.Duration
}

func New() *Bus {
	return &Bus{targets: make(map[uint16]Target), failIn: -1}
}

// Attach makes t answer at addr.
func (b *Bus) Attach(addr uint16, t Target) {
	b.mu.Lock()
	b.targets[addr] = t
	b.mu.Unlock()
}

// FailNext makes the next Tx return err without reaching the target.
func (b *Bus) FailNext(err error) { b.FailAfter(0, err) }

// FailAfter lets n transactions through and fails the one after with err.
func (b *Bus) FailAfter(n int, err error) {
	b.mu.Lock()
	b.failIn, b.failErr = n, err
	b.mu.Unlock()
}

func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("smbustest: bus closed")
	}
	rec := Tx{Addr: addr, W: append([]byte(nil), w...)}
	defer func() {
		rec.R = append([]byte(nil), r...)
		b.log = append(b.log, rec)
	}()

	if b.failIn == 0 {
		b.failIn = -1
		return b.failErr
	}
	if b.failIn > 0 {
		b.failIn--
	}
	t, ok := b.targets[addr]
	if !ok {
		if len(w) == 0 && len(r) > 0 {
			return errcode.AddrReadNack
		}
		return errcode.AddrWriteNack
	}
	return t.Tx(w, r)
}

// Log returns a copy of the recorded exchanges.
func (b *Bus) Log() []Tx {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Tx(nil), b.log...)
}

// Last returns the most recent exchange.
func (b *Bus) Last() (Tx, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.log) == 0 {
		return Tx{}, false
	}
	return b.log[len(b.log)-1], true
}

// Reset clears the log.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.log = nil
	b.mu.Unlock()
}

// ConfigureBus records the requested clock and timeout.
func (b *Bus) ConfigureBus(speedHz uint32, timeout time.Duration) error {
	b.mu.Lock()
	b.Speed, b.Timeout = speedHz, timeout
	b.mu.Unlock()
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// BlockBus adds count-first block reads to Bus. The returned length covers
// the count byte, the payload and the PEC byte when requested.
type BlockBus struct {
	*Bus
}

func NewBlock() *BlockBus { return &BlockBus{Bus: New()} }

func (b *BlockBus) TxBlock(addr uint16, w, r []byte, pec bool) (int, error) {
	if len(r) == 0 {
		return 0, errcode.InvalidArg
	}
	if err := b.Tx(addr, w, r); err != nil {
		return 0, err
	}
	n := 1 + int(r[0])
	if pec {
		n++
	}
	if n > len(r) {
		n = len(r)
	}
	return n, nil
}
