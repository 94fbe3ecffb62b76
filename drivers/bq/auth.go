package bq

import (
	"crypto/sha1"
	"fmt"
	"time"

	"go.uber.org/zap"

	"smartbattery-go/drivers/sbs"
	"smartbattery-go/drivers/smbus"
	"smartbattery-go/errcode"
)

const (
	// Settle is how long the gauge needs to apply a security change.
	Settle = 500 * time.Millisecond
	// KeyGap separates the two words of a static key.
	KeyGap = 50 * time.Millisecond

	challengeLen = 20
	statusLen    = 3
)

// State is the gauge security level.
type State uint8

const (
	StateUnknown State = iota
	Sealed
	Unsealed
	FullAccess
)

func (s State) String() string {
	switch s {
	case Sealed:
		return "sealed"
	case Unsealed:
		return "unsealed"
	case FullAccess:
		return "full_access"
	}
	return "unknown"
}

// ParseState accepts the names printed by String.
func ParseState(s string) (State, bool) {
	for _, st := range []State{Sealed, Unsealed, FullAccess} {
		if st.String() == s {
			return st, true
		}
	}
	return StateUnknown, false
}

// accessCmd is the MAC sub-command that requests entry to s.
func (s State) accessCmd() (uint16, bool) {
	switch s {
	case Unsealed:
		return MACUnsealDevice, true
	case FullAccess:
		return MACFullAccessDevice, true
	}
	return 0, false
}

// stateOf reads the security level from an OperationStatus block.
// byte1.bit0 and byte0.bit3 together select the state.
func stateOf(st []byte) State {
	hi, lo := st[1]&0x01 != 0, st[0]&0x08 != 0
	switch {
	case hi && lo:
		return Sealed
	case hi:
		return Unsealed
	case lo:
		return FullAccess
	}
	return StateUnknown
}

// channel selects the MAC register pair a sequence talks through.
type channel uint8

const (
	viaMAC channel = iota
	viaBlock
)

func (c channel) command() sbs.Command {
	if c == viaBlock {
		return sbs.ManufacturerBlockAccess
	}
	return sbs.ManufacturerAccess
}

// Gauge wraps a battery that is a bq-series fuel gauge.
type Gauge struct {
	bat  *sbs.Battery
	bus  *smbus.Bus
	addr uint8
	log  *zap.Logger
}

func New(bat *sbs.Battery) *Gauge {
	return &Gauge{
		bat:  bat,
		bus:  bat.Bus(),
		addr: bat.Address(),
		log:  bat.Logger().Named("bq"),
	}
}

func (g *Gauge) Battery() *sbs.Battery { return g.bat }

// ManufacturerCommand issues sub through ManufacturerAccess and returns the
// ManufacturerData payload.
func (g *Gauge) ManufacturerCommand(sub uint16) ([]byte, error) {
	return g.bat.ManufacturerAccess(sub)
}

// BlockCommand issues sub through ManufacturerBlockAccess.
func (g *Gauge) BlockCommand(sub uint16) ([]byte, error) {
	return g.bat.ManufacturerBlockAccess(sub)
}

func (g *Gauge) mac(c channel, sub uint16) ([]byte, error) {
	if c == viaBlock {
		return g.BlockCommand(sub)
	}
	return g.ManufacturerCommand(sub)
}

// OperationStatus returns the 3-byte OperationStatus block.
func (g *Gauge) OperationStatus() ([]byte, error) { return g.status(viaMAC) }

func (g *Gauge) status(c channel) ([]byte, error) {
	st, err := g.mac(c, MACOperationStatus)
	if err != nil {
		return nil, err
	}
	if len(st) != statusLen {
		return st, &errcode.E{C: errcode.UnexpectedData, Op: "operation_status",
			Msg: fmt.Sprintf("got %d bytes, want %d", len(st), statusLen)}
	}
	return st, nil
}

// SecurityState reads OperationStatus and reports the current level.
func (g *Gauge) SecurityState() (State, error) {
	st, err := g.OperationStatus()
	if err != nil {
		return StateUnknown, err
	}
	return stateOf(st), nil
}

// AccessSHA1 moves the gauge to target (Unsealed or FullAccess) with the
// SHA-1 challenge/response over ManufacturerAccess.
func (g *Gauge) AccessSHA1(target State, key [16]byte) error {
	return g.accessSHA1(viaMAC, target, key)
}

// BlockAccessSHA1 is AccessSHA1 over ManufacturerBlockAccess.
func (g *Gauge) BlockAccessSHA1(target State, key [16]byte) error {
	return g.accessSHA1(viaBlock, target, key)
}

func (g *Gauge) accessSHA1(c channel, target State, key [16]byte) error {
	sub, ok := target.accessCmd()
	if !ok {
		return badTarget(target)
	}
	resp, err := g.mac(c, sub)
	if err != nil {
		return err
	}
	if len(resp) != challengeLen {
		return &errcode.E{C: errcode.UnexpectedData, Op: "challenge",
			Msg: fmt.Sprintf("got %d bytes, want %d", len(resp), challengeLen)}
	}
	var challenge [challengeLen]byte
	copy(challenge[:], resp)
	g.log.Debug("challenge received", zap.Stringer("target", target), zap.Binary("challenge", challenge[:]))

	digest := Digest(key, challenge)
	if err := g.bus.BlockWrite(g.addr, regAuthResponse, digest[:]); err != nil {
		return err
	}
	g.bus.Delay(Settle)
	return g.confirm(c, target)
}

// AccessKey moves the gauge to target with a two-word static key written
// to ManufacturerAccess.
func (g *Gauge) AccessKey(target State, key [2]uint16) error {
	if _, ok := target.accessCmd(); !ok {
		return badTarget(target)
	}
	for i, w := range key {
		if i > 0 {
			g.bus.Delay(KeyGap)
		}
		if err := g.bus.WriteWord(g.addr, sbs.RegManufacturerAccess, w); err != nil {
			return err
		}
	}
	g.bus.Delay(Settle)
	return g.confirm(viaMAC, target)
}

// BlockAccessKey writes the key words through ManufacturerBlockAccess.
func (g *Gauge) BlockAccessKey(target State, key [2]uint16) error {
	if _, ok := target.accessCmd(); !ok {
		return badTarget(target)
	}
	for i, w := range key {
		if i > 0 {
			g.bus.Delay(KeyGap)
		}
		if err := g.bus.Write16Block(g.addr, sbs.RegManufacturerBlockAccess, w); err != nil {
			return err
		}
	}
	g.bus.Delay(Settle)
	return g.confirm(viaBlock, target)
}

// Seal returns the gauge to Sealed from any state.
func (g *Gauge) Seal() error {
	if err := g.bus.WriteWord(g.addr, sbs.RegManufacturerAccess, MACSealDevice); err != nil {
		return err
	}
	g.bus.Delay(Settle)
	return g.confirm(viaMAC, Sealed)
}

// confirm checks that OperationStatus shows target. A mismatch is a plain
// failure; the caller decides whether to run the sequence again.
func (g *Gauge) confirm(c channel, target State) error {
	st, err := g.status(c)
	if err != nil {
		return err
	}
	if got := stateOf(st); got != target {
		g.log.Warn("security state unchanged",
			zap.Stringer("target", target),
			zap.Stringer("state", got),
			zap.Binary("status", st))
		return &errcode.E{C: errcode.Fail, Op: target.String(),
			Msg: fmt.Sprintf("gauge reports %s (status % x)", got, st)}
	}
	g.log.Info("security state changed", zap.Stringer("state", target))
	return nil
}

func badTarget(s State) error {
	return &errcode.E{C: errcode.InvalidArg, Op: "access", Msg: "cannot enter " + s.String() + " with a key"}
}

// Digest computes the response to a gauge challenge. Both the challenge and
// the response travel least significant byte first, while the hash works on
// the most significant byte first:
//
//	H1 = SHA1(key || reverse(challenge))
//	H2 = SHA1(key || H1)
//	response = reverse(H2)
func Digest(key [16]byte, challenge [20]byte) [20]byte {
	var msg [36]byte
	copy(msg[:16], key[:])
	for i, b := range challenge {
		msg[16+len(challenge)-1-i] = b
	}
	h1 := sha1.Sum(msg[:])
	copy(msg[16:], h1[:])
	h2 := sha1.Sum(msg[:])

	var out [20]byte
	for i, b := range h2 {
		out[len(h2)-1-i] = b
	}
	return out
}
