package bq

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"testing"
	"time"

	"smartbattery-go/drivers/sbs"
	"smartbattery-go/drivers/smbus"
	"smartbattery-go/drivers/smbus/smbustest"
	"smartbattery-go/errcode"
)

var (
	testKey, _ = hex.DecodeString("0123456789abcdeffedcba9876543210")

	statusSealed     = []byte{0x08, 0x01, 0x00}
	statusUnsealed   = []byte{0x00, 0x01, 0x00}
	statusFullAccess = []byte{0x08, 0x00, 0x00}
)

func key16() (k [16]byte) {
	copy(k[:], testKey)
	return k
}

func seqChallenge() (c [20]byte) {
	for i := range c {
		c[i] = byte(i)
	}
	return c
}

// gaugeSim answers MAC sub-commands on 0x00/0x23 and 0x44 and accepts the
// authentication response on 0x2F.
type gaugeSim struct {
	dev       *smbustest.Device
	challenge []byte
	status    []byte
	accept    []byte // expected response digest
	words     []uint16
	keyWords  [2]uint16
	sleeps    []time.Duration
}

func newSim(t *testing.T, pec bool) (*Gauge, *smbustest.Bus, *gaugeSim) {
	t.Helper()
	g := &gaugeSim{
		dev:       smbustest.NewDevice(sbs.AddressDefault, pec),
		status:    statusSealed,
		keyWords:  DefaultUnsealKey,
		challenge: func() []byte { c := seqChallenge(); return c[:] }(),
	}
	d := Digest(key16(), seqChallenge())
	g.accept = d[:]
	g.dev.SetBlock(sbs.RegManufacturerData, nil)
	g.dev.SetBlock(sbs.RegManufacturerBlockAccess, nil)
	g.dev.SetBlock(regAuthResponse, nil)
	g.dev.OnWrite = g.onWrite

	sim := smbustest.New()
	sim.Attach(sbs.AddressDefault, g.dev)
	bus, err := smbus.Open(sim, smbus.Config{PEC: pec, Sleep: func(d time.Duration) { g.sleeps = append(g.sleeps, d) }})
	if err != nil {
		t.Fatal(err)
	}
	bat, err := sbs.New(bus, sbs.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return New(bat), sim, g
}

func (g *gaugeSim) onWrite(cmd uint8, data []byte) {
	switch cmd {
	case sbs.RegManufacturerAccess:
		g.sub(sbs.RegManufacturerData, uint16(data[0])|uint16(data[1])<<8)
	case sbs.RegManufacturerBlockAccess:
		g.sub(sbs.RegManufacturerBlockAccess, uint16(data[1])|uint16(data[2])<<8)
	case regAuthResponse:
		if bytes.Equal(data[1:], g.accept) {
			if bytes.Equal(g.status, statusUnsealed) {
				g.status = statusFullAccess
			} else {
				g.status = statusUnsealed
			}
		}
	}
}

func (g *gaugeSim) sub(reply uint8, sub uint16) {
	switch sub {
	case MACUnsealDevice, MACFullAccessDevice:
		g.dev.SetBlock(reply, g.challenge)
	case MACOperationStatus:
		g.dev.SetBlock(reply, g.status)
	case MACSealDevice:
		g.status = statusSealed
	default:
		g.words = append(g.words, sub)
		if n := len(g.words); n >= 2 && g.words[n-2] == g.keyWords[0] && g.words[n-1] == g.keyWords[1] {
			g.status = statusUnsealed
		}
	}
}

func TestDigestReference(t *testing.T) {
	got := Digest(key16(), seqChallenge())
	want, _ := hex.DecodeString("67d8d90516ecd55a3c751fc0be7a361db366a246")
	if !bytes.Equal(got[:], want) {
		t.Fatalf("digest %x, want %x", got, want)
	}

	// Same computation spelled out.
	c := seqChallenge()
	rev := make([]byte, 20)
	for i := range c {
		rev[19-i] = c[i]
	}
	h1 := sha1.Sum(append(append([]byte{}, testKey...), rev...))
	h2 := sha1.Sum(append(append([]byte{}, testKey...), h1[:]...))
	for i := range h2 {
		if got[i] != h2[19-i] {
			t.Fatalf("byte %d: %#02x vs %#02x", i, got[i], h2[19-i])
		}
	}
}

func TestUnsealSHA1(t *testing.T) {
	for _, pec := range []bool{false, true} {
		g, sim, s := newSim(t, pec)
		if err := g.AccessSHA1(Unsealed, key16()); err != nil {
			t.Fatalf("pec=%v: %v", pec, err)
		}
		log := sim.Log()
		if len(log) != 5 {
			t.Fatalf("pec=%v: %d frames", pec, len(log))
		}
		if !bytes.Equal(log[0].W[:3], []byte{0x00, 0x31, 0x00}) {
			t.Fatalf("access frame %x", log[0].W)
		}
		resp := log[2].W
		if resp[0] != regAuthResponse || resp[1] != 20 || !bytes.Equal(resp[2:22], s.accept) {
			t.Fatalf("response frame %x", resp)
		}
		if !bytes.Equal(log[3].W[:3], []byte{0x00, 0x54, 0x00}) {
			t.Fatalf("status frame %x", log[3].W)
		}
		if len(s.sleeps) != 1 || s.sleeps[0] != Settle {
			t.Fatalf("sleeps %v", s.sleeps)
		}
		st, err := g.SecurityState()
		if err != nil || st != Unsealed {
			t.Fatalf("state %s, %v", st, err)
		}
	}
}

func TestUnsealThenFullAccess(t *testing.T) {
	g, _, _ := newSim(t, true)
	if err := g.AccessSHA1(Unsealed, key16()); err != nil {
		t.Fatal(err)
	}
	if err := g.AccessSHA1(FullAccess, key16()); err != nil {
		t.Fatal(err)
	}
	if st, _ := g.SecurityState(); st != FullAccess {
		t.Fatalf("state %s", st)
	}
	if err := g.Seal(); err != nil {
		t.Fatal(err)
	}
	if st, _ := g.SecurityState(); st != Sealed {
		t.Fatalf("state %s", st)
	}
}

func TestBlockUnsealSHA1(t *testing.T) {
	g, sim, _ := newSim(t, false)
	if err := g.BlockAccessSHA1(Unsealed, key16()); err != nil {
		t.Fatal(err)
	}
	log := sim.Log()
	if !bytes.Equal(log[0].W, []byte{0x44, 2, 0x31, 0x00}) || log[1].W[0] != 0x44 {
		t.Fatalf("frames %+v", log[:2])
	}
}

func TestWrongKeyIsFailure(t *testing.T) {
	g, _, _ := newSim(t, false)
	var bad [16]byte
	err := g.AccessSHA1(Unsealed, bad)
	if errcode.Of(err) != errcode.Fail {
		t.Fatalf("got %v", err)
	}
	if st, _ := g.SecurityState(); st != Sealed {
		t.Fatalf("state %s", st)
	}
}

func TestShortChallenge(t *testing.T) {
	g, sim, s := newSim(t, false)
	s.challenge = s.challenge[:19]
	if err := g.AccessSHA1(Unsealed, key16()); errcode.Of(err) != errcode.UnexpectedData {
		t.Fatalf("got %v", err)
	}
	if n := len(sim.Log()); n != 2 {
		t.Fatalf("response written after bad challenge: %d frames", n)
	}
}

func TestStatusLength(t *testing.T) {
	g, _, s := newSim(t, false)
	s.status = []byte{0x00, 0x01}
	if _, err := g.OperationStatus(); errcode.Of(err) != errcode.UnexpectedData {
		t.Fatalf("got %v", err)
	}
}

func TestTransportErrorIsReturnedUnchanged(t *testing.T) {
	g, sim, s := newSim(t, false)
	sim.FailAfter(2, errcode.DataSentNack)
	err := g.AccessSHA1(Unsealed, key16())
	if errcode.Of(err) != errcode.DataSentNack {
		t.Fatalf("got %v", err)
	}
	if len(s.sleeps) != 0 {
		t.Fatal("settled after a failed write")
	}
}

func TestAccessKey(t *testing.T) {
	g, sim, s := newSim(t, true)
	if err := g.AccessKey(Unsealed, DefaultUnsealKey); err != nil {
		t.Fatal(err)
	}
	if len(s.words) != 2 || s.words[0] != 0x0414 || s.words[1] != 0x3672 {
		t.Fatalf("words %x", s.words)
	}
	if len(s.sleeps) != 2 || s.sleeps[0] != KeyGap || s.sleeps[1] != Settle {
		t.Fatalf("sleeps %v", s.sleeps)
	}
	if log := sim.Log(); !bytes.Equal(log[0].W[:3], []byte{0x00, 0x14, 0x04}) {
		t.Fatalf("first key frame %x", log[0].W)
	}

	s.status = statusSealed
	if err := g.AccessKey(Unsealed, [2]uint16{1, 2}); errcode.Of(err) != errcode.Fail {
		t.Fatalf("wrong key: %v", err)
	}
}

func TestBlockAccessKey(t *testing.T) {
	g, sim, s := newSim(t, false)
	if err := g.BlockAccessKey(Unsealed, DefaultUnsealKey); err != nil {
		t.Fatal(err)
	}
	log := sim.Log()
	if !bytes.Equal(log[0].W, []byte{0x44, 2, 0x14, 0x04}) || !bytes.Equal(log[1].W, []byte{0x44, 2, 0x72, 0x36}) {
		t.Fatalf("key frames %x %x", log[0].W, log[1].W)
	}
	if len(s.words) != 2 {
		t.Fatalf("words %x", s.words)
	}
}

func TestSealFailure(t *testing.T) {
	g, _, s := newSim(t, false)
	s.status = statusUnsealed
	s.dev.OnWrite = func(cmd uint8, data []byte) {
		// Ignore the seal request but still answer status reads.
		if cmd == sbs.RegManufacturerAccess && data[0] == 0x54 {
			s.dev.SetBlock(sbs.RegManufacturerData, s.status)
		}
	}
	err := g.Seal()
	if errcode.Of(err) != errcode.Fail {
		t.Fatalf("got %v", err)
	}
}

func TestInvalidTarget(t *testing.T) {
	g, sim, _ := newSim(t, false)
	for _, st := range []State{Sealed, StateUnknown} {
		if err := g.AccessSHA1(st, key16()); errcode.Of(err) != errcode.InvalidArg {
			t.Fatalf("%s: %v", st, err)
		}
		if err := g.AccessKey(st, DefaultUnsealKey); errcode.Of(err) != errcode.InvalidArg {
			t.Fatalf("%s: %v", st, err)
		}
	}
	if n := len(sim.Log()); n != 0 {
		t.Fatalf("%d frames", n)
	}
}

func TestStateNames(t *testing.T) {
	for _, st := range []State{Sealed, Unsealed, FullAccess} {
		if back, ok := ParseState(st.String()); !ok || back != st {
			t.Fatalf("%s did not round trip", st)
		}
	}
	if _, ok := ParseState("open"); ok {
		t.Fatal("unknown name accepted")
	}
	if DFAccessRow(5) != 0x0101 {
		t.Fatalf("row %#04x", DFAccessRow(5))
	}
}
