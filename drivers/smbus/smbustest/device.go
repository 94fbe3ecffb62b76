package smbustest

import (
	"sync"

	"smartbattery-go/errcode"
)

// Write is one decoded write frame: command code and the bytes after it
// (count byte included for block writes). PEC is stripped.
type Write struct {
	Cmd  uint8
	Data []byte
}

// Device models an SMBus target with byte-addressed registers.
//
// Writes store their payload under the command code. A register marked as a
// block (SetBlock) is answered with a count byte on reads and accepts a
// count-prefixed payload on writes. Reads of plain registers return the
// stored bytes padded with 0xFF.
type Device struct {
	Addr uint8
	PEC  bool

	// OnWrite runs after a write has been stored. The device lock is not held.
	OnWrite func(cmd uint8, data []byte)
	// OnCall answers process calls (a read whose write half carries data).
	// When nil the stored register is returned.
	OnCall func(cmd uint8, data []byte) []byte

	mu     sync.Mutex
	regs   map[uint8][]byte
	blocks map[uint8]bool
	writes []Write
	recv   uint8
	sent   []uint8
	badPEC bool
}

func NewDevice(addr uint8, pec bool) *Device {
	return &Device{
		Addr:   addr,
		PEC:    pec,
		regs:   make(map[uint8][]byte),
		blocks: make(map[uint8]bool),
	}
}

// SetWord stores v little-endian under cmd.
func (d *Device) SetWord(cmd uint8, v uint16) {
	d.SetBytes(cmd, []byte{byte(v), byte(v >> 8)})
}

// SetBytes stores raw register bytes under cmd.
func (d *Device) SetBytes(cmd uint8, v []byte) {
	d.mu.Lock()
	d.regs[cmd] = append([]byte(nil), v...)
	delete(d.blocks, cmd)
	d.mu.Unlock()
}

// SetBlock marks cmd as a block register holding data.
func (d *Device) SetBlock(cmd uint8, data []byte) {
	d.mu.Lock()
	d.regs[cmd] = append([]byte(nil), data...)
	d.blocks[cmd] = true
	d.mu.Unlock()
}

// SetReceiveByte sets the value returned by Receive Byte.
func (d *Device) SetReceiveByte(v uint8) {
	d.mu.Lock()
	d.recv = v
	d.mu.Unlock()
}

// CorruptPEC flips the PEC byte of every subsequent read.
func (d *Device) CorruptPEC(on bool) {
	d.mu.Lock()
	d.badPEC = on
	d.mu.Unlock()
}

// Word returns the stored register as a little-endian word.
func (d *Device) Word(cmd uint8) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.regs[cmd]
	if len(v) < 2 {
		return 0
	}
	return uint16(v[0]) | uint16(v[1])<<8
}

// Bytes returns a copy of the stored register.
func (d *Device) Bytes(cmd uint8) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.regs[cmd]...)
}

// Writes returns the decoded writes seen so far.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Write(nil), d.writes...)
}

// Sent returns the bytes received through Send Byte.
func (d *Device) Sent() []uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint8(nil), d.sent...)
}

func (d *Device) Tx(w, r []byte) error {
	if len(r) == 0 {
		return d.write(w)
	}
	return d.read(w, r)
}

func (d *Device) write(w []byte) error {
	d.mu.Lock()
	if len(w) == 0 {
		d.mu.Unlock()
		return nil
	}
	if d.PEC {
		n := len(w) - 1
		if n < 1 || w[n] != PEC([]byte{d.Addr << 1}, w[:n]) {
			d.mu.Unlock()
			return errcode.DataSentNack
		}
		w = w[:n]
	}
	if len(w) == 1 {
		d.sent = append(d.sent, w[0])
		d.mu.Unlock()
		return nil
	}
	cmd, data := w[0], append([]byte(nil), w[1:]...)
	d.writes = append(d.writes, Write{Cmd: cmd, Data: data})
	if d.blocks[cmd] && int(data[0]) == len(data)-1 {
		d.regs[cmd] = append([]byte(nil), data[1:]...)
	} else {
		d.regs[cmd] = append([]byte(nil), data...)
	}
	hook := d.OnWrite
	d.mu.Unlock()

	if hook != nil {
		hook(cmd, data)
	}
	return nil
}

func (d *Device) read(w, r []byte) error {
	d.mu.Lock()
	pecLen := 0
	if d.PEC {
		pecLen = 1
	}

	var frame []byte
	if len(w) == 0 {
		frame = []byte{d.recv}
	} else {
		cmd := w[0]
		resp := d.regs[cmd]
		if len(w) > 1 && d.OnCall != nil {
			call := d.OnCall
			args := append([]byte(nil), w[1:]...)
			d.mu.Unlock()
			resp = call(cmd, args)
			d.mu.Lock()
		}
		if d.blocks[cmd] {
			frame = append([]byte{byte(len(resp))}, resp...)
		} else {
			n := len(r) - pecLen
			frame = make([]byte, n)
			for i := range frame {
				frame[i] = 0xFF
			}
			copy(frame, resp)
		}
	}

	for i := range r {
		r[i] = 0xFF
	}
	copy(r, frame)
	if d.PEC && len(frame) < len(r) {
		var wpart []byte
		if len(w) > 0 {
			wpart = append([]byte{d.Addr << 1}, w...)
		}
		c := PEC(wpart, []byte{d.Addr<<1 | 1}, frame)
		if d.badPEC {
			c ^= 0xFF
		}
		r[len(frame)] = c
	}
	d.mu.Unlock()
	return nil
}
