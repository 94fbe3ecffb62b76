package smbus

import (
	"go.uber.org/zap"

	"smartbattery-go/errcode"
)

// Address bytes as they appear on the wire.
func wrAddr(a uint8) byte { return a << 1 }
func rdAddr(a uint8) byte { return a<<1 | 1 }

// pecWrite is the PEC of a write-only frame: a|W followed by body.
func pecWrite(addr uint8, body []byte) byte {
	c := CRC8Update(crcInit, []byte{wrAddr(addr)})
	return CRC8Update(c, body)
}

// pecRead is the PEC of a read frame: [a|W w... Sr] a|R r...
// The write half is omitted when w is empty (Receive Byte).
func pecRead(addr uint8, w, r []byte) byte {
	c := byte(crcInit)
	if len(w) > 0 {
		c = CRC8Update(c, []byte{wrAddr(addr)})
		c = CRC8Update(c, w)
	}
	c = CRC8Update(c, []byte{rdAddr(addr)})
	return CRC8Update(c, r)
}

func (b *Bus) pecLen() int {
	if b.cfg.PEC {
		return 1
	}
	return 0
}

// send transmits w and appends the PEC byte when enabled.
// Callers hold b.mu.
func (b *Bus) send(p Protocol, addr uint8, w []byte) error {
	if b.cfg.PEC {
		w = append(w, pecWrite(addr, w))
	}
	return transportErr(p, b.t.Tx(uint16(addr), w, nil))
}

// sendRaw transmits w without PEC.
func (b *Bus) sendRaw(p Protocol, addr uint8, w []byte) error {
	return transportErr(p, b.t.Tx(uint16(addr), w, nil))
}

// recv writes w (may be empty), reads n payload bytes and checks the PEC.
// Callers hold b.mu.
func (b *Bus) recv(p Protocol, addr uint8, w []byte, n int) ([]byte, error) {
	r := make([]byte, n+b.pecLen())
	if err := b.t.Tx(uint16(addr), w, r); err != nil {
		return nil, transportErr(p, err)
	}
	if b.cfg.PEC && r[n] != pecRead(addr, w, r[:n]) {
		return nil, &errcode.E{C: errcode.BadCRC, Op: p.String(), Msg: "pec mismatch"}
	}
	return r[:n], nil
}

// recvBlock writes w, reads a count-prefixed block and checks the PEC.
// The returned slice holds exactly count payload bytes. Callers hold b.mu.
func (b *Bus) recvBlock(p Protocol, addr uint8, w []byte) ([]byte, error) {
	pl := b.pecLen()
	buf := make([]byte, 1+MaxBlockLen+pl)
	if bt, ok := b.t.(BlockTransport); ok {
		n, err := bt.TxBlock(uint16(addr), w, buf, b.cfg.PEC)
		if err != nil {
			return nil, transportErr(p, err)
		}
		if n < 0 || n > len(buf) {
			return nil, &errcode.E{C: errcode.UnexpectedData, Op: p.String(), Msg: "transport returned bad length"}
		}
		buf = buf[:n]
	} else if err := b.t.Tx(uint16(addr), w, buf); err != nil {
		return nil, transportErr(p, err)
	}
	if len(buf) == 0 {
		return nil, &errcode.E{C: errcode.UnexpectedData, Op: p.String(), Msg: "no count byte"}
	}
	count := int(buf[0])
	if count == 0 {
		return nil, &errcode.E{C: errcode.UnexpectedData, Op: p.String(), Msg: "zero block count"}
	}
	if len(buf) < 1+count+pl {
		return nil, &errcode.E{C: errcode.UnexpectedData, Op: p.String(), Msg: "short block"}
	}
	if pl == 1 && buf[1+count] != pecRead(addr, w, buf[:1+count]) {
		return nil, &errcode.E{C: errcode.BadCRC, Op: p.String(), Msg: "pec mismatch"}
	}
	return buf[1 : 1+count], nil
}

// fit copies a received block into dst. Oversized blocks are truncated to
// len(dst); with StrictBlockLen the truncation is also reported as Overflow.
func (b *Bus) fit(p Protocol, dst, data []byte) (int, error) {
	n := copy(dst, data)
	if len(data) > len(dst) {
		if b.cfg.StrictBlockLen {
			return n, &errcode.E{C: errcode.Overflow, Op: p.String(), Msg: "block longer than buffer"}
		}
		b.log.Debug("block truncated", zap.Stringer("protocol", p), zap.Int("count", len(data)), zap.Int("cap", len(dst)))
	}
	return n, nil
}

// blockFrame lays out cmd, count and data for a block write.
func blockFrame(cmd uint8, data []byte) []byte {
	w := make([]byte, 0, 3+len(data))
	w = append(w, cmd, byte(len(data)))
	return append(w, data...)
}
