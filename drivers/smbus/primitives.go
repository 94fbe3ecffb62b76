package smbus

import "smartbattery-go/errcode"

// QuickCommand issues an address-only frame carrying the R/W bit as data.
// Transports without QuickTransport emit a one-byte read for a read quick.
// They cannot emit a write quick: drivers.I2C gives no way to put an
// address-only write on the wire (Linux i2c-dev drops an empty Tx without
// touching the adapter), so that case fails before any traffic.
func (b *Bus) QuickCommand(addr uint8, read bool) error {
	p := ProtoQuickCommand
	q, ok := b.t.(QuickTransport)
	if !ok && !read {
		if err := checkAddr(p, addr); err != nil {
			return err
		}
		return &errcode.E{C: errcode.Fail, Op: p.String(), Msg: "transport cannot issue a write quick"}
	}
	return b.tx(p, addr, func() error {
		if ok {
			return transportErr(p, q.Quick(uint16(addr), read))
		}
		var r [1]byte
		return transportErr(p, b.t.Tx(uint16(addr), nil, r[:]))
	})
}

// SendByte writes a single data byte with no command code.
func (b *Bus) SendByte(addr, v uint8) error {
	p := ProtoSendByte
	return b.tx(p, addr, func() error {
		return b.send(p, addr, []byte{v})
	})
}

// ReceiveByte reads a single data byte with no command code.
func (b *Bus) ReceiveByte(addr uint8) (uint8, error) {
	p := ProtoReceiveByte
	var v uint8
	err := b.tx(p, addr, func() error {
		r, err := b.recv(p, addr, nil, 1)
		if err != nil {
			return err
		}
		v = r[0]
		return nil
	})
	return v, err
}

func (b *Bus) WriteByte(addr, cmd, v uint8) error {
	p := ProtoWriteByte
	return b.tx(p, addr, func() error {
		return b.send(p, addr, []byte{cmd, v})
	})
}

func (b *Bus) ReadByte(addr, cmd uint8) (uint8, error) {
	return readLE[uint8](b, ProtoReadByte, addr, []byte{cmd})
}

// WriteWord writes v LOW byte first.
func (b *Bus) WriteWord(addr, cmd uint8, v uint16) error {
	return writeLE(b, ProtoWriteWord, addr, cmd, v, 2)
}

func (b *Bus) ReadWord(addr, cmd uint8) (uint16, error) {
	return readLE[uint16](b, ProtoReadWord, addr, []byte{cmd})
}

// ProcessCall writes v and reads a word back under one repeated start.
func (b *Bus) ProcessCall(addr, cmd uint8, v uint16) (uint16, error) {
	w := make([]byte, 3)
	w[0] = cmd
	PutLE(w[1:], v)
	return readLE[uint16](b, ProtoProcessCall, addr, w)
}

// HostNotify sends {dev<<1, lo, hi} to the host address. The caller must own
// SCL for the whole frame. No PEC is appended.
func (b *Bus) HostNotify(host, dev uint8, v uint16) error {
	p := ProtoHostNotify
	if dev > 0x7F {
		return invalid(p, "device address is not 7-bit")
	}
	w := []byte{wrAddr(dev), byte(v), byte(v >> 8)}
	return b.tx(p, host, func() error {
		return b.sendRaw(p, host, w)
	})
}

// WriteRaw writes data verbatim: no command code, no count, no PEC.
func (b *Bus) WriteRaw(addr uint8, data []byte) error {
	p := ProtoWriteRaw
	if len(data) == 0 {
		return invalid(p, "empty payload")
	}
	w := append([]byte(nil), data...)
	return b.tx(p, addr, func() error {
		return b.sendRaw(p, addr, w)
	})
}
