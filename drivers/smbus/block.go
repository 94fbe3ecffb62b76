package smbus

// BlockWrite writes cmd, a count byte and 1..255 data bytes.
func (b *Bus) BlockWrite(addr, cmd uint8, data []byte) error {
	p := ProtoBlockWrite
	if len(data) == 0 || len(data) > MaxBlockLen {
		return invalid(p, "block length must be 1..255")
	}
	w := blockFrame(cmd, data)
	return b.tx(p, addr, func() error {
		return b.send(p, addr, w)
	})
}

// BlockRead reads a count-prefixed block into dst and returns the number of
// bytes stored. A device count larger than len(dst) is truncated to fit
// (Config.StrictBlockLen reports it as errcode.Overflow instead).
func (b *Bus) BlockRead(addr, cmd uint8, dst []byte) (int, error) {
	p := ProtoBlockRead
	if len(dst) == 0 {
		return 0, invalid(p, "empty destination")
	}
	return b.readBlockInto(p, addr, []byte{cmd}, dst)
}

// BlockProcessCall writes a block and reads a block back under one repeated
// start.
func (b *Bus) BlockProcessCall(addr, cmd uint8, data, dst []byte) (int, error) {
	p := ProtoBlockProcessCall
	if len(data) == 0 || len(data) > MaxBlockLen {
		return 0, invalid(p, "block length must be 1..255")
	}
	if len(dst) == 0 {
		return 0, invalid(p, "empty destination")
	}
	return b.readBlockInto(p, addr, blockFrame(cmd, data), dst)
}

func (b *Bus) readBlockInto(p Protocol, addr uint8, w, dst []byte) (int, error) {
	var n int
	err := b.tx(p, addr, func() error {
		data, err := b.recvBlock(p, addr, w)
		if err != nil {
			return err
		}
		n, err = b.fit(p, dst, data)
		return err
	})
	return n, err
}
