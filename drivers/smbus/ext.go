package smbus

import (
	"golang.org/x/exp/constraints"

	"smartbattery-go/errcode"
)

// Fixed-width transfers. Raw variants carry the payload directly after the
// command code; block variants prefix it with a count equal to its width.

func (b *Bus) Write32(addr, cmd uint8, v uint32) error {
	return writeLE(b, ProtoWrite32, addr, cmd, v, 4)
}

func (b *Bus) Read32(addr, cmd uint8) (uint32, error) {
	return readLE[uint32](b, ProtoRead32, addr, []byte{cmd})
}

func (b *Bus) Write64(addr, cmd uint8, v uint64) error {
	return writeLE(b, ProtoWrite64, addr, cmd, v, 8)
}

func (b *Bus) Read64(addr, cmd uint8) (uint64, error) {
	return readLE[uint64](b, ProtoRead64, addr, []byte{cmd})
}

func (b *Bus) Write16Block(addr, cmd uint8, v uint16) error {
	return writeBlockLE(b, ProtoWrite16Block, addr, cmd, v, 2)
}

func (b *Bus) Read16Block(addr, cmd uint8) (uint16, error) {
	return readBlockLE[uint16](b, ProtoRead16Block, addr, cmd)
}

func (b *Bus) Write32Block(addr, cmd uint8, v uint32) error {
	return writeBlockLE(b, ProtoWrite32Block, addr, cmd, v, 4)
}

func (b *Bus) Read32Block(addr, cmd uint8) (uint32, error) {
	return readBlockLE[uint32](b, ProtoRead32Block, addr, cmd)
}

func (b *Bus) Write64Block(addr, cmd uint8, v uint64) error {
	return writeBlockLE(b, ProtoWrite64Block, addr, cmd, v, 8)
}

func (b *Bus) Read64Block(addr, cmd uint8) (uint64, error) {
	return readBlockLE[uint64](b, ProtoRead64Block, addr, cmd)
}

func writeLE[T constraints.Unsigned](b *Bus, p Protocol, addr, cmd uint8, v T, n int) error {
	w := make([]byte, 1+n, 2+n)
	w[0] = cmd
	PutLE(w[1:], v)
	return b.tx(p, addr, func() error {
		return b.send(p, addr, w)
	})
}

func readLE[T constraints.Unsigned](b *Bus, p Protocol, addr uint8, w []byte) (T, error) {
	var v T
	err := b.tx(p, addr, func() error {
		r, err := b.recv(p, addr, w, p.ReadWidth())
		if err != nil {
			return err
		}
		v = GetLE[T](r)
		return nil
	})
	return v, err
}

func writeBlockLE[T constraints.Unsigned](b *Bus, p Protocol, addr, cmd uint8, v T, n int) error {
	w := make([]byte, 2+n, 3+n)
	w[0] = cmd
	w[1] = byte(n)
	PutLE(w[2:], v)
	return b.tx(p, addr, func() error {
		return b.send(p, addr, w)
	})
}

func readBlockLE[T constraints.Unsigned](b *Bus, p Protocol, addr, cmd uint8) (T, error) {
	var v T
	err := b.tx(p, addr, func() error {
		data, err := b.recvBlock(p, addr, []byte{cmd})
		if err != nil {
			return err
		}
		if len(data) != p.ReadWidth() {
			return &errcode.E{C: errcode.UnexpectedData, Op: p.String(), Msg: "block count does not match width"}
		}
		v = GetLE[T](data)
		return nil
	})
	return v, err
}
