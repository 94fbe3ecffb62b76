package sbs

import (
	"go.uber.org/zap"
	"golang.org/x/exp/constraints"

	"smartbattery-go/drivers/smbus"
	"smartbattery-go/errcode"
)

// Request is one entry of a RunCommandBulk batch.
type Request struct {
	Cmd Command
	In  []byte
	Out Output
}

// RunCommand executes cmd. in carries the little-endian input (nil for none);
// out receives the decoded result (nil for none). Argument problems are
// reported as errcode.InvalidArg before any bus traffic. Transport phase
// codes surface as errcode.Fail with the phase still matchable by errors.Is.
func (b *Battery) RunCommand(cmd Command, in []byte, out Output) error {
	d, ok := Lookup(cmd)
	if !ok {
		return &errcode.E{C: errcode.InvalidArg, Op: "run", Msg: "command out of range"}
	}
	return b.Run(d, in, out)
}

// RunCommandBulk runs reqs in order and stops at the first failure. It
// returns the index of the failing request, or -1. Writes issued before the
// failure stay in effect.
func (b *Battery) RunCommandBulk(reqs []Request) (int, error) {
	for i, r := range reqs {
		if err := b.RunCommand(r.Cmd, r.In, r.Out); err != nil {
			b.log.Warn("bulk command failed",
				zap.Int("index", i),
				zap.Stringer("command", r.Cmd),
				zap.String("code", string(errcode.Of(err))),
				zap.Error(err))
			return i, err
		}
	}
	return -1, nil
}

// Run executes an arbitrary descriptor. RunCommand uses the built-in table;
// vendor extensions may pass their own.
func (b *Battery) Run(d Descriptor, in []byte, out Output) error {
	if err := check(d, in, out); err != nil {
		return err
	}

	var (
		raw   []byte
		block bool
		err   error
	)
	switch a := d.Access.(type) {
	case Exchange:
		if in == nil || out == nil {
			return invalid(d, "exchange needs input and output")
		}
		raw, err = b.exchange(d, a, in)
		block = a.Proto.BlockShaped()
	case ReadWrite:
		if in == nil && out == nil {
			return invalid(d, "nothing to do")
		}
		if in != nil {
			if err = b.write(d, a.Write, in); err != nil {
				return coarse(d, err)
			}
		}
		if out != nil {
			raw, err = b.read(a.Read)
			block = a.Read.Proto.BlockShaped()
		}
	case Write:
		if in == nil || out != nil {
			return invalid(d, "write-only command needs input and no output")
		}
		err = b.write(d, a, in)
	case Read:
		if out == nil || in != nil {
			return invalid(d, "read-only command needs output and no input")
		}
		raw, err = b.read(a)
		block = a.Proto.BlockShaped()
	default:
		return invalid(d, "descriptor has no access shape")
	}
	if err != nil {
		return coarse(d, err)
	}
	if out == nil {
		return nil
	}
	if err := out.decode(raw, block); err != nil {
		return errcode.Wrap(errcode.Of(err), d.Name, err)
	}
	return nil
}

func check(d Descriptor, in []byte, out Output) error {
	if in != nil && (len(in) == 0 || len(in) < d.InSize) {
		return invalid(d, "input shorter than required")
	}
	if out == nil {
		return nil
	}
	if r, ok := out.(*Raw); ok {
		if len(r.Buf) == 0 || len(r.Buf) < d.OutSize {
			return invalid(d, "output buffer shorter than required")
		}
		return nil
	}
	if out.result() != d.Result {
		return invalid(d, "output kind does not match command")
	}
	return nil
}

// scratch holds the largest block payload.
func scratch() []byte { return make([]byte, smbus.MaxBlockLen) }

func (b *Battery) read(a Read) ([]byte, error) {
	bus, addr, reg := b.bus, b.addr, a.Reg
	switch a.Proto {
	case smbus.ProtoReceiveByte:
		v, err := bus.ReceiveByte(addr)
		return []byte{v}, err
	case smbus.ProtoReadByte:
		v, err := bus.ReadByte(addr, reg)
		return []byte{v}, err
	case smbus.ProtoReadWord:
		v, err := bus.ReadWord(addr, reg)
		return le(2, v), err
	case smbus.ProtoRead32:
		v, err := bus.Read32(addr, reg)
		return le(4, v), err
	case smbus.ProtoRead64:
		v, err := bus.Read64(addr, reg)
		return le(8, v), err
	case smbus.ProtoRead16Block:
		v, err := bus.Read16Block(addr, reg)
		return le(2, v), err
	case smbus.ProtoRead32Block:
		v, err := bus.Read32Block(addr, reg)
		return le(4, v), err
	case smbus.ProtoRead64Block:
		v, err := bus.Read64Block(addr, reg)
		return le(8, v), err
	case smbus.ProtoBlockRead:
		buf := scratch()
		n, err := bus.BlockRead(addr, reg, buf)
		return buf[:n], err
	}
	return nil, &errcode.E{C: errcode.InvalidArg, Op: a.Proto.String(), Msg: "not a read protocol"}
}

func (b *Battery) write(d Descriptor, a Write, in []byte) error {
	bus, addr, reg := b.bus, b.addr, a.Reg
	switch a.Proto {
	case smbus.ProtoQuickCommand:
		// in[0] is the R/W bit.
		return bus.QuickCommand(addr, in[0] != 0)
	case smbus.ProtoSendByte:
		return bus.SendByte(addr, in[0])
	case smbus.ProtoWriteByte:
		return bus.WriteByte(addr, reg, in[0])
	case smbus.ProtoWriteWord:
		return bus.WriteWord(addr, reg, word(d, in))
	case smbus.ProtoHostNotify:
		// {host, lo, hi}: the battery reports to the host address.
		if len(in) < 3 {
			return invalid(d, "host notify needs host address and a word")
		}
		return bus.HostNotify(in[0], addr, field[uint16](in[1:], 2))
	case smbus.ProtoWrite32:
		return bus.Write32(addr, reg, field[uint32](in, 4))
	case smbus.ProtoWrite64:
		return bus.Write64(addr, reg, field[uint64](in, 8))
	case smbus.ProtoWrite16Block:
		return bus.Write16Block(addr, reg, word(d, in))
	case smbus.ProtoWrite32Block:
		return bus.Write32Block(addr, reg, field[uint32](in, 4))
	case smbus.ProtoWrite64Block:
		return bus.Write64Block(addr, reg, field[uint64](in, 8))
	case smbus.ProtoBlockWrite:
		return bus.BlockWrite(addr, reg, in)
	case smbus.ProtoWriteRaw:
		return bus.WriteRaw(addr, in)
	case smbus.ProtoWriteWordWriteBlock:
		// {respCmd, block...}; the word is the descriptor's sub-command.
		if len(in) < 2 {
			return invalid(d, "write-word-write-block needs a response command and data")
		}
		return bus.WriteWordWriteBlock(addr, reg, d.Sub, d.Flip, in[0], in[1:], d.Delay)
	}
	return &errcode.E{C: errcode.InvalidArg, Op: a.Proto.String(), Msg: "not a write protocol"}
}

func (b *Battery) exchange(d Descriptor, a Exchange, in []byte) ([]byte, error) {
	bus, addr := b.bus, b.addr
	switch a.Proto {
	case smbus.ProtoProcessCall:
		v, err := bus.ProcessCall(addr, a.WriteReg, word(d, in))
		return le(2, v), err
	case smbus.ProtoBlockProcessCall:
		buf := scratch()
		n, err := bus.BlockProcessCall(addr, a.WriteReg, in, buf)
		return buf[:n], err
	case smbus.ProtoWriteWordReadBlock:
		buf := scratch()
		n, err := bus.WriteWordReadBlock(addr, a.WriteReg, field[uint16](in, 2), d.Flip, a.ReadReg, buf, d.Delay)
		return buf[:n], err
	case smbus.ProtoWrite16BlockReadBlock:
		buf := scratch()
		n, err := bus.Write16BlockReadBlock(addr, a.WriteReg, word(d, in), a.ReadReg, buf, d.Delay)
		return buf[:n], err
	}
	return nil, &errcode.E{C: errcode.InvalidArg, Op: a.Proto.String(), Msg: "not an exchange protocol"}
}

// word reads the first two input bytes little-endian, swapped when the
// descriptor asks for it.
func word(d Descriptor, in []byte) uint16 {
	v := field[uint16](in, 2)
	if d.Flip {
		v = smbus.SwapWord(v)
	}
	return v
}

// field reads up to n little-endian input bytes; missing bytes read as zero.
func field[T constraints.Unsigned](in []byte, n int) T {
	return smbus.GetLE[T](in[:min(n, len(in))])
}

func le[T constraints.Unsigned](n int, v T) []byte {
	out := make([]byte, n)
	smbus.PutLE(out, v)
	return out
}

func invalid(d Descriptor, msg string) error {
	return &errcode.E{C: errcode.InvalidArg, Op: d.Name, Msg: msg}
}

// coarse folds transport phase codes into Fail, keeping the cause.
func coarse(d Descriptor, err error) error {
	if errcode.IsPhase(errcode.Of(err)) {
		return errcode.Wrap(errcode.Fail, d.Name, err)
	}
	return err
}
