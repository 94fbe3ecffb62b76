package smbus

import "time"

// Composite helpers chain two primitives with a settle delay in between.
// Each half is its own frame; another caller may use the bus during the
// delay. A delay <= 0 skips the sleep.

// WriteWordReadBlock writes word to cmd, waits delay, then block-reads
// respCmd into dst. flip swaps the word's bytes before sending.
func (b *Bus) WriteWordReadBlock(addr, cmd uint8, word uint16, flip bool, respCmd uint8, dst []byte, delay time.Duration) (int, error) {
	if len(dst) == 0 {
		return 0, invalid(ProtoWriteWordReadBlock, "empty destination")
	}
	if flip {
		word = SwapWord(word)
	}
	if err := b.WriteWord(addr, cmd, word); err != nil {
		return 0, err
	}
	b.Delay(delay)
	return b.BlockRead(addr, respCmd, dst)
}

// WriteWordWriteBlock writes word to cmd, waits delay, then block-writes
// data to respCmd.
func (b *Bus) WriteWordWriteBlock(addr, cmd uint8, word uint16, flip bool, respCmd uint8, data []byte, delay time.Duration) error {
	if len(data) == 0 || len(data) > MaxBlockLen {
		return invalid(ProtoWriteWordWriteBlock, "block length must be 1..255")
	}
	if flip {
		word = SwapWord(word)
	}
	if err := b.WriteWord(addr, cmd, word); err != nil {
		return err
	}
	b.Delay(delay)
	return b.BlockWrite(addr, respCmd, data)
}

// Write16BlockReadBlock block-writes a two-byte word to cmd, waits delay,
// then block-reads respCmd into dst.
func (b *Bus) Write16BlockReadBlock(addr, cmd uint8, word uint16, respCmd uint8, dst []byte, delay time.Duration) (int, error) {
	if len(dst) == 0 {
		return 0, invalid(ProtoWrite16BlockReadBlock, "empty destination")
	}
	if err := b.Write16Block(addr, cmd, word); err != nil {
		return 0, err
	}
	b.Delay(delay)
	return b.BlockRead(addr, respCmd, dst)
}
