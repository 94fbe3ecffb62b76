package smbus

// Protocol names one SMBus wire transaction shape.
type Protocol uint8

const (
	ProtoNone Protocol = iota
	ProtoQuickCommand
	ProtoSendByte
	ProtoReceiveByte
	ProtoWriteByte
	ProtoReadByte
	ProtoWriteWord
	ProtoReadWord
	ProtoProcessCall
	ProtoBlockWrite
	ProtoBlockRead
	ProtoBlockProcessCall
	ProtoHostNotify
	ProtoWrite32
	ProtoRead32
	ProtoWrite64
	ProtoRead64
	ProtoWrite16Block
	ProtoRead16Block
	ProtoWrite32Block
	ProtoRead32Block
	ProtoWrite64Block
	ProtoRead64Block
	ProtoWriteRaw
	ProtoWriteWordReadBlock
	ProtoWriteWordWriteBlock
	ProtoWrite16BlockReadBlock
)

var protoNames = [...]string{
	ProtoNone:                  "none",
	ProtoQuickCommand:          "quick_command",
	ProtoSendByte:              "send_byte",
	ProtoReceiveByte:           "receive_byte",
	ProtoWriteByte:             "write_byte",
	ProtoReadByte:              "read_byte",
	ProtoWriteWord:             "write_word",
	ProtoReadWord:              "read_word",
	ProtoProcessCall:           "process_call",
	ProtoBlockWrite:            "block_write",
	ProtoBlockRead:             "block_read",
	ProtoBlockProcessCall:      "block_process_call",
	ProtoHostNotify:            "host_notify",
	ProtoWrite32:               "write_32",
	ProtoRead32:                "read_32",
	ProtoWrite64:               "write_64",
	ProtoRead64:                "read_64",
	ProtoWrite16Block:          "write_16_block",
	ProtoRead16Block:           "read_16_block",
	ProtoWrite32Block:          "write_32_block",
	ProtoRead32Block:           "read_32_block",
	ProtoWrite64Block:          "write_64_block",
	ProtoRead64Block:           "read_64_block",
	ProtoWriteRaw:              "write_raw",
	ProtoWriteWordReadBlock:    "write_word_read_block",
	ProtoWriteWordWriteBlock:   "write_word_write_block",
	ProtoWrite16BlockReadBlock: "write_16_block_read_block",
}

func (p Protocol) String() string {
	if int(p) < len(protoNames) {
		return protoNames[p]
	}
	return "unknown"
}

// BlockShaped reports whether the protocol returns a length-prefixed payload.
func (p Protocol) BlockShaped() bool {
	switch p {
	case ProtoBlockRead, ProtoBlockProcessCall, ProtoWriteWordReadBlock, ProtoWrite16BlockReadBlock:
		return true
	}
	return false
}

// ReadWidth is the fixed payload width of a non-block read, or 0.
func (p Protocol) ReadWidth() int {
	switch p {
	case ProtoReceiveByte, ProtoReadByte:
		return 1
	case ProtoReadWord, ProtoProcessCall, ProtoRead16Block:
		return 2
	case ProtoRead32, ProtoRead32Block:
		return 4
	case ProtoRead64, ProtoRead64Block:
		return 8
	}
	return 0
}
