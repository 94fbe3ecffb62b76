package smbus

// CRC-8/SMBUS: poly x^8+x^2+x+1 (0x07), init 0x00, MSB first, no reflection.
const (
	crcPoly = 0x07
	crcInit = 0x00
)

// CRC8 returns the packet error code over data. A nil slice yields 0xFF.
func CRC8(data []byte) byte {
	if data == nil {
		return 0xFF
	}
	return CRC8Update(crcInit, data)
}

// CRC8Update folds data into a running crc.
func CRC8Update(crc byte, data []byte) byte {
	for _, b := range data {
		crc ^= b
		for k := 0; k < 8; k++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
