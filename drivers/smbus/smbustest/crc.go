package smbustest

// Table-driven CRC-8 (poly 0x07, init 0x00), kept independent of the code
// under test.
var crcTable = func() (t [256]byte) {
	for i := range t {
		c := byte(i)
		for k := 0; k < 8; k++ {
			if c&0x80 != 0 {
				c = c<<1 ^ 0x07
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return
}()

// PEC computes the packet error code over the concatenation of parts.
func PEC(parts ...[]byte) byte {
	var c byte
	for _, p := range parts {
		for _, b := range p {
			c = crcTable[c^b]
		}
	}
	return c
}
