package schema

import "github.com/cespare/xxhash/v2"

// HashContent computes the cheap content hash used for file drift
// detection. Change-detection heuristic, not a security boundary.
func HashContent(content []byte) FileHash {
	sum := xxhash.Sum64(content)
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexDigits[sum&0xf]
		sum >>= 4
	}
	return FileHash(out)
}
