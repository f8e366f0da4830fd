package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTrace separates trace digests from any other hash of the same bytes.
const DomainTrace = "cadence/trace/v1"

// Digest returns a stable content hash of a trace:
// SHA256(DomainTrace + 0x00 + MarshalLines(events)), hex encoded.
// Two runs with identical behaviour produce the same digest.
func Digest(events []Event) (string, error) {
	data, err := MarshalLines(events)
	if err != nil {
		return "", fmt.Errorf("trace digest: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainTrace))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
