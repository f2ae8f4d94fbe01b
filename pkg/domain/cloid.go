package domain

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ClientOrderId is a 128-bit client-assigned order identifier, carried
// on the wire as a 0x-prefixed 32-hex-digit string. It is generated from
// a random UUID's raw bytes; the UUID version/variant bits carry no
// meaning here, it is used purely as a convenient 128-bit random source.
type ClientOrderId [16]byte

// NewClientOrderId mints a fresh, locally-unique identifier.
func NewClientOrderId() ClientOrderId {
	return ClientOrderId(uuid.New())
}

// String renders the wire form: "0x" followed by 32 lowercase hex digits.
func (c ClientOrderId) String() string {
	return "0x" + hex.EncodeToString(c[:])
}

// ParseClientOrderId parses the wire form produced by String.
func ParseClientOrderId(s string) (ClientOrderId, error) {
	if len(s) == 34 && s[0] == '0' && s[1] == 'x' {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ClientOrderId{}, err
	}
	if len(b) != 16 {
		return ClientOrderId{}, fmt.Errorf("domain: client order id must decode to 16 bytes, got %d", len(b))
	}
	var c ClientOrderId
	copy(c[:], b)
	return c, nil
}
