package payment_vo

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var hexAddressRE = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// EVMAddress is a 20-byte Ethereum-family address. The teacher's own
// wallet/value-objects/evm_address.go normalizes to lowercase and notes
// in a comment that real checksumming would use Keccak256 "in
// production" — since go-ethereum is now a wired dependency here, this
// version computes the real EIP-55 checksum rather than leaving that as
// a stub.
type EVMAddress struct {
	value string // EIP-55 checksummed form, e.g. "0xAbC...123"
}

func NewEVMAddress(raw string) (EVMAddress, error) {
	if !hexAddressRE.MatchString(raw) {
		return EVMAddress{}, fmt.Errorf("invalid EVM address: %q", raw)
	}
	return EVMAddress{value: checksum(raw)}, nil
}

// checksum implements EIP-55: each hex digit of the lowercase address is
// uppercased iff the corresponding nibble of Keccak256(lowercase address
// without "0x") is >= 8.
func checksum(raw string) string {
	lower := strings.ToLower(strings.TrimPrefix(raw, "0x"))
	hash := crypto.Keccak256([]byte(lower))

	var b strings.Builder
	b.WriteString("0x")
	for i, c := range lower {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
			continue
		}
		// nibble i of hash: hash[i/2] high nibble if i even, low nibble if odd
		var nibble byte
		if i%2 == 0 {
			nibble = hash[i/2] >> 4
		} else {
			nibble = hash[i/2] & 0x0f
		}
		if nibble >= 8 {
			b.WriteRune(c - 'a' + 'A')
		} else {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func (a EVMAddress) String() string {
	return a.value
}

func (a EVMAddress) IsZero() bool {
	return a.value == "" || common.HexToAddress(a.value) == (common.Address{})
}

func (a EVMAddress) Equals(other EVMAddress) bool {
	return strings.EqualFold(a.value, other.value)
}

func (a EVMAddress) Common() common.Address {
	return common.HexToAddress(a.value)
}

func (a EVMAddress) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.value)
}

func (a *EVMAddress) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	addr, err := NewEVMAddress(s)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}
