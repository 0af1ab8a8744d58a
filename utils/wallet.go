package utils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// NormalizeWallet validates an EVM address and returns its EIP-55 checksum
// form, so differently-cased inputs map to one identity.
func NormalizeWallet(address string) (string, error) {
	addr := strings.TrimSpace(address)
	if len(addr) != 42 || !(strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X")) {
		return "", fmt.Errorf("wallet %q: expected 0x followed by 40 hex characters", address)
	}

	lower := strings.ToLower(addr[2:])
	if _, err := hex.DecodeString(lower); err != nil {
		return "", fmt.Errorf("wallet %q: %w", address, err)
	}

	return "0x" + checksum(lower), nil
}

// IsValidWallet reports whether address parses as an EVM address.
func IsValidWallet(address string) bool {
	_, err := NormalizeWallet(address)
	return err == nil
}

func checksum(lowerHex string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lowerHex))
	digest := hex.EncodeToString(h.Sum(nil))

	out := []byte(lowerHex)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}
