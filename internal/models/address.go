package models

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for strings that are not Ronin/EVM addresses
var ErrInvalidAddress = errors.New("invalid address")

// NormalizeAddress accepts "0x…" and "ronin:…" forms and returns lowercase 0x hex
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "ronin:"); ok {
		s = "0x" + rest
	}
	if !common.IsHexAddress(s) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}
