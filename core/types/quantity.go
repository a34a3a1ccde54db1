package types

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
)

// Hex-quantity helpers shared by the JSON interchange forms. Quantities are
// minimal 0x-prefixed hex with no leading zero digits ("0x0" for zero).

// QuantityFromUint64 formats v as a hex quantity.
func QuantityFromUint64(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

// QuantityFromBig formats v as a hex quantity. Nil formats as "0x0".
func QuantityFromBig(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

// QuantityFromU256 formats v as a hex quantity.
func QuantityFromU256(v *uint256.Int) string {
	if v == nil {
		return "0x0"
	}
	return v.Hex()
}

// QuantityToUint64 parses a hex quantity into a uint64.
func QuantityToUint64(s string) (uint64, error) {
	digits, err := quantityDigits(s)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(digits, 16, 64)
}

// QuantityToBig parses a hex quantity of at most 256 bits.
func QuantityToBig(s string) (*big.Int, error) {
	digits, err := quantityDigits(s)
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("hex quantity %q exceeds 256 bits", s)
	}
	return v, nil
}

// QuantityToU256 parses a hex quantity into z.
func QuantityToU256(s string, z *uint256.Int) error {
	digits, err := quantityDigits(s)
	if err != nil {
		return err
	}
	if err := z.SetFromHex("0x" + digits); err != nil {
		return fmt.Errorf("invalid hex quantity %q: %v", s, err)
	}
	return nil
}

func quantityDigits(s string) (string, error) {
	if !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("quantity %q missing 0x prefix", s)
	}
	digits := s[2:]
	if digits == "" {
		return "", fmt.Errorf("quantity %q has no digits", s)
	}
	if digits[0] == '+' || digits[0] == '-' {
		return "", fmt.Errorf("quantity %q has a sign prefix", s)
	}
	if len(digits) > 1 && digits[0] == '0' {
		return "", fmt.Errorf("quantity %q has leading zero digits", s)
	}
	return digits, nil
}
