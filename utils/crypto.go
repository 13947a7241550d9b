package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

const SHA256 = iota

// HmacSign returns the lowercase hex HMAC of params.
func HmacSign(hashType int, params, secret string) (string, error) {
	var mac hash.Hash
	switch hashType {
	case SHA256:
		mac = hmac.New(sha256.New, []byte(secret))
	default:
		return "", fmt.Errorf("not support type: %v", hashType)
	}

	_, err := mac.Write([]byte(params))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}
