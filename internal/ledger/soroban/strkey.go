package soroban

import (
	"encoding/base32"
	"fmt"
)

// Strkey version bytes. The value is the "type" portion of the base32
// alphabet offset, so encoded keys start with a recognizable letter.
const (
	versionAccount  byte = 6 << 3 // 'G'
	versionContract byte = 2 << 3 // 'C'
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// DecodeAccountID decodes a G... address into its 32 byte ed25519
// public key.
func DecodeAccountID(address string) ([]byte, error) {
	return decodeStrkey(address, versionAccount)
}

// DecodeContractID decodes a C... address into its 32 byte contract hash.
func DecodeContractID(address string) ([]byte, error) {
	return decodeStrkey(address, versionContract)
}

// EncodeAccountID encodes a 32 byte ed25519 public key as a G... address.
func EncodeAccountID(key []byte) (string, error) {
	return encodeStrkey(key, versionAccount)
}

// EncodeContractID encodes a 32 byte contract hash as a C... address.
func EncodeContractID(hash []byte) (string, error) {
	return encodeStrkey(hash, versionContract)
}

func encodeStrkey(payload []byte, version byte) (string, error) {
	if len(payload) != 32 {
		return "", fmt.Errorf("strkey payload must be 32 bytes, got %d", len(payload))
	}
	raw := make([]byte, 0, 35)
	raw = append(raw, version)
	raw = append(raw, payload...)
	checksum := crc16(raw)
	raw = append(raw, byte(checksum&0xff), byte(checksum>>8))
	return b32.EncodeToString(raw), nil
}

func decodeStrkey(address string, version byte) ([]byte, error) {
	raw, err := b32.DecodeString(address)
	if err != nil {
		return nil, fmt.Errorf("decode strkey: %w", err)
	}
	if len(raw) != 35 {
		return nil, fmt.Errorf("strkey must decode to 35 bytes, got %d", len(raw))
	}
	if raw[0] != version {
		return nil, fmt.Errorf("unexpected strkey version byte %#x", raw[0])
	}
	body := raw[:33]
	want := uint16(raw[33]) | uint16(raw[34])<<8
	if got := crc16(body); got != want {
		return nil, fmt.Errorf("strkey checksum mismatch")
	}
	out := make([]byte, 32)
	copy(out, raw[1:33])
	return out, nil
}

// crc16 implements CRC16-XModem, the checksum strkeys carry.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
