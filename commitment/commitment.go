// Copyright (c) 2026 Callum-CMc.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package commitment

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// NumQuestions is the fixed number of answers bound into a commitment.
const NumQuestions = 10

var (
	ErrWrongAnswerCount = errors.New("expected exactly 10 answers")
	ErrZeroSalt         = errors.New("salt must be nonzero")
	ErrBadHex           = errors.New("invalid hex encoding")
)

// EncodeAnswers produces the canonical length-prefixed encoding of the
// answer set. Each answer is emitted as a big-endian uint32 length
// followed by its bytes, so variable-length answers can never collide
// across string boundaries the way naive concatenation would.
func EncodeAnswers(answers []string) ([]byte, error) {
	if len(answers) != NumQuestions {
		return nil, ErrWrongAnswerCount
	}
	var buf []byte
	var lenPrefix [4]byte
	for _, a := range answers {
		binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(a)))
		buf = append(buf, lenPrefix[:]...)
		buf = append(buf, a...)
	}
	return buf, nil
}

// Compute recomputes the commitment digest:
//
//	H( identity ‖ H(displayName) ‖ H(encode(answers)) ‖ revealSalt )
//
// The identity is hashed as the ASCII bytes of the player id.
func Compute(identity, displayName string, answers []string, revealSalt []byte) ([32]byte, error) {
	encoded, err := EncodeAnswers(answers)
	if err != nil {
		return [32]byte{}, err
	}

	nameHash := sha256.Sum256([]byte(displayName))
	answersHash := sha256.Sum256(encoded)

	h := sha256.New()
	h.Write([]byte(identity))
	h.Write(nameHash[:])
	h.Write(answersHash[:])
	h.Write(revealSalt)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Matches reports whether the revealed data recomputes to the stored
// commitment hash (hex encoded).
func Matches(storedHex, identity, displayName string, answers []string, revealSalt []byte) (bool, error) {
	stored, err := ParseDigest(storedHex)
	if err != nil {
		return false, err
	}
	computed, err := Compute(identity, displayName, answers, revealSalt)
	if err != nil {
		return false, err
	}
	return computed == stored, nil
}

// AnswerHash computes the salted per-question digest H(roundSalt ‖ answer).
func AnswerHash(roundSalt []byte, answer string) [32]byte {
	h := sha256.New()
	h.Write(roundSalt)
	h.Write([]byte(answer))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CheckAnswers reports whether every revealed answer hashes to the
// stored per-question digest. A mismatch anywhere is a loss, not an
// error; only malformed input errors.
func CheckAnswers(roundSalt []byte, answers []string, correctHashes []string) (bool, error) {
	if len(answers) != NumQuestions || len(correctHashes) != NumQuestions {
		return false, ErrWrongAnswerCount
	}
	correct := true
	for i, a := range answers {
		want, err := ParseDigest(correctHashes[i])
		if err != nil {
			return false, fmt.Errorf("answer hash %d: %w", i, err)
		}
		if AnswerHash(roundSalt, a) != want {
			correct = false
		}
	}
	return correct, nil
}

// ParseDigest decodes a hex SHA-256 digest.
func ParseDigest(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return out, ErrBadHex
	}
	copy(out[:], b)
	return out, nil
}

// ParseSalt decodes a hex salt and rejects empty or all-zero values.
func ParseSalt(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 {
		return nil, ErrBadHex
	}
	zero := true
	for _, c := range b {
		if c != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, ErrZeroSalt
	}
	return b, nil
}

// IsZeroDigest reports whether a hex digest decodes to all zero bytes.
// A zero commitment hash means "absent".
func IsZeroDigest(s string) bool {
	d, err := ParseDigest(s)
	if err != nil {
		return false
	}
	return d == [32]byte{}
}
