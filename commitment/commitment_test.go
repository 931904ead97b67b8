package commitment

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenAnswers() []string {
	return []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
}

func TestEncodeAnswersLengthPrefixed(t *testing.T) {
	encoded, err := EncodeAnswers(tenAnswers())
	require.NoError(t, err)

	// 10 answers of one byte each: 10 * (4-byte prefix + 1 byte)
	assert.Len(t, encoded, 50)
	assert.Equal(t, []byte{0, 0, 0, 1, 'A'}, encoded[:5])
}

func TestEncodeAnswersRejectsWrongCount(t *testing.T) {
	_, err := EncodeAnswers([]string{"only", "four", "answers", "here"})
	assert.ErrorIs(t, err, ErrWrongAnswerCount)
}

// Answers that concatenate identically must not encode identically.
func TestEncodeAnswersBoundaryAmbiguity(t *testing.T) {
	a := tenAnswers()
	b := tenAnswers()
	a[0], a[1] = "ab", "c"
	b[0], b[1] = "a", "bc"

	ea, err := EncodeAnswers(a)
	require.NoError(t, err)
	eb, err := EncodeAnswers(b)
	require.NoError(t, err)
	assert.NotEqual(t, ea, eb)
}

func TestCommitmentRoundTrip(t *testing.T) {
	salt := []byte{0xde, 0xad, 0xbe, 0xef}
	digest, err := Compute("player-1", "Alice", tenAnswers(), salt)
	require.NoError(t, err)

	ok, err := Matches(hex.EncodeToString(digest[:]), "player-1", "Alice", tenAnswers(), salt)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCommitmentBindsEveryInput(t *testing.T) {
	salt := []byte{1, 2, 3, 4}
	digest, err := Compute("player-1", "Alice", tenAnswers(), salt)
	require.NoError(t, err)
	stored := hex.EncodeToString(digest[:])

	otherAnswers := tenAnswers()
	otherAnswers[9] = "K"

	cases := []struct {
		name     string
		identity string
		display  string
		answers  []string
		salt     []byte
	}{
		{"different identity", "player-2", "Alice", tenAnswers(), salt},
		{"different display name", "player-1", "Bob", tenAnswers(), salt},
		{"different answers", "player-1", "Alice", otherAnswers, salt},
		{"different salt", "player-1", "Alice", tenAnswers(), []byte{9, 9, 9, 9}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := Matches(stored, tc.identity, tc.display, tc.answers, tc.salt)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCheckAnswers(t *testing.T) {
	roundSalt := []byte{0x42, 0x42}

	hashes := make([]string, NumQuestions)
	for i, a := range tenAnswers() {
		sum := AnswerHash(roundSalt, a)
		hashes[i] = hex.EncodeToString(sum[:])
	}

	correct, err := CheckAnswers(roundSalt, tenAnswers(), hashes)
	require.NoError(t, err)
	assert.True(t, correct)

	// One wrong answer is a loss, not an error.
	wrong := tenAnswers()
	wrong[3] = "X"
	correct, err = CheckAnswers(roundSalt, wrong, hashes)
	require.NoError(t, err)
	assert.False(t, correct)

	// Wrong salt fails every position.
	correct, err = CheckAnswers([]byte{0x00}, tenAnswers(), hashes)
	require.NoError(t, err)
	assert.False(t, correct)
}

func TestParseSalt(t *testing.T) {
	_, err := ParseSalt("")
	assert.Error(t, err)

	_, err = ParseSalt("zz")
	assert.Error(t, err)

	_, err = ParseSalt("00000000")
	assert.ErrorIs(t, err, ErrZeroSalt)

	salt, err := ParseSalt("a1b2")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa1, 0xb2}, salt)
}

func TestIsZeroDigest(t *testing.T) {
	zero := make([]byte, 32)
	assert.True(t, IsZeroDigest(hex.EncodeToString(zero)))
	zero[31] = 1
	assert.False(t, IsZeroDigest(hex.EncodeToString(zero)))
	assert.False(t, IsZeroDigest("not-hex"))
}
