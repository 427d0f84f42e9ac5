package pairing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const (
	// EntropySize is the number of random bytes behind every pairing code.
	EntropySize = 16

	// PassphraseWords is the number of mnemonic words kept for manual entry.
	// Hash tells a passphrase from a UUID by this token count, so it must not change.
	PassphraseWords = 4
)

var (
	ErrEntropy  = errors.New("pairing: entropy source failed")
	ErrMnemonic = errors.New("pairing: mnemonic derivation failed")
)

// Code is a pairing secret in its two interchangeable forms.
// UUID is what a QR code carries, Passphrase is what a person types.
type Code struct {
	UUID       string   `json:"uuid"`
	Passphrase []string `json:"passphrase"`
}

// Generate draws a fresh pairing code from the operating system CSPRNG.
func Generate() (Code, error) {
	return GenerateFrom(rand.Reader)
}

// GenerateFrom draws EntropySize bytes from r and derives a pairing code.
// A short or failing reader is an error; there is no fallback source.
func GenerateFrom(r io.Reader) (Code, error) {
	entropy := make([]byte, EntropySize)
	if _, err := io.ReadFull(r, entropy); err != nil {
		return Code{}, fmt.Errorf("%w: %v", ErrEntropy, err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return Code{}, fmt.Errorf("%w: %v", ErrMnemonic, err)
	}

	words := strings.Fields(mnemonic)
	if len(words) < PassphraseWords {
		return Code{}, fmt.Errorf("%w: got %d words", ErrMnemonic, len(words))
	}
	words = words[:PassphraseWords]

	return Code{
		UUID:       hex.EncodeToString([]byte(strings.Join(words, "-"))),
		Passphrase: words,
	}, nil
}

// Phrase returns the passphrase joined with hyphens.
func (c Code) Phrase() string {
	return strings.Join(c.Passphrase, "-")
}

// RoomID returns the relay room both peers end up in.
func (c Code) RoomID() string {
	return Hash(c.UUID)
}

// Hash turns either form of a pairing code into a room id: 64 hex characters
// of SHA-256. Input is lowercased, trimmed and spaces become hyphens. Four
// hyphen-separated tokens are a passphrase and get hex-encoded first, anything
// else is taken to already be the UUID form.
func Hash(input string) string {
	sanitized := Normalize(input)

	payload := sanitized
	if IsPassphrase(sanitized) {
		payload = hex.EncodeToString([]byte(sanitized))
	}

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Normalize applies the input cleanup Hash performs.
func Normalize(input string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(input)), " ", "-")
}

// IsPassphrase reports whether normalized input splits into exactly
// PassphraseWords hyphen-delimited tokens.
func IsPassphrase(normalized string) bool {
	return len(strings.Split(normalized, "-")) == PassphraseWords
}

// IsRoomID reports whether s has the shape of a room id.
func IsRoomID(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
