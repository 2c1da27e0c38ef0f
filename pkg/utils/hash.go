package utils

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// VoterHash fingerprints a voter for one poll. The raw token is never stored.
func VoterHash(pollID, voterToken string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(pollID))
	h.Write([]byte{0})
	h.Write([]byte(voterToken))
	return hex.EncodeToString(h.Sum(nil))
}
