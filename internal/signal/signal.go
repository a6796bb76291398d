// Package signal derives the values a membership proof for a vote is bound to.
//
// The signal commits to the chosen option, the nullifier seed only to the poll,
// so one identity can produce a single valid proof per poll whatever it votes.
package signal

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"unicode/utf8"

	"poll-voting/internal/hashing"
	"poll-voting/internal/model"
)

// Hash is a field element handed to the proof agent.
type Hash struct {
	value *big.Int
}

// String returns the decimal form, which is what the proof agent expects.
func (h Hash) String() string {
	if h.value == nil {
		return "0"
	}
	return h.value.String()
}

func (h Hash) Hex() string {
	if h.value == nil {
		return "0x0"
	}
	return "0x" + h.value.Text(16)
}

func (h Hash) Big() *big.Int {
	if h.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(h.value)
}

func (h Hash) Equal(other Hash) bool {
	return h.Big().Cmp(other.Big()) == 0
}

// Canonical serializes the signal with sorted keys and no insignificant
// whitespace, escaping strings the way JSON.stringify does. Two signals with
// the same values always give the same bytes.
func Canonical(sig model.VoteSignal) ([]byte, error) {
	if !utf8.ValidString(sig.PollID) {
		return nil, fmt.Errorf("%w: poll id is not valid UTF-8", model.ErrValidation)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"pollId":`)
	writeString(&buf, sig.PollID)
	buf.WriteString(`,"voteIdx":`)
	buf.WriteString(strconv.Itoa(sig.VoteIdx))
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// writeString quotes s. Only the quote, the backslash and control characters
// are escaped, everything else including U+2028 and U+2029 is written raw.
func writeString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"

	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hex[c>>4])
				buf.WriteByte(hex[c&0xf])
				continue
			}
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
}

// BuildSignal returns fieldify(sha256hex(canonical({pollId, voteIdx}))).
func BuildSignal(pollID string, voteIdx int) (Hash, error) {
	encoded, err := Canonical(model.VoteSignal{PollID: pollID, VoteIdx: voteIdx})
	if err != nil {
		return Hash{}, err
	}

	digest := hashing.Calculate(encoded)
	return Hash{value: hashing.FieldifyStr(digest)}, nil
}

// BuildNullifierSeed returns fieldify(pollID), it does not depend on the chosen option.
func BuildNullifierSeed(pollID string) Hash {
	return Hash{value: hashing.FieldifyStr(pollID)}
}
