package signal_test

import (
	"fmt"
	"testing"

	"poll-voting/internal/hashing"
	"poll-voting/internal/model"
	"poll-voting/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalEncoding(t *testing.T) {
	encoded, err := signal.Canonical(model.VoteSignal{PollID: "abc", VoteIdx: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"pollId":"abc","voteIdx":2}`, string(encoded))

	// no html escaping, the same bytes as a javascript stable stringify
	encoded, err = signal.Canonical(model.VoteSignal{PollID: "<a&b>", VoteIdx: 0})
	require.NoError(t, err)
	assert.Equal(t, `{"pollId":"<a&b>","voteIdx":0}`, string(encoded))
}

func TestCanonicalEscapesLikeStringify(t *testing.T) {
	// line and paragraph separators stay raw
	encoded, err := signal.Canonical(model.VoteSignal{PollID: "a\u2028b\u2029c", VoteIdx: 0})
	require.NoError(t, err)
	assert.Equal(t, "{\"pollId\":\"a\u2028b\u2029c\",\"voteIdx\":0}", string(encoded))

	encoded, err = signal.Canonical(model.VoteSignal{PollID: "q\"b\\n\nt\tx\x01\x1f\x7fé", VoteIdx: 11})
	require.NoError(t, err)
	assert.Equal(t, `{"pollId":"q\"b\\n\nt\tx\u0001\u001f`+"\x7fé"+`","voteIdx":11}`, string(encoded))

	encoded, err = signal.Canonical(model.VoteSignal{PollID: "\b\f\r", VoteIdx: -1})
	require.NoError(t, err)
	assert.Equal(t, `{"pollId":"\b\f\r","voteIdx":-1}`, string(encoded))
}

func TestCanonicalRejectsInvalidUTF8(t *testing.T) {
	_, err := signal.Canonical(model.VoteSignal{PollID: "a\xffb", VoteIdx: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = signal.BuildSignal("a\xffb", 0)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestBuildSignalMatchesSteps(t *testing.T) {
	sig, err := signal.BuildSignal("abc", 2)
	require.NoError(t, err)

	digest := hashing.CalculateFromStr(`{"pollId":"abc","voteIdx":2}`)
	expected := hashing.FieldifyStr(digest)
	assert.Equal(t, expected.String(), sig.String())
	assert.Equal(t, "0x"+expected.Text(16), sig.Hex())
}

func TestBuildSignalDeterministic(t *testing.T) {
	first, err := signal.BuildSignal("poll-1", 0)
	require.NoError(t, err)
	second, err := signal.BuildSignal("poll-1", 0)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestBuildSignalDistinct(t *testing.T) {
	seen := map[string]string{}
	for _, pollID := range []string{"a", "b", "poll-1", "poll-10", "1"} {
		for idx := 0; idx < 12; idx++ {
			sig, err := signal.BuildSignal(pollID, idx)
			require.NoError(t, err)

			input := fmt.Sprint(pollID, "/", idx)
			if other, ok := seen[sig.String()]; ok {
				t.Fatalf("signal collision between %s and %s", input, other)
			}
			seen[sig.String()] = input
		}
	}
}

func TestNullifierSeedIgnoresOption(t *testing.T) {
	seed := signal.BuildNullifierSeed("poll-1")
	assert.True(t, seed.Equal(signal.BuildNullifierSeed("poll-1")))
	assert.False(t, seed.Equal(signal.BuildNullifierSeed("poll-2")))
	assert.Equal(t, hashing.FieldifyStr("poll-1").String(), seed.String())

	// the signal changes with the option, the seed does not
	sig0, err := signal.BuildSignal("poll-1", 0)
	require.NoError(t, err)
	sig1, err := signal.BuildSignal("poll-1", 1)
	require.NoError(t, err)
	assert.False(t, sig0.Equal(sig1))
}

func TestZeroHash(t *testing.T) {
	var h signal.Hash
	assert.Equal(t, "0", h.String())
	assert.Equal(t, "0x0", h.Hex())
}
