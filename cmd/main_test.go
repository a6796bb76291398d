package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"poll-voting/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestPrintToken(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printToken(&out, testSecret, "https://server/groups/1", time.Hour))

	token := strings.TrimSpace(out.String())
	credential, err := auth.NewVerifier(zap.NewNop(), testSecret).Verify(context.TODO(), token)
	require.NoError(t, err)
	assert.Equal(t, "https://server/groups/1", credential.GroupURL)
	assert.WithinDuration(t, time.Now().Add(time.Hour), credential.Expiry, time.Minute)
}

func TestPrintTokenNeedsSecret(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, printToken(&out, "", "https://server/groups/1", time.Hour))
	assert.Empty(t, out.String())
}
