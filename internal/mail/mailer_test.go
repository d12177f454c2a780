package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/covenant-hq/covenant/testing"
)

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	msg := Message{To: "owner@example.com", Subject: "Past due balance", Body: "Your account is past due."}

	raw := string(buildMessage("no-reply@covenant.local", msg, now))

	require.True(t, strings.HasPrefix(raw, "From: no-reply@covenant.local\r\n"))
	require.Contains(t, raw, "To: owner@example.com\r\n")
	require.Contains(t, raw, "Subject: Past due balance\r\n")
	require.Contains(t, raw, "Content-Type: text/plain; charset=utf-8\r\n")
	require.True(t, strings.HasSuffix(raw, "\r\nYour account is past due."))
}

func TestBuildMessageStripsHeaderInjection(t *testing.T) {
	msg := Message{To: "owner@example.com", Subject: "hi\r\nBcc: everyone@example.com", Body: "x"}
	raw := string(buildMessage("no-reply@covenant.local", msg, time.Now()))
	require.NotContains(t, raw, "\r\nBcc:")
	require.Contains(t, raw, "Subject: hi  Bcc: everyone@example.com\r\n")
}
