package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionIssueAndValidate(t *testing.T) {
	s := NewAdminSessions(time.Hour)

	token := s.Issue()
	require.NotEmpty(t, token)
	require.True(t, s.Valid(token))
}

func TestSessionExpires(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s := NewAdminSessions(time.Hour)
	s.Clock = func() time.Time { return now }

	token := s.Issue()
	require.True(t, s.Valid(token))

	now = now.Add(time.Hour + time.Second)
	require.False(t, s.Valid(token))
}

func TestSessionRejectsTamperedToken(t *testing.T) {
	s := NewAdminSessions(time.Hour)

	token := s.Issue()
	require.False(t, s.Valid(token+"x"))
	require.False(t, s.Valid("9999999999999.deadbeef"))
	require.False(t, s.Valid("not-a-token"))
}

func TestSessionSecretIsPerInstance(t *testing.T) {
	a := NewAdminSessions(time.Hour)
	b := NewAdminSessions(time.Hour)

	require.False(t, b.Valid(a.Issue()))
}
