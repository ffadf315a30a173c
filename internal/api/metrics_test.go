// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsRecordsRouteTemplateNotRawPath(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/users", addUserRequest{
		Cur: "anybody", Username: "alice", Password: "pw", Name: "Alice", Mail: "a@x", Privilege: 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/sessions", loginRequest{Username: "alice", Password: "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/users/alice?cur=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	snap := s.stats.snapshot()
	require.Contains(t, snap.Requests, "/users")
	require.Contains(t, snap.Requests, "/users/{username}")
	require.EqualValues(t, 1, snap.Requests["/users"])
	require.EqualValues(t, 1, snap.Requests["/users/{username}"])
	require.Contains(t, snap.Statuses["/users"], http.StatusCreated)
}

func TestMetricsRecordsErrorByTicketCategory(t *testing.T) {
	s := newTestServer(t)

	// logging in as a user that was never registered is a not-found
	// error in this domain, not a generic failure.
	rec := doJSON(t, s, http.MethodPost, "/sessions", loginRequest{Username: "nobody", Password: "x"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	snap := s.stats.snapshot()
	require.EqualValues(t, 1, snap.ErrorsByCategory["NOT_FOUND"])
}

func TestMetricsEndpointReportsLatency(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/users", addUserRequest{
		Cur: "anybody", Username: "bob", Password: "pw", Name: "Bob", Mail: "b@x", Privilege: 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	snap := s.stats.snapshot()
	agg, ok := snap.Durations["/users"]
	require.True(t, ok)
	require.EqualValues(t, 1, agg.Count)
}
