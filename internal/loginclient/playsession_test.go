package loginclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLaunchArgs(t *testing.T) {
	args := ParseLaunchArgs("  sessionid=ABC123 foo=bar  flag a=b=c ")
	assert.Equal(t, map[string]string{
		"sessionid": "ABC123",
		"foo":       "bar",
		"flag":      "",
		"a":         "b=c",
	}, args)
	assert.Empty(t, ParseLaunchArgs(""))
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"bad token", http.StatusOK, `{"result":"BAD_TOKEN"}`, "BAD_TOKEN"},
		{"not json", http.StatusOK, `<html>`, "Unknown launchpad error"},
		{"json null", http.StatusOK, `null`, "Unknown launchpad error"},
		{"http error", http.StatusBadGateway, `oops`, "launchpad returned HTTP 502"},
		{"server error with success body", http.StatusServiceUnavailable, `{"result":"SUCCESS","launch_args":"sessionid=ABC"}`, "launchpad returned HTTP 503"},
		{"empty object", http.StatusOK, `{}`, "Unknown launchpad error"},
		{"no sessionid", http.StatusOK, `{"result":"SUCCESS","launch_args":"foo=bar"}`, "launch args carry no sessionid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := launchpad(t, tt.status, tt.body)
			_, err := fetcherFor(srv).Fetch(context.Background(), "tok")
			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, tt.message, lerr.Message)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := &PlaySessionFetcher{BaseURL: srv.URL, GameID: "ps2", Environment: "live", Timeout: 50 * time.Millisecond}
	_, err := f.Fetch(context.Background(), "tok")
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchCancelled(t *testing.T) {
	srv, _ := launchpad(t, http.StatusOK, `{"result":"SUCCESS","launch_args":"sessionid=X"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcherFor(srv).Fetch(ctx, "tok")
	assert.ErrorIs(t, err, context.Canceled)
}
