package loginclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultLaunchpadURL is the session-token service.
	DefaultLaunchpadURL = "https://lp.soe.com"

	launchpadSuccess = "SUCCESS"
	maxResponseSize  = 1 << 20
)

// PlaySessionFetcher exchanges a launcher token for a login session ticket.
type PlaySessionFetcher struct {
	BaseURL     string
	GameID      string
	Environment string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

type launchpadResponse struct {
	Result     string `json:"result"`
	LaunchArgs string `json:"launch_args"`
}

// Fetch performs one GET {BaseURL}/{GameID}/{Environment}/get_play_session
// with the token in the lp-token cookie and returns the "sessionid" launch
// argument. Failures are *Error values; nothing is retried.
func (f *PlaySessionFetcher) Fetch(ctx context.Context, token string) (string, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	base := f.BaseURL
	if base == "" {
		base = DefaultLaunchpadURL
	}
	endpoint := strings.TrimRight(base, "/") + "/" +
		url.PathEscape(f.GameID) + "/" + url.PathEscape(f.Environment) + "/get_play_session"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", &Error{Op: "playsession", Message: "build request", Err: err}
	}
	req.Header.Set("Cookie", "lp-token="+token)

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", &Error{Op: "playsession", Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", &Error{Op: "playsession", Message: fmt.Sprintf("launchpad returned HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &Error{Op: "playsession", Message: "read response", Err: err}
	}

	var parsed *launchpadResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed == nil || parsed.Result == "" {
		return "", &Error{Op: "playsession", Message: "Unknown launchpad error"}
	}
	if parsed.Result != launchpadSuccess {
		return "", &Error{Op: "playsession", Message: parsed.Result}
	}

	sessionID, ok := ParseLaunchArgs(parsed.LaunchArgs)["sessionid"]
	if !ok || sessionID == "" {
		return "", &Error{Op: "playsession", Message: "launch args carry no sessionid"}
	}
	return sessionID, nil
}

// ParseLaunchArgs splits a space-separated key=value list. A bare key maps
// to the empty string.
func ParseLaunchArgs(args string) map[string]string {
	out := make(map[string]string)
	for _, field := range strings.Fields(args) {
		k, v, _ := strings.Cut(field, "=")
		out[k] = v
	}
	return out
}
