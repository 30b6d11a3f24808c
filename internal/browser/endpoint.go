package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNoDebuggerURL is returned when the endpoint does not advertise a
// browser websocket.
var ErrNoDebuggerURL = errors.New("browser did not report a devtools websocket url")

// VersionInfo is the payload of /json/version.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Endpoint is the HTTP side of a browser's remote debugging port.
type Endpoint struct {
	Addr   string
	Client *http.Client
}

// NewEndpoint returns an Endpoint for host:port.
func NewEndpoint(addr string) *Endpoint {
	return &Endpoint{Addr: addr, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (e *Endpoint) baseURL() string {
	if strings.HasPrefix(e.Addr, "http://") || strings.HasPrefix(e.Addr, "https://") {
		return strings.TrimRight(e.Addr, "/")
	}
	return "http://" + e.Addr
}

// Version reports the browser behind the endpoint.
func (e *Endpoint) Version(ctx context.Context) (*VersionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL()+"/json/version", nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser debug endpoint %s unreachable: %w", e.Addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("browser debug endpoint %s: HTTP %d", e.Addr, resp.StatusCode)
	}
	var v VersionInfo
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding /json/version: %w", err)
	}
	return &v, nil
}
