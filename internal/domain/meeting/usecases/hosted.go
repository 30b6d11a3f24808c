package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-200 reply from a hosted model API.
type APIError struct {
	Service string
	Status  int
	Body    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (HTTP %d): %s", e.Service, e.Status, e.Body)
}

// hostedCall is a single POST to a hosted model API.
type hostedCall struct {
	service     string
	endpoint    string
	contentType string
	auth        map[string]string
	body        io.Reader
}

// do sends the call and decodes a 200 reply into out.
func (c hostedCall) do(ctx context.Context, client *http.Client, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, c.body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", c.contentType)
	for k, v := range c.auth {
		req.Header.Set(k, v)
	}
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s API: %w", c.service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", c.service, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Service: c.service, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", c.service, err)
	}
	return nil
}
