package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const userAgent = "Budget-Guardian/1.0"

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// postJSON sends payload to url. sign, when set, receives the encoded body
// and the request so it can add signature headers. Any 2xx status counts as
// delivered.
func postJSON(ctx context.Context, client *http.Client, target, url string, payload any, sign func(body []byte, req *http.Request)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", target, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if sign != nil {
		sign(body, req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s alert: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", target, resp.StatusCode)
	}
	return nil
}
