package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPChecker submits codes to the check-in endpoint of one event as one operator.
type HTTPChecker struct {
	BaseURL    string
	EventID    string
	OperatorID string
	Client     *http.Client
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *HTTPChecker) Check(ctx context.Context, code string) (Result, error) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return Result{}, err
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/events/" + url.PathEscape(c.EventID) + "/checkin"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Operator-ID", c.OperatorID)

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("check in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if eb.Error == "" {
			eb.Error = resp.Status
		}
		return Result{}, fmt.Errorf("check in: %s (%s)", eb.Error, eb.Code)
	}
	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decode check-in result: %w", err)
	}
	return res, nil
}
