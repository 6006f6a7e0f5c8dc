// Package remote implements the Remote Backend (C4): an HTTP proxy to a
// remote "AgentOS" case service, exposing the same Thread Instance
// contract as the Local Backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Client wraps the AgentOS HTTP protocol behind a circuit
// breaker, so a flapping remote does not pile up retrying goroutines —
// a home for the sony/gobreaker dependency in this module.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "agentos",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &Client{baseURL: baseURL, http: httpClient, breaker: cb}
}

type createCaseResponse struct {
	ID string `json:"id"`
}

// CreateCase implements `POST {base}/api/cases`.
func (c *Client) CreateCase(ctx context.Context, projectID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"projectId": projectID})
	resp, err := c.do(ctx, http.MethodPost, "/api/cases", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out createCaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create-case response: %w", err)
	}
	return out.ID, nil
}

// OpenEventStream implements `GET {base}/api/cases/{caseId}/events`, and
// returns the raw body for the SSE parser to consume.
func (c *Client) OpenEventStream(ctx context.Context, caseID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/cases/"+caseID+"/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("open event stream: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

type sendMessageRequest struct {
	Content         any    `json:"content"`
	UserID          string `json:"userId"`
	AnswerToEventID string `json:"answerToEventId,omitempty"`
}

// SendMessage implements `POST {base}/api/cases/{caseId}/messages`.
func (c *Client) SendMessage(ctx context.Context, caseID, userID string, content any, answerToEventID string) error {
	body, _ := json.Marshal(sendMessageRequest{Content: content, UserID: userID, AnswerToEventID: answerToEventID})
	resp, err := c.do(ctx, http.MethodPost, "/api/cases/"+caseID+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Stop implements `POST {base}/api/cases/{caseId}/stop`, fire-and-forget.
func (c *Client) Stop(ctx context.Context, caseID string) {
	resp, err := c.do(ctx, http.MethodPost, "/api/cases/"+caseID+"/stop", nil)
	if err == nil {
		resp.Body.Close()
	}
}

// DeleteCase implements `DELETE {base}/api/cases/{caseId}`, best-effort.
func (c *Client) DeleteCase(ctx context.Context, caseID string) {
	resp, err := c.do(ctx, http.MethodDelete, "/api/cases/"+caseID, nil)
	if err == nil {
		resp.Body.Close()
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("agentos: server error %d on %s %s", resp.StatusCode, method, path)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}
