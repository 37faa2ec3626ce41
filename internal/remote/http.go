package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client is the HTTP implementation of Service, speaking a small JSON RPC to
// the sync server. The long-poll request uses a dedicated http.Client without
// a timeout since the server holds the connection open until a change exists.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	pollc   *http.Client
	log     zerolog.Logger
}

// NewClient creates an HTTP client for the sync server at baseURL.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		pollc:   &http.Client{},
		log:     log,
	}
}

// Submit implements Service.
func (c *Client) Submit(ctx context.Context, requestType string, payload any) (*SubmitResponse, error) {
	op := "submit " + requestType
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewError(KindDecode, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/submit/%s", c.baseURL, requestType), bytes.NewReader(body))
	if err != nil {
		return nil, NewError(KindUnavailable, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp SubmitResponse
	if err := c.do(req, op, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMonth implements Service.
func (c *Client) FetchMonth(ctx context.Context, year, month int) (*DeltaBatch, error) {
	op := fmt.Sprintf("fetch month %d-%02d", year, month)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/months/%d/%d", c.baseURL, year, month), nil)
	if err != nil {
		return nil, NewError(KindUnavailable, op, err)
	}
	var batch DeltaBatch
	if err := c.do(req, op, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// FetchReference implements Service.
func (c *Client) FetchReference(ctx context.Context) (*DeltaBatch, error) {
	const op = "fetch reference"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/reference", nil)
	if err != nil {
		return nil, NewError(KindUnavailable, op, err)
	}
	var batch DeltaBatch
	if err := c.do(req, op, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

// LongPoll implements Service. A 204 from the server means the poll timed out
// with no changes and the caller should reconnect with the same cursor.
func (c *Client) LongPoll(ctx context.Context, cursor int64) (*DeltaBatch, error) {
	op := fmt.Sprintf("long poll cursor=%d", cursor)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/changes?cursor=%d", c.baseURL, cursor), nil)
	if err != nil {
		return nil, NewError(KindUnavailable, op, err)
	}
	c.authorize(req)

	resp, err := c.pollc.Do(req)
	if err != nil {
		return nil, classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		c.log.Debug().Int64("cursor", cursor).Msg("long poll timed out, reconnecting")
		return nil, nil
	}
	if err := statusError(op, resp); err != nil {
		return nil, err
	}
	var batch DeltaBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, NewError(KindDecode, op, err)
	}
	return &batch, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(req *http.Request, op string, out any) error {
	c.authorize(req)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return classify(op, err)
	}
	defer resp.Body.Close()

	if err := statusError(op, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(KindDecode, op, err)
	}
	return nil
}

// classify maps transport-level errors: context cancellation is the expected
// teardown path, everything else means the server was unreachable.
func classify(op string, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindCanceled, op, err)
	}
	return NewError(KindUnavailable, op, err)
}

func statusError(op string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewError(KindCredentialsExpired, op, fmt.Errorf("status %d", resp.StatusCode))
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return NewError(KindServer, op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
}

// Ensure Client implements the Service interface.
var _ Service = (*Client)(nil)
