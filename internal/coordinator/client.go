package coordinator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
)

const maxStatusBody = 64 << 10

// AcquisitionClient talks to the acquisition service.
type AcquisitionClient struct {
	baseURL string
	client  *http.Client
}

func NewAcquisitionClient(baseURL string, timeout time.Duration) *AcquisitionClient {
	return &AcquisitionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Acquire triggers a download of the book. The service answers before the
// download finishes.
func (c *AcquisitionClient) Acquire(ctx context.Context, id catalog.BookID) error {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/acquire/%d", c.baseURL, id))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return checkStatus(resp, "acquire")
}

// Status fetches and interprets the book's download status.
func (c *AcquisitionClient) Status(ctx context.Context, id catalog.BookID) (Readiness, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/acquire/status/%d", c.baseURL, id))
	if err != nil {
		return Readiness{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "acquire status"); err != nil {
		return Readiness{}, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return Readiness{}, fmt.Errorf("%w: reading status body: %v", apperrors.ErrUpstream, err)
	}
	return ParseReadiness(body)
}

// IndexClient talks to the index service.
type IndexClient struct {
	baseURL string
	client  *http.Client
}

func NewIndexClient(baseURL string, timeout time.Duration) *IndexClient {
	return &IndexClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *IndexClient) Index(ctx context.Context, id catalog.BookID) error {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/index/update/%d", c.baseURL, id))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return checkStatus(resp, "index")
}

func (c *AcquisitionClient) do(ctx context.Context, method, url string) (*http.Response, error) {
	return send(ctx, c.client, method, url)
}

func (c *IndexClient) do(ctx context.Context, method, url string) (*http.Response, error) {
	return send(ctx, c.client, method, url)
}

func send(ctx context.Context, client *http.Client, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", apperrors.ErrUpstream, method, url, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s returned %d", apperrors.ErrNotFound, op, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s returned %d", apperrors.ErrUpstream, op, resp.StatusCode)
}
