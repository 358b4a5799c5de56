// Package detector talks to the inference server that hosts the pretrained detection model.
package detector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"scootspot/internal/types"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	DefaultTimeout = 30 * time.Second

	imageFieldName   = "image"
	maxResponseBytes = 4 << 20
)

// Client implements ports.Detector by posting the image to an inference server and reading
// the recognized labels out of its JSON response.
type Client struct {
	endpoint   string
	labelsExpr string
	http       *http.Client
}

type Option func(*Client)

// WithLabelsExpr sets the JMESPath expression that extracts labels from the response.
func WithLabelsExpr(expr string) Option {
	return func(c *Client) {
		if expr != "" {
			c.labelsExpr = expr
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		labelsExpr: CounterCountsExpr,
		http:       &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LabelsExpr returns the JMESPath expression applied to inference responses.
func (c *Client) LabelsExpr() string { return c.labelsExpr }

func (c *Client) Detect(ctx context.Context, image []byte) (types.Counts, error) {
	if len(image) == 0 {
		return nil, types.Err(types.ErrImageDecode, nil, "empty image")
	}
	if ct := http.DetectContentType(image); !strings.HasPrefix(ct, "image/") {
		return nil, types.Err(types.ErrImageDecode, nil, "content sniffed as %s", ct)
	}

	body, contentType, err := multipartImage(image)
	if err != nil {
		return nil, types.Err(types.ErrDetector, err, "build request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, types.Err(types.ErrDetector, err, "create request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, types.Err(types.ErrDetector, err, "send request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return nil, types.Err(types.ErrImageDecode, nil, "inference rejected image with status %d", resp.StatusCode)
	default:
		return nil, types.Err(types.ErrDetector, nil, "inference failed with status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, types.Err(types.ErrDetector, err, "read response")
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, types.Err(types.ErrDetector, err, "decode response")
	}
	counts, err := CountsFromResult(c.labelsExpr, payload)
	if err != nil {
		return nil, types.Err(types.ErrDetector, err, "extract labels")
	}
	return counts, nil
}

// CheckHealth checks the inference server's root path.
func (c *Client) CheckHealth(ctx context.Context) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return err
	}
	u.Path, u.RawQuery = "/", ""
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference server unhealthy: %d", resp.StatusCode)
	}
	return nil
}

func multipartImage(image []byte) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(imageFieldName, "upload.jpg")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}
