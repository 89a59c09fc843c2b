package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"contractapi/internal/apperr"
)

const gotenbergHTMLRoute = "/forms/chromium/convert/html"

// GotenbergRenderer converts markup with headless Chromium running in a
// Gotenberg container.
type GotenbergRenderer struct {
	baseURL string
	client  *http.Client
}

func NewGotenbergRenderer(baseURL string, timeout time.Duration) *GotenbergRenderer {
	return &GotenbergRenderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

var _ MarkupRenderer = (*GotenbergRenderer)(nil)

// A4 in inches, which is what the Chromium route expects.
var gotenbergFields = [][2]string{
	{"paperWidth", "8.27"},
	{"paperHeight", "11.7"},
	{"marginTop", "0.6"},
	{"marginBottom", "0.6"},
	{"marginLeft", "0.6"},
	{"marginRight", "0.6"},
	{"printBackground", "true"},
}

func (r *GotenbergRenderer) Render(ctx context.Context, markup string) ([]byte, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(part, markup); err != nil {
		return nil, err
	}
	for _, f := range gotenbergFields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+gotenbergHTMLRoute, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperr.DependencyUnavailable("gotenberg", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.DependencyUnavailable("gotenberg",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.DependencyUnavailable("gotenberg", err)
	}
	return out, nil
}
