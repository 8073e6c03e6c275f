// Package netx executes the presigned object-store requests handed out by
// the media API.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody bounds the response text quoted in errors.
const maxErrorBody = 512

// Presigned sends body to url with the given method and headers and returns
// the response body. A nil client means http.DefaultClient. Any status other
// than 200 is an error.
func Presigned(ctx context.Context, client *http.Client, method, url string, header http.Header, body []byte) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%s failed: %s; body: %s", method, resp.Status, string(b))
	}
	return io.ReadAll(resp.Body)
}
