package ipfs

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

type formField struct {
	name  string
	value string
}

// postMultipart streams file as the "file" part of a multipart request,
// followed by fields, and returns the response for a 200 status.
func postMultipart(
	ctx context.Context,
	client *http.Client,
	url string,
	headers map[string]string,
	file File,
	fields ...formField,
) (*http.Response, error) {
	if _, err := file.Body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding file: %w", err)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", file.Name)
		if err != nil {
			_ = pw.CloseWithError(err)

			return
		}

		if _, err := io.Copy(part, file.Body); err != nil {
			_ = pw.CloseWithError(err)

			return
		}

		for _, f := range fields {
			if err := writer.WriteField(f.name, f.value); err != nil {
				_ = pw.CloseWithError(err)

				return
			}
		}

		_ = pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		_ = pr.Close()

		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(body) == 0 {
			return nil, fmt.Errorf("unexpected status: %s", resp.Status)
		}

		return nil, fmt.Errorf("unexpected status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return resp, nil
}
