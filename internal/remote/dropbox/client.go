// Package dropbox implements remote.Source against the Dropbox HTTP API.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kalyan02/blogdkr/internal/remote"
)

const (
	defaultAPIBase     = "https://api.dropboxapi.com"
	defaultContentBase = "https://content.dropboxapi.com"

	maxTries = 4
)

// Client talks to the Dropbox API. Stateless apart from the injected token
// provider; safe to call repeatedly from a single worker.
type Client struct {
	tokens TokenProvider
	http   *http.Client

	// Overridable in tests.
	apiBase     string
	contentBase string
}

// NewClient creates a Client using the given credential provider.
func NewClient(tokens TokenProvider) *Client {
	return &Client{
		tokens:      tokens,
		http:        &http.Client{Timeout: 60 * time.Second},
		apiBase:     defaultAPIBase,
		contentBase: defaultContentBase,
	}
}

type listFolderRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type listFolderContinueRequest struct {
	Cursor string `json:"cursor"`
}

type listFolderEntry struct {
	Tag            string    `json:".tag"`
	Name           string    `json:"name"`
	PathDisplay    string    `json:"path_display,omitempty"`
	ServerModified time.Time `json:"server_modified,omitempty"`
	Size           uint64    `json:"size,omitempty"`
	ContentHash    string    `json:"content_hash,omitempty"`
}

type listFolderResponse struct {
	Entries []listFolderEntry `json:"entries"`
	Cursor  string            `json:"cursor"`
	HasMore bool              `json:"has_more"`
}

// List returns every file entry under root and the cursor for the listing.
func (c *Client) List(ctx context.Context, root string, recursive bool) ([]remote.Entry, string, error) {
	// The API expects "" for the root folder.
	path := root
	if path == "/" {
		path = ""
	}

	var entries []remote.Entry
	resp, err := c.listFolder(ctx, listFolderRequest{Path: path, Recursive: recursive})
	if err != nil {
		return nil, "", err
	}
	entries = appendFileEntries(entries, resp.Entries)

	for resp.HasMore {
		resp, err = c.listFolderContinue(ctx, resp.Cursor)
		if err != nil {
			return nil, "", err
		}
		entries = appendFileEntries(entries, resp.Entries)
	}

	return entries, resp.Cursor, nil
}

// ChangesSince returns file entries changed since cursor, paginating the
// continuation feed until exhausted, and the new terminal cursor.
func (c *Client) ChangesSince(ctx context.Context, cursor string) ([]remote.Entry, string, error) {
	var entries []remote.Entry
	current := cursor
	for {
		resp, err := c.listFolderContinue(ctx, current)
		if err != nil {
			return nil, "", err
		}
		entries = appendFileEntries(entries, resp.Entries)
		current = resp.Cursor
		if !resp.HasMore {
			return entries, current, nil
		}
	}
}

// Download opens the content stream of a remote file.
func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	accessToken, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	arg, err := json.Marshal(struct {
		Path string `json:"path"`
	}{Path: path})
	if err != nil {
		return nil, fmt.Errorf("marshal download arg: %w", err)
	}

	operation := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.contentBase+"/2/files/download", nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Dropbox-API-Arg", string(arg))

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			err := fmt.Errorf("download %s: status %d: %s", path, resp.StatusCode, body)
			if !retryableStatus(resp.StatusCode) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxTries))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) listFolder(ctx context.Context, req listFolderRequest) (*listFolderResponse, error) {
	var resp listFolderResponse
	if err := c.rpc(ctx, "/2/files/list_folder", req, &resp); err != nil {
		return nil, fmt.Errorf("list folder: %w", err)
	}
	return &resp, nil
}

func (c *Client) listFolderContinue(ctx context.Context, cursor string) (*listFolderResponse, error) {
	var resp listFolderResponse
	req := listFolderContinueRequest{Cursor: cursor}
	if err := c.rpc(ctx, "/2/files/list_folder/continue", req, &resp); err != nil {
		return nil, fmt.Errorf("list folder continue: %w", err)
	}
	return &resp, nil
}

// rpc posts a JSON request to an api endpoint, retrying transient
// failures with exponential backoff.
func (c *Client) rpc(ctx context.Context, endpoint string, reqBody, respBody any) error {
	accessToken, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.apiBase+endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("status %d: %s", resp.StatusCode, body)
			if !retryableStatus(resp.StatusCode) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxTries))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// appendFileEntries keeps file entries and drops folders and deletions.
func appendFileEntries(dst []remote.Entry, src []listFolderEntry) []remote.Entry {
	for _, e := range src {
		if e.Tag != "file" {
			continue
		}
		dst = append(dst, remote.Entry{
			Path:        e.PathDisplay,
			Size:        e.Size,
			ContentHash: e.ContentHash,
			Modified:    e.ServerModified,
		})
	}
	return dst
}
