package swarm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/amonks/swarmboard/project"
	"github.com/amonks/swarmboard/reconcile"
	"github.com/amonks/swarmboard/status"
)

// Client calls the swarm API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the given address or URL.
func NewClient(addr string) *Client {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{baseURL: baseURL, client: &http.Client{}}
}

// Status returns the active project's snapshot.
func (c *Client) Status(ctx context.Context) (status.Snapshot, error) {
	var snapshot status.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &snapshot); err != nil {
		return status.Snapshot{}, err
	}
	return snapshot, nil
}

// Projects lists the projects the server can switch to.
func (c *Client) Projects(ctx context.Context) ([]project.Metadata, error) {
	var response projectsResponse
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &response); err != nil {
		return nil, err
	}
	return response.Projects, nil
}

// Switch makes the named project active. Exactly one of name and path
// must be set.
func (c *Client) Switch(ctx context.Context, name, path string) (project.Project, error) {
	var response projectResponse
	if err := c.do(ctx, http.MethodPost, "/api/project", projectRequest{Name: name, Path: path}, &response); err != nil {
		return project.Project{}, err
	}
	return response.Project, nil
}

// Merge reconciles request into the active project's task documents.
func (c *Client) Merge(ctx context.Context, request string, dryRun bool) (reconcile.Result, error) {
	var result reconcile.Result
	if err := c.do(ctx, http.MethodPost, "/api/merge", mergeRequest{Request: request, DryRun: dryRun}, &result); err != nil {
		return reconcile.Result{}, err
	}
	return result, nil
}

// Update sets the completion of the task in terminal's document that best
// matches task.
func (c *Client) Update(ctx context.Context, terminal int, task string, completed bool) (bool, error) {
	var response updateResponse
	payload := updateRequest{Terminal: terminal, Task: task, Completed: &completed}
	if err := c.do(ctx, http.MethodPost, "/api/update", payload, &response); err != nil {
		return false, err
	}
	return response.Updated, nil
}

// Refresh asks the server to publish immediately and returns the snapshot.
func (c *Client) Refresh(ctx context.Context) (status.Snapshot, error) {
	var snapshot status.Snapshot
	if err := c.do(ctx, http.MethodPost, "/api/refresh", struct{}{}, &snapshot); err != nil {
		return status.Snapshot{}, err
	}
	return snapshot, nil
}

// Subscribe streams snapshots until ctx is done or the server closes the
// stream. The error channel receives exactly one value, nil on a clean end.
func (c *Client) Subscribe(ctx context.Context) (<-chan status.Snapshot, <-chan error) {
	snapshots := make(chan status.Snapshot, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(snapshots)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/subscribe", nil)
		if err != nil {
			errCh <- err
			return
		}
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				errCh <- nil
				return
			}
			errCh <- err
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			errCh <- readErrorResponse(resp)
			return
		}
		decoder := json.NewDecoder(resp.Body)
		for {
			var snapshot status.Snapshot
			if err := decoder.Decode(&snapshot); err != nil {
				if ctx.Err() != nil {
					errCh <- nil
					return
				}
				if errors.Is(err, io.EOF) {
					errCh <- nil
					return
				}
				errCh <- err
				return
			}
			select {
			case snapshots <- snapshot:
			case <-ctx.Done():
				errCh <- nil
				return
			}
		}
	}()

	return snapshots, errCh
}

func (c *Client) do(ctx context.Context, method, path string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readErrorResponse(resp)
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func readErrorResponse(resp *http.Response) error {
	var payload map[string]string
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&payload); err == nil {
		if message, ok := payload["error"]; ok {
			return fmt.Errorf("swarm error: %s", message)
		}
	}
	return fmt.Errorf("swarm error: %s", resp.Status)
}
