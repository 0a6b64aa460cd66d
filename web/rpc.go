package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/amonks/swarmboard/project"
	"github.com/amonks/swarmboard/reconcile"
	"github.com/amonks/swarmboard/status"
)

func callJSON(ctx context.Context, client *http.Client, method, baseURL, path string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
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

type projectsResponse struct {
	Projects []project.Metadata `json:"projects"`
	Active   string             `json:"active,omitempty"`
}

type projectRequest struct {
	Name string `json:"name,omitempty"`
}

type projectResponse struct {
	Project  project.Project `json:"project"`
	Snapshot status.Snapshot `json:"snapshot"`
}

type mergeRequest struct {
	Request string `json:"request"`
	DryRun  bool   `json:"dry_run,omitempty"`
}

type mergeResponse = reconcile.Result

type updateRequest struct {
	Terminal  int    `json:"terminal"`
	Task      string `json:"task"`
	Completed *bool  `json:"completed,omitempty"`
}

type updateResponse struct {
	Updated bool `json:"updated"`
}
