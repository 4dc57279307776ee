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

	"github.com/lexcodex/codebase/framework"
)

// ErrRejected is returned when the collector answers with anything but the
// success marker.
var ErrRejected = errors.New("collector rejected update")

// successBody is the collector's reply to an accepted update.
const successBody = "1"

// Metadata identifies the sender of an update.
type Metadata struct {
	Client string    `json:"client"`
	SentAt time.Time `json:"sent_at"`
}

// UpdateRequest is the body posted to the collector.
type UpdateRequest struct {
	Metadata Metadata                  `json:"metadata"`
	Projects []framework.ProjectEntity `json:"projects"`
}

// Client pushes project statistics to a collector over HTTP.
type Client struct {
	Endpoint string
	client   *http.Client
}

// NewClient builds a client for endpoint. A timeout <= 0 uses 30 seconds.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		Endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// UpdateProjects posts the entities with meta and checks the collector's
// acknowledgement.
func (c *Client) UpdateProjects(ctx context.Context, meta Metadata, projects []framework.ProjectEntity) error {
	if c.Endpoint == "" {
		return errors.New("collector endpoint not configured")
	}
	if projects == nil {
		projects = []framework.ProjectEntity{}
	}
	if meta.SentAt.IsZero() {
		meta.SentAt = time.Now().UTC()
	}
	payload, err := json.Marshal(UpdateRequest{Metadata: meta, Projects: projects})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push to %s: %w", c.Endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read collector reply: %w", err)
	}
	reply := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, reply)
	}
	if reply != successBody {
		return fmt.Errorf("%w: %s", ErrRejected, reply)
	}
	return nil
}
