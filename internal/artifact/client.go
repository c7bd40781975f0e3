// Package artifact retrieves simulation artifacts from the backend's
// download side-channel.
//
// Artifacts (flowsheet .bkp files, run configs, result workbooks) are
// announced on the chat stream as file paths; the bytes themselves are
// fetched with a plain GET /download?file_path=... request, never over
// the websocket.
package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/chemtalk/chemtalk/internal/log"
	"github.com/chemtalk/chemtalk/internal/transcript"
)

// lockFile guards the download directory against a second chemtalk
// instance writing the same artifacts concurrently.
const lockFile = ".chemtalk.lock"

// Client fetches artifacts from the backend download endpoint into a local
// directory.
type Client struct {
	baseURL string
	dir     string
	allowed map[string]struct{}
	httpc   *http.Client
	logger  log.Logger
}

// Config configures a download client.
type Config struct {
	// BaseURL is the backend's HTTP base, e.g. "http://localhost:8000".
	BaseURL string

	// Dir is the local directory artifacts are saved into.
	Dir string

	// AllowedExtensions mirrors the backend's allow-list; requests for
	// other extensions are rejected before any network traffic.
	AllowedExtensions []string

	// HTTPClient overrides the default client (mainly for tests).
	HTTPClient *http.Client

	Logger log.Logger
}

// NewClient creates an artifact download client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("artifact.NewClient: BaseURL is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("artifact.NewClient: Dir is required")
	}

	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 5 * time.Minute}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		dir:     cfg.Dir,
		allowed: allowed,
		httpc:   httpc,
		logger:  logger.With("component", "artifact"),
	}, nil
}

// Fetch downloads one artifact and returns the local path it was saved to.
// The local name is the base name of the remote path; the remote directory
// structure is never reproduced locally.
func (c *Client) Fetch(ctx context.Context, ref transcript.FileRef) (string, error) {
	name := path.Base(strings.ReplaceAll(ref.Path, "\\", "/"))
	if err := ValidateFilename(name); err != nil {
		return "", fmt.Errorf("artifact %q: %w", ref.Path, err)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if len(c.allowed) > 0 {
		if _, ok := c.allowed[ext]; !ok {
			return "", fmt.Errorf("artifact %q: %w", name, ErrExtensionNotAllowed)
		}
	}

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	// Advisory lock: two console instances sharing a download directory
	// must not interleave writes to the same artifact.
	lock := flock.New(filepath.Join(c.dir, lockFile))
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("locking download directory: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("locking download directory: lock not acquired")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("unlock failed", "error", err)
		}
	}()

	data, err := c.get(ctx, ref.Path)
	if err != nil {
		return "", err
	}
	defer data.Close()

	dest := filepath.Join(c.dir, name)
	f, err := os.CreateTemp(c.dir, name+".part-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("placing %s: %w", name, err)
	}

	c.logger.Info("artifact downloaded", "path", ref.Path, "dest", dest, "kind", ref.Kind)
	return dest, nil
}

// get issues the side-channel download request.
func (c *Client) get(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	u := c.baseURL + "/download?file_path=" + url.QueryEscape(remotePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", remotePath, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrDownloadFailed, remotePath, resp.Status)
	}
	return resp.Body, nil
}
