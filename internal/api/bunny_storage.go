package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"headshotstudio/internal/config"
	"headshotstudio/internal/httpclient"
)

const bunnyStorageEndpoint = "https://storage.bunnycdn.com"

var errHostNotAllowed = errors.New("image host not allowed")

// bunnyMirror copies generated images to Bunny storage so saved images
// outlive the short-lived upstream delivery URLs. Source URLs come from
// clients, so only allowlisted hosts are fetched.
type bunnyMirror struct {
	endpoint     string
	zone         string
	key          string
	pullBase     string
	maxBytes     int64
	allowedHosts []string
	client       *http.Client
}

func newBunnyMirror(cfg config.Config, client *http.Client) *bunnyMirror {
	if client == nil {
		client = httpclient.New(httpclient.Options{Timeout: 30 * time.Second, PublicOnly: true})
	}
	hosts := make([]string, 0, len(cfg.MirrorAllowedHosts))
	for _, h := range cfg.MirrorAllowedHosts {
		if h = strings.ToLower(strings.Trim(strings.TrimSpace(h), ".")); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &bunnyMirror{
		endpoint:     bunnyStorageEndpoint,
		zone:         strings.TrimSpace(cfg.BunnyStorageZone),
		key:          strings.TrimSpace(cfg.BunnyStorageKey),
		pullBase:     strings.TrimRight(strings.TrimSpace(cfg.BunnyPullBaseURL), "/"),
		maxBytes:     int64(cfg.MirrorMaxBytes),
		allowedHosts: hosts,
		client:       client,
	}
}

// hostAllowed matches an allowlisted host exactly or as a parent domain.
func (m *bunnyMirror) hostAllowed(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, h := range m.allowedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// Mirror downloads srcURL and stores it under generated/{yyyy}/{mm}/{imageID}{ext}.
// It returns the public pull URL.
func (m *bunnyMirror) Mirror(ctx context.Context, imageID, srcURL string) (string, error) {
	payload, contentType, err := m.download(ctx, srcURL)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	objectPath := path.Join("generated", now.Format("2006"), now.Format("01"), imageID+fileExtForContentType(contentType))
	if err := m.put(ctx, objectPath, payload, contentType); err != nil {
		return "", err
	}
	return m.pullURL(objectPath), nil
}

func (m *bunnyMirror) download(ctx context.Context, srcURL string) ([]byte, string, error) {
	u, err := url.Parse(srcURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", fmt.Errorf("unsupported image url %q", srcURL)
	}
	if !m.hostAllowed(u.Hostname()) {
		return nil, "", fmt.Errorf("%w: %s", errHostNotAllowed, u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	res, err := m.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, "", fmt.Errorf("image download failed (%d)", res.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(res.Body, m.maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(payload)) > m.maxBytes {
		return nil, "", fmt.Errorf("image larger than %d bytes", m.maxBytes)
	}
	if len(payload) == 0 {
		return nil, "", errors.New("empty image")
	}

	contentType := http.DetectContentType(payload)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("unexpected content type %q", contentType)
	}
	return payload, contentType, nil
}

func (m *bunnyMirror) put(ctx context.Context, objectPath string, payload []byte, contentType string) error {
	u := m.endpoint + "/" + url.PathEscape(m.zone) + "/" + bunnyEscapePath(objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("AccessKey", m.key)
	req.Header.Set("Content-Type", contentType)

	res, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 8<<10))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = res.Status
	}
	return fmt.Errorf("bunny upload failed (%d): %s", res.StatusCode, msg)
}

func (m *bunnyMirror) pullURL(objectPath string) string {
	return m.pullBase + "/" + strings.TrimLeft(objectPath, "/")
}

func bunnyEscapePath(p string) string {
	p = strings.TrimLeft(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, url.PathEscape(part))
	}
	return strings.Join(out, "/")
}

func fileExtForContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(ct, "image/webp"):
		return ".webp"
	case strings.HasPrefix(ct, "image/gif"):
		return ".gif"
	}
	return ".png"
}
