// Package api is a minimal Jellyfin HTTP client covering the calls the
// refresher needs: the public system info probe, item listing and the
// per-item refresh trigger.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultClientName = "remeta"
	defaultVersion    = "0.1"

	// listLimit caps a single listing response.
	listLimit = 1000

	// listFields are the extra record fields requested from the server.
	listFields = "Path,ProviderIds,SeriesName"

	verifyTimeout = 10 * time.Second
)

var baseHrefPattern = regexp.MustCompile(`<base href="([^"]+)"`)

type Client struct {
	baseURL    string
	token      string
	deviceID   string
	deviceName string
	client     *http.Client
	log        zerolog.Logger
	debug      bool
}

func NewClient(baseURL, token, deviceID, deviceName string, timeout time.Duration, log zerolog.Logger, debug bool) *Client {
	if deviceName == "" {
		deviceName = defaultClientName
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		deviceID:   deviceID,
		deviceName: deviceName,
		client:     &http.Client{Timeout: timeout},
		log:        log,
		debug:      debug,
	}
}

// PublicInfo fetches /System/Info/Public without authentication. Used as a
// lightweight connectivity probe.
func (c *Client) PublicInfo(ctx context.Context) (*PublicSystemInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	endpoint := c.baseURL + "/System/Info/Public"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.dump(http.MethodGet, endpoint, nil, 0, "", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	c.dump(http.MethodGet, endpoint, nil, resp.StatusCode, string(body), nil)

	if resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var info PublicSystemInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parsing system info: %w", err)
	}
	return &info, nil
}

type ListOptions struct {
	// ParentID scopes the listing to one library or folder.
	ParentID string
	// IncludeTypes is the server-side item type filter, comma-joined into
	// includeItemTypes. An empty list sends no type filter.
	IncludeTypes []string
}

// Items lists catalog entries matching opts. The listing is always recursive
// and capped at listLimit records. An HTML payload in place of JSON yields an
// AuthWallError.
func (c *Client) Items(ctx context.Context, opts ListOptions) ([]Item, error) {
	params := url.Values{}
	if opts.ParentID != "" {
		params.Set("parentId", opts.ParentID)
	}
	if len(opts.IncludeTypes) > 0 {
		params.Set("includeItemTypes", strings.Join(opts.IncludeTypes, ","))
	}
	params.Set("recursive", "true")
	params.Set("fields", listFields)
	params.Set("limit", strconv.Itoa(listLimit))

	endpoint := c.baseURL + "/Items?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.applyAuthHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.dump(http.MethodGet, endpoint, params, 0, "", err)
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading listing response: %w", err)
	}
	c.dump(http.MethodGet, endpoint, params, resp.StatusCode, string(body), nil)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response from server")
	}

	var parsed ItemsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if wall := detectAuthWall(string(body)); wall != nil {
			return nil, wall
		}
		return nil, fmt.Errorf("parsing listing response: %w", err)
	}
	return parsed.Items, nil
}

// MediaFolders lists the server's top-level libraries, for scoping a run to
// one library via parentId.
func (c *Client) MediaFolders(ctx context.Context) ([]Item, error) {
	endpoint := c.baseURL + "/Library/MediaFolders"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.applyAuthHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.dump(http.MethodGet, endpoint, nil, 0, "", err)
		return nil, fmt.Errorf("listing media folders: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	c.dump(http.MethodGet, endpoint, nil, resp.StatusCode, string(body), nil)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var parsed ItemsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing media folders response: %w", err)
	}
	return parsed.Items, nil
}

type RefreshOptions struct {
	Mode                RefreshMode
	ReplaceAllMetadata  bool
	ReplaceAllImages    bool
	RegenerateTrickplay bool
}

// Values serializes the options as refresh endpoint query parameters. The
// mode drives both the metadata and the image refresh.
func (o RefreshOptions) Values() url.Values {
	mode := o.Mode
	if mode == "" {
		mode = RefreshFullRefresh
	}
	params := url.Values{}
	params.Set("metadataRefreshMode", string(mode))
	params.Set("imageRefreshMode", string(mode))
	params.Set("replaceAllMetadata", strconv.FormatBool(o.ReplaceAllMetadata))
	params.Set("replaceAllImages", strconv.FormatBool(o.ReplaceAllImages))
	params.Set("regenerateTrickplay", strconv.FormatBool(o.RegenerateTrickplay))
	return params
}

// Refresh queues a metadata refresh for one item. The server answers 204 for
// a queued refresh; 401 and 404 map to ErrUnauthorized and ErrNotFound, any
// other non-2xx status to a StatusError.
func (c *Client) Refresh(ctx context.Context, itemID string, opts RefreshOptions) error {
	params := opts.Values()
	endpoint := c.baseURL + "/Items/" + url.PathEscape(itemID) + "/Refresh?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	c.applyAuthHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.dump(http.MethodPost, endpoint, params, 0, "", err)
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	c.dump(http.MethodPost, endpoint, params, resp.StatusCode, string(body), nil)

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

func (c *Client) applyAuthHeaders(req *http.Request) {
	auth := fmt.Sprintf("MediaBrowser Client=%q, Device=%q, DeviceId=%q, Version=%q",
		defaultClientName, c.deviceName, c.deviceID, defaultVersion)
	req.Header.Set("X-Emby-Authorization", auth)
	if c.token != "" {
		req.Header.Set("X-Emby-Token", c.token)
	}
	req.Header.Set("Content-Type", "application/json")
}

const dumpBodyLimit = 1000

// dump logs request/response detail in debug mode. The API token never
// appears: it travels in a header, and headers are not logged.
func (c *Client) dump(method, endpoint string, params url.Values, status int, body string, err error) {
	if !c.debug {
		return
	}
	ev := c.log.Debug().Str("method", method).Str("url", endpoint)
	if len(params) > 0 {
		ev = ev.Str("params", params.Encode())
	}
	if status != 0 {
		ev = ev.Int("status", status)
	}
	if body != "" {
		if len(body) > dumpBodyLimit {
			body = body[:dumpBodyLimit] + "... (truncated)"
		}
		ev = ev.Str("body", body)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("request/response dump")
}

func detectAuthWall(body string) *AuthWallError {
	trimmed := strings.TrimSpace(body)
	if !strings.HasPrefix(trimmed, "<!DOCTYPE html>") && !strings.Contains(body, "<html") {
		return nil
	}
	wall := &AuthWallError{}
	if m := baseHrefPattern.FindStringSubmatch(body); m != nil {
		wall.LoginURL = m[1]
	}
	return wall
}
