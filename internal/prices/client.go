package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public price API.
	DefaultBaseURL = "https://prices.runescape.wiki/api/v1/osrs"

	// DefaultMetaURL is the item metadata dump.
	DefaultMetaURL = "https://chisel.weirdgloop.org/gazproj/gazbot/os_dump.json"
)

// ItemMeta is display metadata for one item.
type ItemMeta struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

// Client fetches price series and item metadata from the public wiki APIs.
// Per-entry parse failures skip the entry; only a whole-document failure
// fails the fetch.
type Client struct {
	http      *http.Client
	baseURL   string
	metaURL   string
	userAgent string
}

// NewClient creates a price API client. Empty URLs fall back to the public
// endpoints.
func NewClient(baseURL, metaURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if metaURL == "" {
		metaURL = DefaultMetaURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		metaURL:   metaURL,
		userAgent: userAgent,
	}
}

type latestEntry struct {
	High *int `json:"high"`
	Low  *int `json:"low"`
}

type averagedEntry struct {
	AvgHighPrice *int `json:"avgHighPrice"`
	AvgLowPrice  *int `json:"avgLowPrice"`
}

// FetchLatest returns the current midpoint price per item.
func (c *Client) FetchLatest(ctx context.Context) (map[int]int, error) {
	var doc struct {
		Data map[string]latestEntry `json:"data"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/latest", &doc); err != nil {
		return nil, err
	}

	out := make(map[int]int, len(doc.Data))
	for key, entry := range doc.Data {
		id, err := strconv.Atoi(key)
		if err != nil || entry.High == nil || entry.Low == nil {
			continue
		}
		out[id] = (*entry.High + *entry.Low) / 2
	}
	return out, nil
}

// FetchAveraged returns midpoint prices from an averaged bucket ("1h" or
// "24h") at the given unix timestamp.
func (c *Client) FetchAveraged(ctx context.Context, bucket string, timestamp int64) (map[int]int, error) {
	url := fmt.Sprintf("%s/%s?timestamp=%d", c.baseURL, bucket, timestamp)

	var doc struct {
		Data map[string]averagedEntry `json:"data"`
	}
	if err := c.getJSON(ctx, url, &doc); err != nil {
		return nil, err
	}

	out := make(map[int]int, len(doc.Data))
	for key, entry := range doc.Data {
		id, err := strconv.Atoi(key)
		if err != nil || entry.AvgHighPrice == nil || entry.AvgLowPrice == nil {
			continue
		}
		out[id] = (*entry.AvgHighPrice + *entry.AvgLowPrice) / 2
	}
	return out, nil
}

// FetchItemMeta returns item display metadata keyed by item ID. Non-item
// keys in the dump are skipped.
func (c *Client) FetchItemMeta(ctx context.Context) (map[int]ItemMeta, error) {
	var doc map[string]json.RawMessage
	if err := c.getJSON(ctx, c.metaURL, &doc); err != nil {
		return nil, err
	}

	out := make(map[int]ItemMeta, len(doc))
	for key, raw := range doc {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}

		var entry struct {
			Name string `json:"name"`
			Icon string `json:"icon"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = "Item " + key
		}

		out[id] = ItemMeta{ID: id, Name: entry.Name, IconURL: iconURL(entry.Icon)}
	}
	return out, nil
}

// iconURL turns an icon file name into a wiki image URL.
func iconURL(icon string) string {
	if icon == "" {
		return ""
	}
	r := strings.NewReplacer(" ", "_", "'", "%27", "(", "%28", ")", "%29")
	return "https://oldschool.runescape.wiki/images/c/c0/" + r.Replace(icon)
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch failed: %s responded with %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", url, err)
	}
	return nil
}

// WindowTimestamp aligns now-offset down to the bucket size, matching the
// API's timestamp granularity.
func WindowTimestamp(now time.Time, offset, bucket time.Duration) int64 {
	ts := now.Add(-offset).Unix()
	step := int64(bucket / time.Second)
	return ts - ts%step
}
