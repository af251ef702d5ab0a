// Package lookup resolves product barcodes to names via Open Food Facts.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const cacheTTL = 24 * time.Hour

// UnknownName is used for products that exist but carry no name.
const UnknownName = "Unknown product"

var ErrInvalidCode = errors.New("barcode must be 8 to 14 digits")

// Config holds the product database settings.
type Config struct {
	BaseURL  string
	Language string // preferred product_name_<lang> field, e.g. "it"
}

// Product is the subset of a product record the app uses.
type Product struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Brand string `json:"brand,omitempty"`
}

type cacheEntry struct {
	product   Product
	found     bool
	fetchedAt time.Time
}

// Client looks products up and caches the answers, misses included.
type Client struct {
	cfg    Config
	client *http.Client
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://world.openfoodfacts.org"
	}
	if cfg.Language == "" {
		cfg.Language = "it"
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// ValidCode reports whether code looks like an EAN/UPC barcode.
func ValidCode(code string) bool {
	if len(code) < 8 || len(code) > 14 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Lookup returns the product for code and whether it is known.
func (c *Client) Lookup(ctx context.Context, code string) (Product, bool, error) {
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return Product{}, false, fmt.Errorf("lookup %q: %w", code, ErrInvalidCode)
	}

	c.mu.RLock()
	entry, ok := c.cache[code]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < cacheTTL {
		return entry.product, entry.found, nil
	}

	product, found, err := c.fetch(ctx, code)
	if err != nil {
		return Product{}, false, err
	}

	c.mu.Lock()
	c.cache[code] = cacheEntry{product: product, found: found, fetchedAt: c.now()}
	c.mu.Unlock()
	return product, found, nil
}

type apiResponse struct {
	Status  int            `json:"status"`
	Product map[string]any `json:"product"`
}

func (c *Client) fetch(ctx context.Context, code string) (Product, bool, error) {
	url := fmt.Sprintf("%s/api/v0/product/%s.json", strings.TrimRight(c.cfg.BaseURL, "/"), code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Product{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "fridgetracker/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return Product{}, false, fmt.Errorf("product API request: %w", err)
	}
	defer resp.Body.Close()

	// Unknown products come back as 404 on some mirrors.
	if resp.StatusCode == http.StatusNotFound {
		return Product{Code: code}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Product{}, false, fmt.Errorf("product API returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Product{}, false, fmt.Errorf("decode product response: %w", err)
	}
	if apiResp.Status != 1 || apiResp.Product == nil {
		return Product{Code: code}, false, nil
	}

	p := Product{
		Code:  code,
		Name:  firstString(apiResp.Product, "product_name_"+c.cfg.Language, "product_name"),
		Brand: firstString(apiResp.Product, "brands"),
	}
	if p.Name == "" {
		p.Name = UnknownName
	}
	return p, true, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
