package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/trip-share/internal/models"
)

// ErrNoResults is returned when the search matches nothing; callers surface
// it to the user rather than retrying.
var ErrNoResults = fmt.Errorf("places: no results")

// Client resolves free-text queries against a Nominatim-compatible search
// endpoint. Results are limited to the single best match.
type Client struct {
	Endpoint  string // e.g. https://nominatim.openstreetmap.org
	UserAgent string // required by the Nominatim usage policy
	HTTP      *http.Client
}

func NewClient(endpoint, userAgent string) *Client {
	return &Client{Endpoint: endpoint, UserAgent: userAgent, HTTP: &http.Client{Timeout: 5 * time.Second}}
}

// Geocode returns the best match for a free-text address or place name.
func (c *Client) Geocode(ctx context.Context, query string) (models.Place, error) {
	return c.search(ctx, query)
}

// Nearby returns the closest match for a category biased to the given
// position, e.g. Nearby(ctx, "gas station", pos).
func (c *Client) Nearby(ctx context.Context, category string, pos models.Position) (models.Place, error) {
	q := fmt.Sprintf("%s near %.5f,%.5f", category, pos.Lat, pos.Lng)
	return c.search(ctx, q)
}

func (c *Client) search(ctx context.Context, query string) (models.Place, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", c.Endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Place{}, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Language", "en")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return models.Place{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Place{}, fmt.Errorf("places: status %d", resp.StatusCode)
	}

	// Nominatim serializes coordinates as strings.
	var out []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Place{}, err
	}
	if len(out) == 0 {
		return models.Place{}, ErrNoResults
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return models.Place{}, fmt.Errorf("places: bad latitude %q", out[0].Lat)
	}
	lng, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return models.Place{}, fmt.Errorf("places: bad longitude %q", out[0].Lon)
	}
	return models.Place{Lat: lat, Lng: lng, Name: out[0].DisplayName}, nil
}
