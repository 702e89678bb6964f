// Package btcmap reads areas, events and elements from the BTC Map v2 API.
package btcmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"btcmap-bot/internal/config"
	"btcmap-bot/internal/model"
	"btcmap-bot/internal/util"
)

// DateLayout is the granularity of the events feed's updated_since parameter.
const DateLayout = "2006-01-02"

type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewClient(cfg config.APIConfig) *Client {
	to := cfg.Timeout
	if to == 0 {
		to = 15 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.btcmap.org"
	}
	return &Client{baseURL: base, userAgent: cfg.UserAgent, client: util.NewHTTPClient(to)}
}

type areaResp struct {
	ID   model.FlexibleID `json:"id"`
	Tags struct {
		Name    string          `json:"name"`
		GeoJSON json.RawMessage `json:"geo_json"`
	} `json:"tags"`
}

type eventResp struct {
	Type      string `json:"type"`
	ElementID string `json:"element_id"`
	CreatedAt string `json:"created_at"`
}

type elementResp struct {
	ID      model.FlexibleID `json:"id"`
	OsmJSON *struct {
		Lon  *float64 `json:"lon"`
		Lat  *float64 `json:"lat"`
		Tags struct {
			Name *string `json:"name"`
		} `json:"tags"`
	} `json:"osm_json"`
}

// Community fetches /v2/areas/{id}. Transport errors, bad statuses, malformed
// bodies and null bodies all map to ErrCommunityNotFound.
func (c *Client) Community(ctx context.Context, id string) (model.Community, error) {
	u := c.baseURL + "/v2/areas/" + url.PathEscape(id)
	var a *areaResp
	if err := util.GetJSON(ctx, c.client, u, c.userAgent, &a); err != nil {
		return model.Community{}, fmt.Errorf("%w: %w", ErrCommunityNotFound, err)
	}
	if a == nil {
		return model.Community{}, fmt.Errorf("%w: empty response for %q", ErrCommunityNotFound, id)
	}

	name := strings.TrimSpace(a.Tags.Name)
	if name == "" {
		name = id
	}
	com := model.Community{ID: id, Name: name}
	if len(a.Tags.GeoJSON) == 0 || string(a.Tags.GeoJSON) == "null" {
		return com, fmt.Errorf("%w: %q has no tags.geo_json", ErrNoBoundaryData, id)
	}
	com.GeoJSON = a.Tags.GeoJSON
	return com, nil
}

// EventsSince fetches /v2/events for the UTC calendar date of since. The feed
// only filters by date, so callers must re-check created_at against since.
func (c *Client) EventsSince(ctx context.Context, since time.Time) ([]model.ChangeEvent, error) {
	q := url.Values{}
	q.Set("updated_since", since.UTC().Format(DateLayout))
	u := c.baseURL + "/v2/events?" + q.Encode()

	var raw []eventResp
	if err := util.GetJSON(ctx, c.client, u, c.userAgent, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedFetch, err)
	}

	out := make([]model.ChangeEvent, 0, len(raw))
	for i, e := range raw {
		if e.ElementID == "" {
			return nil, fmt.Errorf("%w: event %d has no element_id", ErrFeedFetch, i)
		}
		ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(e.CreatedAt))
		if err != nil {
			return nil, fmt.Errorf("%w: event %d (%s) created_at: %w", ErrFeedFetch, i, e.ElementID, err)
		}
		out = append(out, model.ChangeEvent{
			Type:      e.Type,
			ElementID: e.ElementID,
			CreatedAt: ts.UTC(),
		})
	}
	return out, nil
}

// Element fetches /v2/elements/{id}.
func (c *Client) Element(ctx context.Context, elementID string) (model.Element, error) {
	u := c.baseURL + "/v2/elements/" + url.PathEscape(elementID)
	var e *elementResp
	if err := util.GetJSON(ctx, c.client, u, c.userAgent, &e); err != nil {
		return model.Element{}, fmt.Errorf("%w: %s: %w", ErrElementFetch, elementID, err)
	}
	if err := e.validate(); err != nil {
		return model.Element{}, fmt.Errorf("%w: %s: %w", ErrElementFetch, elementID, err)
	}
	return model.Element{
		ID:   string(e.ID),
		Lon:  *e.OsmJSON.Lon,
		Lat:  *e.OsmJSON.Lat,
		Name: e.OsmJSON.Tags.Name,
	}, nil
}

func (e *elementResp) validate() error {
	switch {
	case e == nil:
		return errors.New("empty response")
	case e.ID == "":
		return errors.New("missing id")
	case e.OsmJSON == nil:
		return errors.New("missing osm_json")
	case e.OsmJSON.Lon == nil || e.OsmJSON.Lat == nil:
		return errors.New("missing osm_json.lon/lat")
	}
	return nil
}
