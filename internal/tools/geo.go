package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// Geocoder resolves free-form place names through Nominatim. Shared by
// the weather, places and directions tools.
type Geocoder struct {
	client *resty.Client
}

func NewGeocoder(baseURL string) *Geocoder {
	return &Geocoder{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(8 * time.Second).
			SetHeader("User-Agent", "voice-gateway/1.0"),
	}
}

func (g *Geocoder) lookup(ctx context.Context, query string, limit int) ([]nominatimPlace, error) {
	var places []nominatimPlace
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("format", "json").
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&places).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("geocode %q: status %d", query, resp.StatusCode())
	}
	return places, nil
}

// Resolve returns the best-match coordinates for a place name.
func (g *Geocoder) Resolve(ctx context.Context, query string) (lat, lon, name string, err error) {
	places, err := g.lookup(ctx, query, 1)
	if err != nil {
		return "", "", "", err
	}
	if len(places) == 0 {
		return "", "", "", fmt.Errorf("no match for %q", query)
	}
	return places[0].Lat, places[0].Lon, places[0].DisplayName, nil
}

// FindPlaces looks up points of interest near a location.
type FindPlaces struct {
	geocoder *Geocoder
}

func NewFindPlaces(geocoder *Geocoder) *FindPlaces {
	return &FindPlaces{geocoder: geocoder}
}

func (t *FindPlaces) Name() string { return "find_places" }

func (t *FindPlaces) Definition() map[string]interface{} {
	return funcDef("find_places",
		"Find businesses or points of interest, e.g. 'pharmacy near Koregaon Park Pune'.",
		map[string]interface{}{
			"query": strProp("What to look for, including the area."),
		},
		"query")
}

func (t *FindPlaces) Execute(ctx context.Context, args map[string]interface{}, _ *Context) (string, error) {
	query := argString(args, "query")
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	places, err := t.geocoder.lookup(ctx, query, 3)
	if err != nil {
		return "", err
	}
	if len(places) == 0 {
		return "I could not find any matching places.", nil
	}

	var b strings.Builder
	for _, p := range places {
		fmt.Fprintf(&b, "%s\n", p.DisplayName)
	}
	return strings.TrimSpace(b.String()), nil
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// GetDirections estimates a driving route between two places.
type GetDirections struct {
	geocoder *Geocoder
	client   *resty.Client
}

func NewGetDirections(geocoder *Geocoder, routeBaseURL string) *GetDirections {
	return &GetDirections{
		geocoder: geocoder,
		client:   resty.New().SetBaseURL(routeBaseURL).SetTimeout(8 * time.Second),
	}
}

func (t *GetDirections) Name() string { return "get_directions" }

func (t *GetDirections) Definition() map[string]interface{} {
	return funcDef("get_directions",
		"Get driving distance and travel time between two places.",
		map[string]interface{}{
			"origin":      strProp("Starting place name."),
			"destination": strProp("Destination place name."),
		},
		"origin", "destination")
}

func (t *GetDirections) Execute(ctx context.Context, args map[string]interface{}, _ *Context) (string, error) {
	origin := argString(args, "origin")
	destination := argString(args, "destination")
	if origin == "" || destination == "" {
		return "", fmt.Errorf("origin and destination are required")
	}

	oLat, oLon, oName, err := t.geocoder.Resolve(ctx, origin)
	if err != nil {
		return "", err
	}
	dLat, dLon, dName, err := t.geocoder.Resolve(ctx, destination)
	if err != nil {
		return "", err
	}

	var body osrmResponse
	path := fmt.Sprintf("/route/v1/driving/%s,%s;%s,%s", oLon, oLat, dLon, dLat)
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParam("overview", "false").
		SetResult(&body).
		Get(path)
	if err != nil {
		return "", fmt.Errorf("route request: %w", err)
	}
	if resp.IsError() || body.Code != "Ok" || len(body.Routes) == 0 {
		return "", fmt.Errorf("no route from %q to %q", origin, destination)
	}

	r := body.Routes[0]
	return fmt.Sprintf("From %s to %s: about %.1f km, roughly %d minutes by car.",
		shortName(oName), shortName(dName), r.Distance/1000, int(r.Duration/60)), nil
}

func shortName(displayName string) string {
	if i := strings.Index(displayName, ","); i > 0 {
		return displayName[:i]
	}
	return displayName
}
