package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func geoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query().Get("q")
		if strings.Contains(q, "nowhere") {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[
			{"lat":"18.52","lon":"73.85","display_name":"Pune, Maharashtra, India","type":"city"},
			{"lat":"18.53","lon":"73.86","display_name":"Pune Station, Pune, India","type":"station"}
		]`))
	}))
}

func TestGeocoderResolve(t *testing.T) {
	srv := geoServer(t)
	defer srv.Close()
	g := NewGeocoder(srv.URL)

	lat, lon, name, err := g.Resolve(context.Background(), "Pune")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if lat != "18.52" || lon != "73.85" || !strings.HasPrefix(name, "Pune") {
		t.Errorf("resolve = %q/%q/%q", lat, lon, name)
	}

	if _, _, _, err := g.Resolve(context.Background(), "nowhere"); err == nil {
		t.Error("expected error for no match")
	}
}

func TestFindPlaces(t *testing.T) {
	srv := geoServer(t)
	defer srv.Close()
	tool := NewFindPlaces(NewGeocoder(srv.URL))

	out, err := tool.Execute(context.Background(), map[string]interface{}{"query": "pharmacy Pune"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Pune, Maharashtra") || !strings.Contains(out, "Pune Station") {
		t.Errorf("out = %q", out)
	}

	out, err = tool.Execute(context.Background(), map[string]interface{}{"query": "nowhere"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "could not find") {
		t.Errorf("out = %q", out)
	}
}

func TestGetDirections(t *testing.T) {
	geo := geoServer(t)
	defer geo.Close()
	route := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/route/v1/driving/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":12400,"duration":1500}]}`))
	}))
	defer route.Close()

	tool := NewGetDirections(NewGeocoder(geo.URL), route.URL)
	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"origin": "Pune", "destination": "Pune Station",
	}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "12.4 km") || !strings.Contains(out, "25 minutes") {
		t.Errorf("out = %q", out)
	}
}

func TestGetWeather(t *testing.T) {
	geo := geoServer(t)
	defer geo.Close()
	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/forecast" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("latitude") != "18.52" {
			t.Errorf("latitude = %q", r.URL.Query().Get("latitude"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current":{"temperature_2m":31.4,"wind_speed_10m":9.2,"weather_code":2}}`))
	}))
	defer weather.Close()

	tool := NewGetWeather(NewGeocoder(geo.URL), weather.URL)
	out, err := tool.Execute(context.Background(), map[string]interface{}{"location": "Pune"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "partly cloudy") || !strings.Contains(out, "31 degrees") {
		t.Errorf("out = %q", out)
	}
}

func TestWebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/web/search" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("token = %q", r.Header.Get("X-Subscription-Token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[
			{"title":"Result One","url":"https://one.example","description":"first answer"},
			{"title":"Result Two","url":"https://two.example","description":"second answer"}
		]}}`))
	}))
	defer srv.Close()

	tool := NewWebSearch(srv.URL, "brave-key")
	out, err := tool.Execute(context.Background(), map[string]interface{}{"query": "go concurrency"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Result One: first answer") {
		t.Errorf("out = %q", out)
	}
}

func TestWebSearchBreakerOpensOnRepeatedFailures(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tool := NewWebSearch(srv.URL, "brave-key")
	args := map[string]interface{}{"query": "anything"}
	for i := 0; i < 5; i++ {
		if _, err := tool.Execute(context.Background(), args, nil); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	before := hits
	_, err := tool.Execute(context.Background(), args, nil)
	if err == nil || !strings.Contains(err.Error(), "temporarily unavailable") {
		t.Fatalf("expected breaker error, got %v", err)
	}
	if hits != before {
		t.Errorf("backend was called while breaker open")
	}
}
