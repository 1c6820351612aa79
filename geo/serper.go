package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yeremiapane/restaurant-dispatch/config"
)

// SerperClient resolves addresses through the serper.dev places search.
type SerperClient struct {
	apiKey  string
	baseURL string
	country string
	http    *http.Client
}

func NewSerperClient(cfg config.Geocoder) *SerperClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SerperClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		country: cfg.Country,
		http:    &http.Client{Timeout: timeout},
	}
}

type serperRequest struct {
	Query    string `json:"q"`
	Country  string `json:"gl"`
	Language string `json:"hl"`
}

type serperPlace struct {
	Title     string   `json:"title"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	GPS       *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"gps_coordinates"`
}

type serperResponse struct {
	Places []serperPlace `json:"places"`
}

func (s *SerperClient) Geocode(ctx context.Context, address string) (Point, error) {
	if s.apiKey == "" || s.baseURL == "" {
		return Point{}, ErrUnconfigured
	}

	body, err := json.Marshal(serperRequest{Query: address, Country: s.country, Language: s.country})
	if err != nil {
		return Point{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return Point{}, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("places api status %d", resp.StatusCode)
	}

	var out serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Point{}, fmt.Errorf("decode places response: %w", err)
	}

	for _, p := range out.Places {
		switch {
		case p.Latitude != nil && p.Longitude != nil:
			return Point{Lat: *p.Latitude, Lon: *p.Longitude}, nil
		case p.GPS != nil:
			return Point{Lat: p.GPS.Latitude, Lon: p.GPS.Longitude}, nil
		}
	}
	return Point{}, ErrNotFound
}
