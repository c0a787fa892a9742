// Package relay is the HTTP client for the room-relay's REST surface:
// registering the host's room so controllers can find it, and publishing
// final standings. Live traffic flows over the WebSocket in internal/intake.
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kartparty/racehost/pkg/core"
)

// Client handles communication with the room relay.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// RoomInfo is the relay's answer to a room registration.
type RoomInfo struct {
	RoomName string `json:"roomName"`
	JoinCode string `json:"joinCode"`
}

// New creates a new relay client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the relay is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// RegisterRoom claims a room name for this host and returns the join code
// controllers enter on their phones.
func (c *Client) RegisterRoom(roomName, hostName string) (RoomInfo, error) {
	body, err := json.Marshal(map[string]string{
		"secret":   c.apiKey,
		"roomName": roomName,
		"hostName": hostName,
	})
	if err != nil {
		return RoomInfo{}, fmt.Errorf("failed to encode registration: %w", err)
	}

	resp, err := c.httpClient.Post(
		c.baseURL+"/api/v1/rooms/register",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return RoomInfo{}, fmt.Errorf("room registration failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RoomInfo{}, fmt.Errorf("room registration returned status %d", resp.StatusCode)
	}

	var info RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return RoomInfo{}, fmt.Errorf("failed to decode room info: %w", err)
	}
	return info, nil
}

// PublishResults posts final standings so controllers that dropped their
// socket can still fetch the outcome.
func (c *Client) PublishResults(roomName string, result core.RaceResult) error {
	body, err := json.Marshal(map[string]any{
		"secret":   c.apiKey,
		"roomName": roomName,
		"result":   result,
	})
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	resp, err := c.httpClient.Post(
		c.baseURL+"/api/v1/rooms/results",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("results publish failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("results publish returned status %d", resp.StatusCode)
	}
	return nil
}
