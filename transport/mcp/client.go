package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/spellclash/relay/relay/service"
)

// Client is a thin MCP client that proxies to the relay's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates an MCP client targeting the REST API at baseURL.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Match Relay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Match Relay - MCP Interface

Read-only inspection of a running match relay. The relay fans typed messages
out between game clients sharing a room; it holds no game rules and no
persistent state.

AVAILABLE TOOLS:
- list_rooms: live rooms with member counts and state versions
- get_room: one room's members and authoritative game state
- list_clients: live connections with identity and last activity
- relay_stats: lifetime counters (connections, evictions, broadcasts)

All tools proxy the relay's REST API; none of them can change relay state.`),
	)

	c.registerTools()
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all live rooms with member counts and game state versions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get one room's members and authoritative game state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_code": map[string]interface{}{
					"type":        "string",
					"description": "Room code to look up",
				},
			},
			Required: []string{"room_code"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_clients",
		Description: "List all live client connections",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListClients)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "relay_stats",
		Description: "Get the relay's lifetime counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRelayStats)
}

// GetMCPServer returns the underlying MCP server for serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall performs a GET against the REST API and decodes the JSON response.
func (c *Client) apiCall(path string, result interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int                `json:"count"`
		Rooms []service.RoomInfo `json:"rooms"`
	}

	if err := c.apiCall("/api/rooms", &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Live Rooms (%d):\n\n", response.Count)
	for _, room := range response.Rooms {
		result += fmt.Sprintf("- %s (members: %d, version: %d, created: %s)\n",
			room.Code, len(room.Members), room.Version, room.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	roomCode, _ := args["room_code"].(string)

	var room service.RoomInfo
	if err := c.apiCall(fmt.Sprintf("/api/rooms/%s", roomCode), &room); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stateJSON, err := json.MarshalIndent(room.State, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Room %s\nCreated: %s\nMembers (%d): %v\n\nGame state (version %d):\n%s\n",
		room.Code, room.CreatedAt.Format(time.RFC3339), len(room.Members), room.Members,
		room.Version, stateJSON)

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListClients(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count   int                  `json:"count"`
		Clients []service.ClientInfo `json:"clients"`
	}

	if err := c.apiCall("/api/clients", &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Live Clients (%d):\n\n", response.Count)
	for _, client := range response.Clients {
		room := client.RoomCode
		if room == "" {
			room = "(no room)"
		}
		result += fmt.Sprintf("- %s user=%s room=%s last_activity=%s\n",
			client.ID, client.UserID, room, client.LastActivity.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleRelayStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats service.Stats
	if err := c.apiCall("/api/stats", &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf(`Relay Stats:
- live clients: %d
- live rooms: %d
- connections total: %d
- disconnections total: %d
- evictions total: %d
- frames routed: %d
- broadcasts: %d
- protocol errors: %d
`,
		stats.LiveClients, stats.LiveRooms, stats.Connections, stats.Disconnections,
		stats.Evictions, stats.FramesRouted, stats.Broadcasts, stats.ProtocolErrors)

	return mcp.NewToolResultText(result), nil
}
