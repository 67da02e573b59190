package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spellclash/relay/relay/service"
	"github.com/spellclash/relay/relay/state"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8765")

	require.NotNil(t, client)
	assert.Equal(t, "http://localhost:8765", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.mcpServer)
	assert.NotNil(t, client.GetMCPServer())
}

func TestApiCall(t *testing.T) {
	t.Run("DecodesResponse", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "healthy"})
		}))
		defer server.Close()

		client := NewClient(server.URL)

		var response map[string]interface{}
		require.NoError(t, client.apiCall("/healthz", &response))
		assert.Equal(t, "healthy", response["status"])
	})

	t.Run("UnreachableServer", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1")
		err := client.apiCall("/api/rooms", nil)
		assert.Error(t, err)
	})

	t.Run("ErrorBodyExtracted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "Room not found"})
		}))
		defer server.Close()

		client := NewClient(server.URL)
		err := client.apiCall("/api/rooms/NOPE", nil)
		require.Error(t, err)
		assert.Equal(t, "Room not found", err.Error())
	})

	t.Run("OpaqueHTTPError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		}))
		defer server.Close()

		client := NewClient(server.URL)
		err := client.apiCall("/api/rooms", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "API error")
	})
}

// fakeAPI serves the inspection endpoints from a fixed snapshot.
func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	gs := state.NewGameState(now.UnixMilli())
	gs.Merge(map[string]any{"playerHealth": 19}, now.UnixMilli())

	room := service.RoomInfo{
		Code:      "ABC123",
		Members:   []string{"c1", "c2"},
		Version:   1,
		CreatedAt: now,
		State:     gs,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/rooms/ABC123", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(room)
	})
	mux.HandleFunc("/api/rooms/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Room not found"})
	})
	mux.HandleFunc("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 1,
			"rooms": []service.RoomInfo{room},
		})
	})
	mux.HandleFunc("/api/clients", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 1,
			"clients": []service.ClientInfo{
				{ID: "c1", UserID: "alice", RoomCode: "ABC123", ConnectedAt: now, LastActivity: now},
			},
		})
	})
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(service.Stats{Connections: 4, LiveClients: 1, LiveRooms: 1})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func textResult(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content in result")
	return text.Text
}

func TestHandleListRooms(t *testing.T) {
	client := NewClient(fakeAPI(t).URL)

	result, err := client.handleListRooms(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: "list_rooms", Arguments: map[string]interface{}{}},
	})
	require.NoError(t, err)

	text := textResult(t, result)
	assert.Contains(t, text, "Live Rooms (1)")
	assert.Contains(t, text, "ABC123")
	assert.Contains(t, text, "members: 2")
}

func TestHandleGetRoom(t *testing.T) {
	client := NewClient(fakeAPI(t).URL)

	t.Run("Found", func(t *testing.T) {
		result, err := client.handleGetRoom(context.Background(), mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      "get_room",
				Arguments: map[string]interface{}{"room_code": "ABC123"},
			},
		})
		require.NoError(t, err)

		text := textResult(t, result)
		assert.Contains(t, text, "Room ABC123")
		assert.Contains(t, text, "version 1")
		assert.Contains(t, text, "playerHealth")
	})

	t.Run("NotFound", func(t *testing.T) {
		result, err := client.handleGetRoom(context.Background(), mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      "get_room",
				Arguments: map[string]interface{}{"room_code": "NOPE"},
			},
		})
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.True(t, result.IsError)
		assert.Contains(t, textResult(t, result), "Room not found")
	})
}

func TestHandleListClients(t *testing.T) {
	client := NewClient(fakeAPI(t).URL)

	result, err := client.handleListClients(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: "list_clients", Arguments: map[string]interface{}{}},
	})
	require.NoError(t, err)

	text := textResult(t, result)
	assert.Contains(t, text, "Live Clients (1)")
	assert.Contains(t, text, "user=alice")
	assert.Contains(t, text, "room=ABC123")
}

func TestHandleRelayStats(t *testing.T) {
	client := NewClient(fakeAPI(t).URL)

	result, err := client.handleRelayStats(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: "relay_stats", Arguments: map[string]interface{}{}},
	})
	require.NoError(t, err)

	text := textResult(t, result)
	assert.Contains(t, text, "connections total: 4")
	assert.Contains(t, text, "live rooms: 1")
}
