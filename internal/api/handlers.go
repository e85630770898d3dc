package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/manpreetbhatti/sketchroom/internal/db"
	"github.com/manpreetbhatti/sketchroom/internal/presence"
	"github.com/manpreetbhatti/sketchroom/internal/ws"
)

// Directory lists rooms mirrored by every server sharing the presence store
type Directory interface {
	LiveRooms(ctx context.Context) ([]presence.Entry, error)
}

type API struct {
	hub       *ws.Hub
	database  *db.Database
	directory Directory
}

// database and directory may be nil when the ledger or presence is disabled
func New(hub *ws.Hub, database *db.Database, directory Directory) *API {
	return &API{
		hub:       hub,
		database:  database,
		directory: directory,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func pagination(r *http.Request, defaultLimit int) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err != nil {
			log.Printf("Failed to read ledger stats: %v", err)
		} else {
			for _, key := range []string{"total_sessions", "total_joins", "total_chat_messages", "total_strokes"} {
				stats[key] = dbStats[key]
			}
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Room handlers

func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rooms := a.hub.GetActiveRooms()
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"count": len(rooms),
	})
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Extract room ID from path: /api/rooms/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	roomID := strings.TrimSuffix(path, "/")

	if roomID == "" {
		errorResponse(w, http.StatusBadRequest, "Room ID is required")
		return
	}

	room, ok := a.hub.Store().Get(roomID)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	info := room.Info()
	if info.MemberCount == 0 {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	jsonResponse(w, http.StatusOK, info)
}

// RoomHistoryHandler lists a room's ledger sessions, newest first
func (a *API) RoomHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if a.database == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Activity ledger is disabled")
		return
	}

	// Extract room ID from path: /api/rooms/{id}/history
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	roomID := strings.TrimSuffix(strings.TrimSuffix(path, "/"), "/history")

	if roomID == "" {
		errorResponse(w, http.StatusBadRequest, "Room ID is required")
		return
	}

	limit, offset := pagination(r, 20)

	sessions, err := a.database.ListSessions(roomID, limit, offset)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	total, _ := a.database.CountSessions(roomID)

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"room_id":  roomID,
		"sessions": sessions,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// SessionHandler returns one ledger session: /api/sessions/{id}
func (a *API) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if a.database == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Activity ledger is disabled")
		return
	}

	idStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		errorResponse(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	session, err := a.database.GetSession(id)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	if session == nil {
		errorResponse(w, http.StatusNotFound, "Session not found")
		return
	}

	jsonResponse(w, http.StatusOK, session)
}

// ClusterRoomsHandler lists the rooms mirrored to the presence store
func (a *API) ClusterRoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if a.directory == nil {
		errorResponse(w, http.StatusServiceUnavailable, "Presence mirror is disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rooms, err := a.directory.LiveRooms(ctx)
	if err != nil {
		log.Printf("Failed to read presence directory: %v", err)
		errorResponse(w, http.StatusBadGateway, "Failed to read presence directory")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"count": len(rooms),
	})
}

func (a *API) RoomsRouter(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/rooms")

	// /api/rooms or /api/rooms/
	if path == "" || path == "/" {
		a.ListRoomsHandler(w, r)
		return
	}

	// /api/rooms/{id}/history
	if strings.HasSuffix(strings.TrimSuffix(path, "/"), "/history") {
		a.RoomHistoryHandler(w, r)
		return
	}

	// /api/rooms/{id}
	a.GetRoomHandler(w, r)
}
