package models

// StatsSnapshot is the monitoring view over connections and rooms,
// served by GET /ws/stats.
type StatsSnapshot struct {
	ActiveConnections int            `json:"active_connections"`
	ActiveRooms       int            `json:"active_rooms"`
	Rooms             map[string]int `json:"rooms"`
	ConnectionsByRole map[string]int `json:"connections_by_role"`
}
