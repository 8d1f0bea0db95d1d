package model

// DeviceInfo describes one capture-capable audio endpoint. Render
// endpoints are valid sources too (captured via loopback) and carry
// Loopback=true.
type DeviceInfo struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	IsDefault bool   `json:"isDefault"`
	Loopback  bool   `json:"loopback"`
}
