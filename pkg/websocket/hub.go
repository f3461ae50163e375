package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Sink receives telemetry frames pushed by connected devices.
type Sink interface {
	IngestTelemetry(deviceID string, report *TelemetryFrame)
}

type Hub struct {
	clients    map[*Client]bool
	devices    map[string]*Client
	register   chan *Client
	unregister chan *Client
	sink       Sink
	mutex      sync.RWMutex
}

type Message struct {
	Type      string                 `json:"type"`
	DeviceID  string                 `json:"device_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

type TelemetryFrame struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Accuracy   float64 `json:"accuracy,omitempty"`
	Battery    int     `json:"battery"`
	ReportedAt int64   `json:"reported_at,omitempty"`
}

func NewHub(sink Sink) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		devices:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sink:       sink,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// A reconnect replaces the previous connection for the device.
	if prev, exists := h.devices[client.DeviceID]; exists {
		delete(h.clients, prev)
		close(prev.send)
	}

	h.clients[client] = true
	h.devices[client.DeviceID] = client
	log.Printf("Device connected: %s", client.DeviceID)

	welcome := Message{
		Type:      "connected",
		DeviceID:  client.DeviceID,
		Timestamp: getCurrentTimestamp(),
	}
	h.sendToClient(client, welcome)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		if h.devices[client.DeviceID] == client {
			delete(h.devices, client.DeviceID)
		}
		close(client.send)
		log.Printf("Device disconnected: %s", client.DeviceID)
	}
}

func (h *Hub) sendToClient(client *Client, message Message) {
	data, _ := json.Marshal(message)
	select {
	case client.send <- data:
	default:
		close(client.send)
		delete(h.clients, client)
		if h.devices[client.DeviceID] == client {
			delete(h.devices, client.DeviceID)
		}
	}
}

func (h *Hub) sendToClientLocked(client *Client, message Message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.sendToClient(client, message)
}

// SendToDevice delivers a session state update to the device, if connected.
func (h *Hub) SendToDevice(deviceID string, messageType string, data map[string]interface{}) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, exists := h.devices[deviceID]
	if !exists {
		return
	}

	h.sendToClient(client, Message{
		Type:      messageType,
		DeviceID:  deviceID,
		Timestamp: getCurrentTimestamp(),
		Data:      data,
	})
}

func (h *Hub) ConnectedDevices() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.devices)
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
