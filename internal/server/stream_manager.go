package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// ActiveStream is an open websocket streaming test results.
type ActiveStream struct {
	conn   *websocket.Conn
	cancel context.CancelFunc // cancels the run in flight
	mu     sync.Mutex         // one writer at a time
}

// send writes v as one text frame.
func (as *ActiveStream) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.conn.WriteMessage(websocket.TextMessage, data)
}

// StreamManager tracks open streams so they can be closed on shutdown.
type StreamManager struct {
	mu      sync.RWMutex
	streams map[string]*ActiveStream
}

// NewStreamManager creates a new StreamManager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		streams: make(map[string]*ActiveStream),
	}
}

// Add registers a stream under id.
func (sm *StreamManager) Add(id string, conn *websocket.Conn, cancel context.CancelFunc) *ActiveStream {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	as := &ActiveStream{conn: conn, cancel: cancel}
	sm.streams[id] = as
	return as
}

// Get returns an open stream if it exists.
func (sm *StreamManager) Get(id string) (*ActiveStream, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	as, ok := sm.streams[id]
	return as, ok
}

// Len reports how many streams are open.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.streams)
}

// Remove forgets a stream and cancels its run.
func (sm *StreamManager) Remove(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if as, ok := sm.streams[id]; ok {
		if as.cancel != nil {
			as.cancel()
		}
		delete(sm.streams, id)
	}
}

// CloseAll cancels every run and closes every connection.
func (sm *StreamManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for id, as := range sm.streams {
		if as.cancel != nil {
			as.cancel()
		}
		if as.conn != nil {
			as.mu.Lock()
			as.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			as.mu.Unlock()
			as.conn.Close()
		}
		delete(sm.streams, id)
	}
}
