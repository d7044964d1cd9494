package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/r3labs/sse/v2"

	"github.com/LArkema/dctransistor-project/internal/poller"
)

// BoardStream is the SSE stream every cycle is published on.
const BoardStream = "board"

// Stream pushes each completed cycle to connected clients. It implements
// poller.Publisher.
type Stream struct {
	s *sse.Server
}

func NewStream() *Stream {
	s := sse.New()
	// No event log: a new client waits for the next cycle.
	s.AutoReplay = false
	s.CreateStream(BoardStream)
	return &Stream{s: s}
}

func (s *Stream) Publish(status poller.Status) {
	data, err := json.Marshal(status)
	if err != nil {
		log.Printf("Stream: marshal json: %v", err)
		return
	}
	s.s.TryPublish(BoardStream, &sse.Event{
		Event: []byte(BoardStream),
		Data:  data,
	})
}

// ServeHTTP subscribes the client to the board stream.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("stream") == "" {
		q := r.URL.Query()
		q.Set("stream", BoardStream)
		r = r.Clone(r.Context())
		r.URL.RawQuery = q.Encode()
	}
	s.s.ServeHTTP(w, r)
}

func (s *Stream) Close() {
	s.s.Close()
}
