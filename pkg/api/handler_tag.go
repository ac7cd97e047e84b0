package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/tagmark/tagmark/pkg/pipeline"
)

// sseHeartbeatInterval paces keep-alive comments through quiet stretches of
// a run, so intermediaries don't time the connection out.
const sseHeartbeatInterval = 15 * time.Second

// tagPlaylistHandler handles POST /api/v1/playlists/tag.
//
// The response is a Server-Sent Events stream: one SSE event per run event,
// with the event name set to the run event type and the data to the event's
// JSON form. Validation and the playlist lookup happen before the stream
// starts, so those failures surface as plain HTTP errors; anything that goes
// wrong later arrives on the stream and the status stays 200.
func (s *Server) tagPlaylistHandler(c *gin.Context) {
	// 1. Bind HTTP request
	var req TagPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithBindingError(c, err)
		return
	}

	// 2. Validate and resolve the playlist before committing to a stream
	run, err := s.orchestrator.Prepare(c.Request.Context(), pipeline.TriggerAPI, req.toModel())
	if err != nil {
		abortWithError(c, err)
		return
	}

	// 3. Switch the response to SSE
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering
	c.Writer.WriteHeader(http.StatusOK)

	// Opening comment establishes the stream before the first event.
	_, _ = c.Writer.WriteString(":connected\n\n")
	c.Writer.Flush()

	// 4. Start the run under the request context: a client disconnect
	// cancels it at the next safe point between videos.
	s.orchestrator.Start(c.Request.Context(), run)

	s.streamRun(c, run)
}

// streamRun forwards run events to the client until the stream closes.
// The producer blocks on critical events when the buffer is full, so the
// channel must be drained to the end even after the client has gone away;
// a failed write stops the forwarding, never the draining.
func (s *Server) streamRun(c *gin.Context, run *pipeline.Run) {
	logger := slog.With("run_id", run.ID, "request_id", requestIDFrom(c))

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	clientGone := false
	for {
		select {
		case event, ok := <-run.Events():
			if !ok {
				return
			}
			if clientGone {
				continue
			}
			if err := sse.Encode(c.Writer, sse.Event{
				Event: string(event.Type),
				Data:  event,
			}); err != nil {
				logger.Debug("SSE write failed, draining remaining events", "error", err)
				clientGone = true
				continue
			}
			c.Writer.Flush()

		case <-heartbeat.C:
			if clientGone {
				continue
			}
			if _, err := c.Writer.WriteString(":heartbeat\n\n"); err != nil {
				clientGone = true
				continue
			}
			c.Writer.Flush()
		}
	}
}
