package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/unklstewy/opensky-overlay/internal/auth"
	"github.com/unklstewy/opensky-overlay/internal/overlay"
	"github.com/unklstewy/opensky-overlay/pkg/opensky"
)

// Websocket message types
const (
	msgOverlay  = "overlay"
	msgReleased = "released"
	msgPong     = "pong"
	msgError    = "error"

	// client to server
	msgRelease = "release"
	msgPing    = "ping"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// wsMessage is the envelope for every websocket frame in both directions.
type wsMessage struct {
	Type      string            `json:"type"`
	Session   string            `json:"session,omitempty"`
	ICAO24    string            `json:"icao24,omitempty"`
	Overlay   *overlay.Snapshot `json:"overlay,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// overlaySession streams the overlay of one aircraft to one client.
//
// The pump goroutine owns the ticker and is the only writer to send besides
// the ticker's own goroutine, which is stopped before send is closed.
type overlaySession struct {
	id     string
	icao24 string
	conn   *websocket.Conn
	logger zerolog.Logger

	// canRelease is false for viewer tokens
	canRelease bool

	send    chan wsMessage
	updates chan *opensky.Track
	control chan wsMessage
}

// handleOverlayWebSocket upgrades the connection and streams the overlay of
// the aircraft in the path until the client disconnects or releases it.
func (s *Server) handleOverlayWebSocket(w http.ResponseWriter, r *http.Request) {
	icao24 := strings.ToLower(chi.URLParam(r, "icao24"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sess := &overlaySession{
		id:      uuid.New().String(),
		icao24:  icao24,
		conn:    conn,
		send:    make(chan wsMessage, sendBuffer),
		updates: make(chan *opensky.Track, 1),
		control: make(chan wsMessage, 4),

		canRelease: s.opts.Auth == nil,
	}
	if claims := claimsFrom(r.Context()); claims != nil {
		sess.canRelease = auth.CanSelect(claims.Role)
	}
	sess.logger = s.logger.With().Str("session", sess.id).Str("icao24", icao24).Logger()

	s.addSession(sess)
	defer s.removeSession(sess.id)
	sess.logger.Info().Msg("overlay session opened")

	unsubscribe := s.opts.Store.Subscribe(func(track *opensky.Track) {
		if track.ICAO24 != icao24 {
			return
		}
		// Keep only the newest pending update
		select {
		case sess.updates <- track:
		default:
			select {
			case <-sess.updates:
			default:
			}
			select {
			case sess.updates <- track:
			default:
			}
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.pump(ctx, sess)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		sess.writeLoop()
	}()

	released := sess.readLoop()

	if released {
		if s.opts.Selection.Release(icao24) {
			sess.logger.Info().Msg("aircraft released")
		}
		sess.control <- wsMessage{Type: msgReleased, ICAO24: icao24}
	}

	cancel()
	<-pumpDone
	<-writerDone
	sess.logger.Info().Msg("overlay session closed")
}

// pump drives the recency ticker and turns store updates into frames.
func (s *Server) pump(ctx context.Context, sess *overlaySession) {
	defer close(sess.send)

	var current *opensky.Track
	snapshot := func(seconds int64) wsMessage {
		snap := overlay.BuildSnapshot(current, seconds, s.opts.Location)
		return wsMessage{Type: msgOverlay, Session: sess.id, ICAO24: sess.icao24, Overlay: &snap}
	}

	// current is only replaced while the ticker goroutine is stopped
	ticker := overlay.NewTicker(overlay.TickerOptions{
		Interval: s.opts.TickInterval,
		Now:      s.now,
		OnTick: func(seconds int64) {
			sess.push(snapshot(seconds))
		},
	})
	defer ticker.Stop()

	observe := func(track *opensky.Track) {
		var sv *opensky.StateVector
		if track != nil {
			sv = track.StateVector
		}
		if track == current && sv != nil {
			return
		}
		ticker.Stop()
		current = track
		ticker.Observe(sv)
		sess.push(snapshot(ticker.Seconds()))
	}

	observe(s.opts.Store.Get(sess.icao24))

	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			// Drain control frames queued before the cancel
			for {
				select {
				case msg := <-sess.control:
					sess.push(msg)
				default:
					return
				}
			}
		case track := <-sess.updates:
			observe(track)
		case msg := <-sess.control:
			sess.push(msg)
		}
	}
}

// push queues a frame, dropping it when the client is not keeping up.
func (sess *overlaySession) push(msg wsMessage) {
	msg.Timestamp = time.Now().Unix()
	select {
	case sess.send <- msg:
	default:
		sess.logger.Warn().Str("type", msg.Type).Msg("send buffer full, dropping frame")
	}
}

// writeLoop is the only goroutine writing to the connection.
func (sess *overlaySession) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	failed := false
	for {
		select {
		case msg, ok := <-sess.send:
			if !ok {
				if !failed {
					sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
					sess.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				}
				return
			}
			if failed {
				continue
			}
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteJSON(msg); err != nil {
				sess.logger.Debug().Err(err).Msg("websocket write failed")
				failed = true
				// Unblock the read loop
				sess.conn.Close()
			}
		case <-ping.C:
			if failed {
				continue
			}
			sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				failed = true
				sess.conn.Close()
			}
		}
	}
}

// readLoop handles client frames until the connection ends. It reports
// whether the client asked to release the aircraft.
func (sess *overlaySession) readLoop() bool {
	sess.conn.SetReadLimit(64 * 1024)
	sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg wsMessage
		if err := sess.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.logger.Warn().Err(err).Msg("websocket closed unexpectedly")
			}
			return false
		}
		sess.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case msgRelease:
			if !sess.canRelease {
				sess.control <- wsMessage{Type: msgError, Error: auth.ErrUnauthorized.Error()}
				continue
			}
			return true
		case msgPing:
			sess.control <- wsMessage{Type: msgPong}
		default:
			sess.control <- wsMessage{Type: msgError, Error: "Unknown message type: " + msg.Type}
		}
	}
}
