package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"sousvide_simulator/internal/models"
	"sousvide_simulator/internal/protocol"
	"sousvide_simulator/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMsgSize      = 1 << 14 // 16 KB
	minBroadcastGap = 10 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnect authenticates the handshake, upgrades, and runs the session:
// one reader (this goroutine) and one writer goroutine per session.
func (h *Handler) wsConnect(c *gin.Context) {
	if h.services.Scenario.Offline() {
		c.String(http.StatusServiceUnavailable, "Device offline")
		return
	}

	token := c.Query("token")
	if token == "" {
		h.log.Infow("connection rejected: missing token")
		c.String(http.StatusUnauthorized, "Unauthorized: missing token")
		return
	}
	switch h.services.Tokens.Validate(token) {
	case service.TokenValid:
		// accepted
	case service.TokenExpired:
		h.log.Infow("connection rejected: expired token")
		c.String(http.StatusUnauthorized, "Unauthorized: token expired")
		return
	default:
		h.log.Infow("connection rejected: invalid token")
		c.String(http.StatusUnauthorized, "Unauthorized: invalid token")
		return
	}

	accessories := c.DefaultQuery("supportedAccessories", "APC")
	if !strings.Contains(accessories, "APC") {
		h.log.Infow("connection rejected: APC not in supportedAccessories")
		c.String(http.StatusBadRequest, "Bad Request: unsupported accessories")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}

	sess := newSession(conn)
	h.hub.register(sess)
	h.log.Infow("session connected", "sessions", h.hub.Count())

	go h.writeLoop(sess)

	// Initial snapshot goes out before anything else on this session.
	h.enqueueStateEvent(sess)

	h.readLoop(sess)

	h.hub.unregister(sess)
	sess.close(websocket.CloseNormalClosure, "session closed")
	h.log.Infow("session disconnected", "sessions", h.hub.Count())
}

// readLoop decodes and dispatches inbound commands until the connection
// drops. Command handling never holds the device mutex across network I/O:
// the mutation happens inside the service call, the writes happen in the
// writer goroutine.
func (h *Handler) readLoop(sess *wsSession) {
	conn := sess.conn
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleFrame(sess, raw)
	}
}

func (h *Handler) handleFrame(sess *wsSession, raw []byte) {
	ctx := context.Background()
	h.services.Messages.Record(ctx, models.DirectionInbound, raw)

	if delay := h.services.Scenario.CommandLatency(); delay > 0 {
		time.Sleep(delay)
	}
	if h.services.Scenario.ShouldFailCommand() {
		h.log.Infow("command dropped by intermittent failure injection")
		return
	}

	env, ferr := protocol.DecodeCommand(raw)
	if ferr != nil {
		h.sendResponse(sess, protocol.BuildErrorResponse(ferr.RequestID, ferr.Code, ferr.Message))
		return
	}

	resp, applied := h.dispatchCommand(env)
	h.sendResponse(sess, resp)

	// The ack is queued on this session before the broadcast, so the client
	// never sees a post-command snapshot ahead of the command result. A
	// rejected command changes nothing and broadcasts nothing.
	if applied {
		h.broadcastState()
	}
}

// dispatchCommand applies one decoded command to the device. The second
// return reports whether the device state changed.
func (h *Handler) dispatchCommand(env protocol.Envelope) (protocol.Envelope, bool) {
	switch env.Command {
	case protocol.CmdStart:
		var p protocol.StartPayload
		if ferr := protocol.DecodePayload(env.Payload, &p, "cookerId", "targetTemperature", "unit", "timer"); ferr != nil {
			return protocol.BuildErrorResponse(env.RequestID, ferr.Code, ferr.Message), false
		}
		return h.commandResult(env.RequestID, h.services.Device.Start(p.TargetTemperature, p.Unit, p.Timer))

	case protocol.CmdStop:
		var p protocol.StopPayload
		if ferr := protocol.DecodePayload(env.Payload, &p, "cookerId"); ferr != nil {
			return protocol.BuildErrorResponse(env.RequestID, ferr.Code, ferr.Message), false
		}
		return h.commandResult(env.RequestID, h.services.Device.Stop())

	case protocol.CmdSetTargetTemp:
		var p protocol.SetTargetTempPayload
		if ferr := protocol.DecodePayload(env.Payload, &p, "cookerId", "targetTemperature", "unit"); ferr != nil {
			return protocol.BuildErrorResponse(env.RequestID, ferr.Code, ferr.Message), false
		}
		return h.commandResult(env.RequestID, h.services.Device.SetTargetTemperature(p.TargetTemperature, p.Unit))

	case protocol.CmdSetTimer:
		var p protocol.SetTimerPayload
		if ferr := protocol.DecodePayload(env.Payload, &p, "cookerId", "timer"); ferr != nil {
			return protocol.BuildErrorResponse(env.RequestID, ferr.Code, ferr.Message), false
		}
		return h.commandResult(env.RequestID, h.services.Device.SetTimer(p.Timer))
	}

	return protocol.BuildErrorResponse(env.RequestID, protocol.CodeInvalidCommand,
		"Unknown command: "+env.Command), false
}

func (h *Handler) commandResult(requestID string, err error) (protocol.Envelope, bool) {
	if err == nil {
		return protocol.BuildSuccessResponse(requestID), true
	}
	var cmdErr *service.CommandError
	if errors.As(err, &cmdErr) {
		return protocol.BuildErrorResponse(requestID, cmdErr.Code, cmdErr.Message), false
	}
	return protocol.BuildErrorResponse(requestID, protocol.CodeInvalidPayload, err.Error()), false
}

// sendResponse encodes, records, and queues a response on one session.
func (h *Handler) sendResponse(sess *wsSession, env protocol.Envelope) {
	frame, err := protocol.Encode(env)
	if err != nil {
		h.log.Errorw("ws_encode_failed", "err", err)
		return
	}
	h.services.Messages.Record(context.Background(), models.DirectionOutbound, frame)
	sess.enqueue(frame)
}

// broadcastState pushes the current snapshot to every live session.
func (h *Handler) broadcastState() {
	snapshot := h.services.Device.Snapshot()
	frame, err := protocol.Encode(protocol.BuildStateEvent(snapshot))
	if err != nil {
		h.log.Errorw("ws_encode_failed", "err", err)
		return
	}
	h.services.Messages.Record(context.Background(), models.DirectionOutbound, frame)
	h.hub.Broadcast(frame)
}

func (h *Handler) enqueueStateEvent(sess *wsSession) {
	snapshot := h.services.Device.Snapshot()
	frame, err := protocol.Encode(protocol.BuildStateEvent(snapshot))
	if err != nil {
		h.log.Errorw("ws_encode_failed", "err", err)
		return
	}
	h.services.Messages.Record(context.Background(), models.DirectionOutbound, frame)
	sess.enqueue(frame)
}

// broadcastInterval is the per-session cadence: short while the cook is
// active, long while idle, divided by the time scale so accelerated tests
// also observe faster.
func (h *Handler) broadcastInterval() time.Duration {
	seconds := h.cfg.BroadcastIntervalIdle
	switch h.services.Device.Snapshot().State() {
	case models.StatePreheating, models.StateCooking:
		seconds = h.cfg.BroadcastIntervalCooking
	}
	scaled := time.Duration(seconds / h.services.Scenario.TimeScale() * float64(time.Second))
	if scaled < minBroadcastGap {
		scaled = minBroadcastGap
	}
	return scaled
}

// writeLoop is the single writer for one session: it drains the outbound
// queue, emits the periodic state events for this session, and keeps the
// connection alive with pings.
func (h *Handler) writeLoop(sess *wsSession) {
	conn := sess.conn
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	timer := time.NewTimer(h.broadcastInterval())
	defer timer.Stop()

	for {
		select {
		case <-sess.closed:
			return

		case frame := <-sess.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Infow("ws_write_failed", "err", err)
				sess.close(websocket.CloseAbnormalClosure, "write failed")
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws_ping_failed", "err", err)
				sess.close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}

		case <-timer.C:
			h.enqueueStateEvent(sess)
			timer.Reset(h.broadcastInterval())
		}
	}
}

// deviceHealth reports liveness of the protocol listener.
func (h *Handler) deviceHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "device-protocol",
		"sessions": h.hub.Count(),
	})
}
