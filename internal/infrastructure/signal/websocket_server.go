package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	"camsignal/internal/core/services"
	"camsignal/internal/infrastructure/monitoring"
	apperrors "camsignal/pkg/errors"
	"camsignal/pkg/tracing"
	"camsignal/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// connection is one live transport session. role and roomID are only
// touched by the connection's own reader goroutine; writeMu serializes
// socket writes so forwarded messages keep per-sender FIFO order.
type connection struct {
	id       domain.ConnectionID
	ws       *websocket.Conn
	identity domain.Identity

	role   domain.PeerRole
	roomID domain.RoomID

	writeMu sync.Mutex
	limiter *rate.Limiter
}

// WebSocketServer is the signaling transport: it authenticates the
// handshake, owns the live connection table, and relays typed envelopes
// between peers after re-checking room ownership per message.
type WebSocketServer struct {
	auth      services.AuthService
	presence  ports.PresenceService
	collector *monitoring.PrometheusCollector

	upgrader websocket.Upgrader

	conns map[domain.ConnectionID]*connection
	mu    sync.RWMutex

	pingInterval   time.Duration
	pongTimeout    time.Duration
	writeTimeout   time.Duration
	maxMessageSize int64
	messageRate    rate.Limit
	messageBurst   int

	logger *zap.SugaredLogger
}

type Options struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxMessageSize    int64
	MessagesPerSecond float64
	MessageBurst      int
	AllowedOrigins    []string
}

func NewWebSocketServer(
	auth services.AuthService,
	collector *monitoring.PrometheusCollector,
	opts Options,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 64 * 1024
	}

	s := &WebSocketServer{
		auth:           auth,
		collector:      collector,
		conns:          make(map[domain.ConnectionID]*connection),
		pingInterval:   opts.PingInterval,
		pongTimeout:    opts.PongTimeout,
		writeTimeout:   opts.WriteTimeout,
		maxMessageSize: opts.MaxMessageSize,
		messageRate:    rate.Inf,
		messageBurst:   1,
		logger:         logger,
	}
	if opts.MessagesPerSecond > 0 {
		s.messageRate = rate.Limit(opts.MessagesPerSecond)
		s.messageBurst = opts.MessageBurst
		if s.messageBurst <= 0 {
			s.messageBurst = 1
		}
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return s
}

// AttachPresence wires in the presence service after construction. The
// transport is the coordinator's Notifier, so one side binds late.
func (s *WebSocketServer) AttachPresence(presence ports.PresenceService) {
	s.presence = presence
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowedSet[origin]
		return ok
	}
}

// HandleWebSocket authenticates and upgrades a signaling connection.
// An invalid credential refuses the handshake outright with 401.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth.VerifyToken(handshakeToken(r))
	if err != nil {
		http.Error(w, `{"error":"AUTH_REQUIRED","message":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	conn := &connection{
		id:       domain.ConnectionID(utils.GenerateConnectionID()),
		ws:       ws,
		identity: identity,
		limiter:  rate.NewLimiter(s.messageRate, s.messageBurst),
	}

	s.mu.Lock()
	s.conns[conn.id] = conn
	s.mu.Unlock()
	openedAt := time.Now()
	if s.collector != nil {
		s.collector.RecordConnectionOpened()
	}

	s.logger.Infow("client connected",
		"connection_id", conn.id,
		"user_id", identity.UserID,
		"username", identity.Username,
	)

	// Tell the client its connection ID so peers can address it.
	_ = s.writeTo(conn, map[string]interface{}{
		"type":         "connected",
		"connectionId": conn.id,
	})

	s.readLoop(conn, r.RemoteAddr)

	// Remove from the connection table before presence cleanup so no
	// later message can be relayed to the dead connection.
	s.mu.Lock()
	delete(s.conns, conn.id)
	s.mu.Unlock()

	s.presence.Disconnect(conn.id, conn.identity, conn.roomID, conn.role)

	if s.collector != nil {
		s.collector.RecordConnectionClosed()
		s.collector.RecordSessionDuration(time.Since(openedAt))
		if conn.role == domain.PeerRoleCamera {
			s.collector.RecordCameraUnregistered()
		}
		s.collector.SetActiveRooms(s.presence.RoomCount())
	}
	s.logger.Infow("client disconnected", "connection_id", conn.id)
}

// handshakeToken pulls the credential from the query string or the
// Authorization header.
func handshakeToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func (s *WebSocketServer) readLoop(conn *connection, remoteAddr string) {
	conn.ws.SetReadLimit(s.maxMessageSize)
	conn.ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
		return nil
	})

	messageChan := make(chan []byte, 10)
	errorChan := make(chan error, 1)

	// done releases the reader goroutine when the loop exits through
	// the ping branch; it must not block on a full messageChan forever.
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			_, data, err := conn.ws.ReadMessage()
			if err != nil {
				select {
				case errorChan <- err:
				case <-done:
				}
				return
			}
			conn.ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
			select {
			case messageChan <- data:
			case <-done:
				return
			}
		}
	}()

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case data := <-messageChan:
			if !conn.limiter.Allow() {
				s.sendError(conn, apperrors.NewRateLimitError())
				continue
			}
			if err := s.handleMessage(conn, remoteAddr, data); err != nil {
				s.logger.Debugw("message rejected",
					"connection_id", conn.id,
					"error", err,
				)
				s.sendError(conn, err)
			}

		case <-pingTicker.C:
			conn.writeMu.Lock()
			conn.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := conn.ws.WriteMessage(websocket.PingMessage, nil)
			conn.writeMu.Unlock()
			if err != nil {
				s.logger.Debugw("ping failed", "connection_id", conn.id, "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debugw("read error", "connection_id", conn.id, "error", err)
			}
			return
		}
	}
}

func (s *WebSocketServer) handleMessage(conn *connection, remoteAddr string, data []byte) error {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return apperrors.NewInvalidMessageError("malformed message envelope")
	}
	if envelope.Type == "" {
		return apperrors.NewInvalidMessageError("message type is required")
	}

	if !conn.identity.Authenticated {
		return apperrors.NewAuthRequiredError("authentication required")
	}

	if s.collector != nil {
		s.collector.RecordMessage(envelope.Type)
		start := time.Now()
		defer func() {
			s.collector.RecordMessageHandling(time.Since(start))
		}()
	}

	ctx, span := tracing.TraceSignalMessage(context.Background(), envelope.Type, string(conn.id))
	defer span.End()

	if err := s.dispatch(conn, remoteAddr, envelope.Type, data); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (s *WebSocketServer) dispatch(conn *connection, remoteAddr, messageType string, data []byte) error {
	switch messageType {
	case "join-room":
		return s.handleJoinRoom(conn, remoteAddr, data)
	case "offer":
		return s.handleOffer(conn, data)
	case "answer":
		return s.handleAnswer(conn, data)
	case "ice-candidate":
		return s.handleICECandidate(conn, data)
	case "request-offer":
		return s.handleRequestOffer(conn)
	case "request-device-list":
		return s.handleRequestDeviceList(conn, data)
	case "device-list":
		return s.handleDeviceList(conn, data)
	case "switch-device-request":
		return s.handleSwitchDeviceRequest(conn, data)
	case "device-switched":
		return s.handleDeviceSwitched(conn, data)
	case "security-alert":
		return s.handleSecurityAlert(conn, data)
	case "security-alerts-status":
		return s.handleSecurityAlertsStatus(conn, data)
	case "update-alert-settings":
		return s.handleUpdateAlertSettings(conn, data)
	case "request-alert-settings":
		return s.handleRequestAlertSettings(conn, data)
	case "send-alert-settings-to-viewer":
		return s.handleSendAlertSettings(conn, data)
	default:
		return apperrors.NewInvalidMessageError(fmt.Sprintf("unknown message type: %s", messageType))
	}
}

func (s *WebSocketServer) handleJoinRoom(conn *connection, remoteAddr string, data []byte) error {
	var msg JoinRoomMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return apperrors.NewInvalidMessageError("invalid join-room message")
	}

	if msg.RoomID == "" && domain.PeerRole(msg.Role) == domain.PeerRoleCamera {
		msg.RoomID = utils.GenerateRoomID(msg.CameraName)
	}

	req := ports.JoinRequest{
		RoomID:     domain.RoomID(msg.RoomID),
		Role:       domain.PeerRole(msg.Role),
		CameraName: msg.CameraName,
		DeviceInfo: msg.DeviceInfo,
		RemoteAddr: remoteAddr,
	}

	// A second join from an already-joined connection is a room switch:
	// the old membership is torn down first so no registry entry or
	// CameraRecord outlives the connection's presence in that room.
	if conn.roomID != "" && (conn.roomID != req.RoomID || conn.role != req.Role) {
		s.leaveCurrentRoom(conn)
	}

	if err := s.presence.Join(conn.id, conn.identity, req); err != nil {
		if s.collector != nil {
			if appErr := apperrors.GetAppError(err); appErr != nil {
				s.collector.RecordJoinRejected(string(appErr.Code))
			}
		}
		return err
	}

	conn.role = req.Role
	conn.roomID = req.RoomID

	if s.collector != nil {
		if req.Role == domain.PeerRoleCamera {
			s.collector.RecordCameraRegistered()
		}
		s.collector.SetActiveRooms(s.presence.RoomCount())
	}
	return nil
}

// leaveCurrentRoom runs the full disconnect path for the connection's
// current room and clears its membership.
func (s *WebSocketServer) leaveCurrentRoom(conn *connection) {
	s.presence.Disconnect(conn.id, conn.identity, conn.roomID, conn.role)
	if s.collector != nil {
		if conn.role == domain.PeerRoleCamera {
			s.collector.RecordCameraUnregistered()
		}
		s.collector.SetActiveRooms(s.presence.RoomCount())
	}
	conn.role = ""
	conn.roomID = ""
}

// authorizeRoomScoped re-derives the sender's authorization from its
// cached identity and the room's current CameraRecord. Room ownership
// can change between messages, so this runs on every room-scoped relay.
func (s *WebSocketServer) authorizeRoomScoped(conn *connection, roomID domain.RoomID) error {
	record, exists := s.presence.CameraRecord(roomID)
	if !exists {
		return apperrors.NewNoSuchCameraError(string(roomID))
	}

	switch conn.role {
	case domain.PeerRoleCamera:
		if record.ConnectionID != conn.id || !services.CanOperateAsCamera(conn.identity, record) {
			return apperrors.NewAccessDeniedError("not the owner of this camera room")
		}
	case domain.PeerRoleViewer:
		if !services.CanViewCamera(conn.identity, record) {
			return apperrors.NewAccessDeniedError("access to this camera has been revoked")
		}
	default:
		return apperrors.NewAccessDeniedError("join a room before sending room-scoped messages")
	}
	return nil
}

func (s *WebSocketServer) handleOffer(conn *connection, data []byte) error {
	var msg OfferMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Target == "" {
		return apperrors.NewInvalidMessageError("offer requires a target")
	}
	if err := s.authorizeRoomScoped(conn, conn.roomID); err != nil {
		return err
	}
	return s.forward(msg.Target, map[string]interface{}{
		"type":   "offer",
		"offer":  msg.Offer,
		"sender": conn.id,
	})
}

func (s *WebSocketServer) handleAnswer(conn *connection, data []byte) error {
	var msg AnswerMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Target == "" {
		return apperrors.NewInvalidMessageError("answer requires a target")
	}
	if err := s.authorizeRoomScoped(conn, conn.roomID); err != nil {
		return err
	}
	return s.forward(msg.Target, map[string]interface{}{
		"type":   "answer",
		"answer": msg.Answer,
		"sender": conn.id,
	})
}

func (s *WebSocketServer) handleICECandidate(conn *connection, data []byte) error {
	var msg ICECandidateMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Target == "" {
		return apperrors.NewInvalidMessageError("ice-candidate requires a target")
	}
	if err := s.authorizeRoomScoped(conn, conn.roomID); err != nil {
		return err
	}
	return s.forward(msg.Target, map[string]interface{}{
		"type":      "ice-candidate",
		"candidate": msg.Candidate,
		"sender":    conn.id,
	})
}

// handleRequestOffer lets a viewer ask its room's camera for an offer.
func (s *WebSocketServer) handleRequestOffer(conn *connection) error {
	if conn.role != domain.PeerRoleViewer || conn.roomID == "" {
		return apperrors.NewInvalidMessageError("request-offer is only valid for a joined viewer")
	}
	if err := s.authorizeRoomScoped(conn, conn.roomID); err != nil {
		return err
	}
	cameraID, ok := s.presence.RoomCamera(conn.roomID)
	if !ok {
		return apperrors.NewNoSuchCameraError(string(conn.roomID))
	}
	return s.forward(string(cameraID), map[string]interface{}{
		"type":     "viewer-requesting-offer",
		"viewerId": conn.id,
	})
}

func (s *WebSocketServer) handleRequestDeviceList(conn *connection, data []byte) error {
	var msg RequestDeviceListMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return apperrors.NewInvalidMessageError("invalid request-device-list message")
	}
	return s.viewerToCamera(conn, domain.RoomID(msg.RoomID), map[string]interface{}{
		"type":     "request-device-list",
		"viewerId": conn.id,
	})
}

func (s *WebSocketServer) handleDeviceList(conn *connection, data []byte) error {
	var msg DeviceListMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Target == "" {
		return apperrors.NewInvalidMessageError("device-list requires a target")
	}
	if err := s.authorizeRoomScoped(conn, conn.roomID); err != nil {
		return err
	}
	return s.forward(msg.Target, map[string]interface{}{
		"type":    "device-list",
		"devices": msg.Devices,
		"sender":  conn.id,
	})
}

func (s *WebSocketServer) handleSwitchDeviceRequest(conn *connection, data []byte) error {
	var msg SwitchDeviceRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return apperrors.NewInvalidMessageError("invalid switch-device-request message")
	}
	if msg.DeviceType != "video" && msg.DeviceType != "audio" {
		return apperrors.NewInvalidMessageError("deviceType must be video or audio")
	}
	return s.viewerToCamera(conn, domain.RoomID(msg.RoomID), map[string]interface{}{
		"type":       "switch-device-request",
		"deviceType": msg.DeviceType,
		"deviceId":   msg.DeviceID,
		"viewerId":   conn.id,
	})
}

func (s *WebSocketServer) handleDeviceSwitched(conn *connection, data []byte) error {
	var msg DeviceSwitchedMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Target == "" {
		return apperrors.NewInvalidMessageError("device-switched requires a target")
	}
	if err := s.authorizeRoomScoped(conn, conn.roomID); err != nil {
		return err
	}
	return s.forward(msg.Target, map[string]interface{}{
		"type":       "device-switched",
		"deviceType": msg.DeviceType,
		"deviceId":   msg.DeviceID,
		"success":    msg.Success,
		"error":      msg.Error,
		"message":    msg.Message,
		"sender":     conn.id,
	})
}

// handleSecurityAlert fans a camera's alert out to every viewer in its
// room. The alert body is opaque to the server.
func (s *WebSocketServer) handleSecurityAlert(conn *connection, data []byte) error {
	var msg SecurityAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return apperrors.NewInvalidMessageError("invalid security-alert message")
	}
	return s.cameraToViewers(conn, map[string]interface{}{
		"type":   "security-alert-received",
		"alert":  msg.Alert,
		"roomId": conn.roomID,
	})
}

func (s *WebSocketServer) handleSecurityAlertsStatus(conn *connection, data []byte) error {
	var msg SecurityAlertsStatusMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return apperrors.NewInvalidMessageError("invalid security-alerts-status message")
	}
	return s.cameraToViewers(conn, map[string]interface{}{
		"type":   "security-alerts-status-update",
		"status": msg.Status,
		"roomId": conn.roomID,
	})
}

func (s *WebSocketServer) handleUpdateAlertSettings(conn *connection, data []byte) error {
	var msg UpdateAlertSettingsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return apperrors.NewInvalidMessageError("invalid update-alert-settings message")
	}
	return s.viewerToCamera(conn, domain.RoomID(msg.TargetRoomID), map[string]interface{}{
		"type":     "alert-settings-update",
		"settings": msg.Settings,
		"sender":   conn.id,
	})
}

func (s *WebSocketServer) handleRequestAlertSettings(conn *connection, data []byte) error {
	var msg RequestAlertSettingsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return apperrors.NewInvalidMessageError("invalid request-alert-settings message")
	}
	return s.viewerToCamera(conn, domain.RoomID(msg.RoomID), map[string]interface{}{
		"type":     "send-current-alert-settings",
		"viewerId": conn.id,
	})
}

func (s *WebSocketServer) handleSendAlertSettings(conn *connection, data []byte) error {
	var msg SendAlertSettingsMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Target == "" {
		return apperrors.NewInvalidMessageError("send-alert-settings-to-viewer requires a target")
	}
	if err := s.authorizeRoomScoped(conn, conn.roomID); err != nil {
		return err
	}
	return s.forward(msg.Target, map[string]interface{}{
		"type":     "current-alert-settings",
		"settings": msg.Settings,
		"sender":   conn.id,
	})
}

// viewerToCamera relays a viewer message to the camera of roomID after
// re-checking the viewer's access against the current CameraRecord.
func (s *WebSocketServer) viewerToCamera(conn *connection, roomID domain.RoomID, message map[string]interface{}) error {
	if roomID == "" {
		roomID = conn.roomID
	}
	if roomID == "" {
		return apperrors.NewInvalidMessageError("roomId is required")
	}

	record, exists := s.presence.CameraRecord(roomID)
	if !exists {
		return apperrors.NewNoSuchCameraError(string(roomID))
	}
	if !services.CanViewCamera(conn.identity, record) {
		return apperrors.NewAccessDeniedError("access to this camera has been revoked")
	}

	cameraID, ok := s.presence.RoomCamera(roomID)
	if !ok {
		return apperrors.NewNoSuchCameraError(string(roomID))
	}
	return s.forward(string(cameraID), message)
}

// cameraToViewers broadcasts a camera message to every viewer in the
// camera's own room.
func (s *WebSocketServer) cameraToViewers(conn *connection, message map[string]interface{}) error {
	if conn.role != domain.PeerRoleCamera || conn.roomID == "" {
		return apperrors.NewInvalidMessageError("only a joined camera can broadcast to its room")
	}
	if err := s.authorizeRoomScoped(conn, conn.roomID); err != nil {
		return err
	}

	for _, viewerID := range s.presence.RoomViewers(conn.roomID) {
		if err := s.Send(viewerID, message); err != nil {
			s.logger.Debugw("room broadcast dropped",
				"room_id", conn.roomID,
				"viewer_id", viewerID,
				"error", err,
			)
		}
	}
	return nil
}

// forward delivers a message to the named target connection.
func (s *WebSocketServer) forward(target string, message map[string]interface{}) error {
	if err := s.Send(domain.ConnectionID(target), message); err != nil {
		return apperrors.NewNoSuchTargetError(target)
	}
	return nil
}

// Send implements ports.Notifier.
func (s *WebSocketServer) Send(connID domain.ConnectionID, message any) error {
	s.mu.RLock()
	conn, exists := s.conns[connID]
	s.mu.RUnlock()

	if !exists {
		return domain.ErrNoSuchTarget
	}
	return s.writeTo(conn, message)
}

// ForEachConnection implements ports.Notifier.
func (s *WebSocketServer) ForEachConnection(fn func(connID domain.ConnectionID, identity domain.Identity)) {
	s.mu.RLock()
	snapshot := make([]*connection, 0, len(s.conns))
	for _, conn := range s.conns {
		snapshot = append(snapshot, conn)
	}
	s.mu.RUnlock()

	for _, conn := range snapshot {
		fn(conn.id, conn.identity)
	}
}

func (s *WebSocketServer) writeTo(conn *connection, message any) error {
	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()

	conn.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.ws.WriteJSON(message)
}

// sendError reports a failure to the offending sender only.
func (s *WebSocketServer) sendError(conn *connection, err error) {
	code := apperrors.ErrCodeInternal
	message := "internal error"
	if appErr := apperrors.GetAppError(err); appErr != nil {
		code = appErr.Code
		message = appErr.Message
	}
	_ = s.writeTo(conn, map[string]interface{}{
		"type":    "error",
		"code":    string(code),
		"message": message,
	})
}

// ConnectionCount reports the number of live connections.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
