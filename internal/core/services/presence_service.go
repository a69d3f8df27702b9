package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	apperrors "camsignal/pkg/errors"
	"camsignal/pkg/validation"

	"go.uber.org/zap"
)

// PresenceCoordinator orchestrates join/leave side effects: it is the
// only writer of the room registry and camera directory, runs the
// ownership policy on every join, and fans out presence updates with
// per-recipient filtering.
type PresenceCoordinator struct {
	registry  ports.RoomRegistry
	directory ports.CameraDirectory
	notifier  ports.Notifier
	activity  ports.ActivityLog
	logger    *zap.SugaredLogger

	// mu serializes every compound read-then-write transition across
	// registry and directory. A global lock is sufficient at the
	// expected room counts.
	mu sync.Mutex

	// flushMu is acquired before mu is released, so queued snapshots
	// reach the sockets in the order their state transitions committed.
	// Lock order is always mu then flushMu.
	flushMu sync.Mutex
}

func NewPresenceCoordinator(
	registry ports.RoomRegistry,
	directory ports.CameraDirectory,
	notifier ports.Notifier,
	activity ports.ActivityLog,
	logger *zap.SugaredLogger,
) *PresenceCoordinator {
	return &PresenceCoordinator{
		registry:  registry,
		directory: directory,
		notifier:  notifier,
		activity:  activity,
		logger:    logger,
	}
}

// outbound is a queued notification; sends happen after the critical
// section so a slow socket never holds the presence lock.
type outbound struct {
	connID  domain.ConnectionID
	message any
}

// Join admits a connection into a room as camera or viewer. Rejections
// are atomic-or-nothing: no shared state changes and only the joiner
// hears about the failure.
func (p *PresenceCoordinator) Join(connID domain.ConnectionID, identity domain.Identity, req ports.JoinRequest) error {
	if !identity.Authenticated {
		return apperrors.NewAuthRequiredError("authentication required to join a room")
	}
	if err := validation.ValidateRoomID(string(req.RoomID)); err != nil {
		return apperrors.NewInvalidMessageError(err.Error())
	}

	switch req.Role {
	case domain.PeerRoleCamera:
		return p.joinAsCamera(connID, identity, req)
	case domain.PeerRoleViewer:
		return p.joinAsViewer(connID, identity, req)
	default:
		return apperrors.NewInvalidMessageError("role must be camera or viewer")
	}
}

func (p *PresenceCoordinator) joinAsCamera(connID domain.ConnectionID, identity domain.Identity, req ports.JoinRequest) error {
	name := strings.TrimSpace(req.CameraName)
	if err := validation.ValidateCameraName(name); err != nil {
		return apperrors.NewInvalidMessageError(err.Error())
	}
	if name == "" {
		name = "Camera " + string(req.RoomID)
	}
	deviceInfo := req.DeviceInfo
	if deviceInfo == "" {
		deviceInfo = "Unknown device"
	}

	p.mu.Lock()

	existing, _ := p.directory.Get(req.RoomID)
	if !CanOperateAsCamera(identity, existing) {
		p.mu.Unlock()
		p.logger.Warnw("camera takeover rejected",
			"room_id", req.RoomID,
			"user_id", identity.UserID,
			"owner_id", existing.OwnerUserID,
		)
		return apperrors.NewAccessDeniedError("room is owned by another user")
	}

	room := p.registry.JoinAsCamera(req.RoomID, connID)
	record := &domain.CameraRecord{
		RoomID:        req.RoomID,
		OwnerUserID:   identity.UserID,
		OwnerUsername: identity.Username,
		DisplayName:   name,
		DeviceInfo:    deviceInfo,
		ConnectedAt:   time.Now(),
		Status:        domain.CameraStatusActive,
		ConnectionID:  connID,
	}
	p.directory.Register(record)

	queue := p.cameraListUpdates()
	for _, viewerID := range room.ViewerIDs() {
		queue = append(queue, outbound{viewerID, map[string]interface{}{
			"type": "camera-available",
		}})
	}

	p.unlockAndFlush(queue)
	p.recordActivity(&domain.ActivityEntry{
		RoomID:     req.RoomID,
		CameraName: name,
		DeviceInfo: deviceInfo,
		UserID:     identity.UserID,
		Action:     domain.ActivityCameraConnected,
		IPAddress:  req.RemoteAddr,
	})

	p.logger.Infow("camera joined room",
		"room_id", req.RoomID,
		"camera_name", name,
		"user_id", identity.UserID,
	)
	return nil
}

func (p *PresenceCoordinator) joinAsViewer(connID domain.ConnectionID, identity domain.Identity, req ports.JoinRequest) error {
	p.mu.Lock()

	record, exists := p.directory.Get(req.RoomID)
	if !exists {
		p.mu.Unlock()
		return apperrors.NewNoSuchCameraError(string(req.RoomID))
	}
	if !CanViewCamera(identity, record) {
		p.mu.Unlock()
		p.logger.Warnw("viewer join denied",
			"room_id", req.RoomID,
			"user_id", identity.UserID,
		)
		return apperrors.NewAccessDeniedError("Access denied: you do not own this camera")
	}

	room, err := p.registry.JoinAsViewer(req.RoomID, connID)
	if err != nil {
		p.mu.Unlock()
		return apperrors.NewNoSuchCameraError(string(req.RoomID))
	}

	queue := []outbound{
		{connID, camerasUpdatedMessage(p.directory.ListVisibleTo(identity))},
	}
	if room.HasCamera() {
		queue = append(queue, outbound{connID, map[string]interface{}{
			"type": "camera-available",
		}})
	}

	p.unlockAndFlush(queue)
	p.recordActivity(&domain.ActivityEntry{
		RoomID:    req.RoomID,
		UserID:    identity.UserID,
		Action:    domain.ActivityViewerJoined,
		IPAddress: req.RemoteAddr,
	})

	p.logger.Infow("viewer joined room",
		"room_id", req.RoomID,
		"user_id", identity.UserID,
	)
	return nil
}

// Disconnect tears down a connection's room membership. Best-effort:
// the connection is already gone, so delivery failures are logged and
// swallowed, never retried.
func (p *PresenceCoordinator) Disconnect(connID domain.ConnectionID, identity domain.Identity, roomID domain.RoomID, role domain.PeerRole) {
	if roomID == "" {
		return
	}

	switch role {
	case domain.PeerRoleCamera:
		p.disconnectCamera(connID, identity, roomID)
	case domain.PeerRoleViewer:
		p.mu.Lock()
		p.registry.Leave(roomID, connID, false)
		p.mu.Unlock()

		p.recordActivity(&domain.ActivityEntry{
			RoomID: roomID,
			UserID: identity.UserID,
			Action: domain.ActivityViewerLeft,
		})
	}
}

func (p *PresenceCoordinator) disconnectCamera(connID domain.ConnectionID, identity domain.Identity, roomID domain.RoomID) {
	p.mu.Lock()

	var queue []outbound

	record, exists := p.directory.Get(roomID)
	// A replaced camera's late disconnect must not tear down the record
	// registered by its successor.
	owned := exists && record.ConnectionID == connID
	if owned {
		p.directory.Unregister(roomID)
	}

	if room, ok := p.registry.Get(roomID); ok && owned {
		for _, viewerID := range room.ViewerIDs() {
			queue = append(queue, outbound{viewerID, map[string]interface{}{
				"type": "camera-disconnected",
			}})
		}
	}
	p.registry.Leave(roomID, connID, true)

	if owned {
		queue = append(queue, p.cameraListUpdates()...)
	}

	p.unlockAndFlush(queue)
	if owned {
		p.recordActivity(&domain.ActivityEntry{
			RoomID:     roomID,
			CameraName: record.DisplayName,
			DeviceInfo: record.DeviceInfo,
			UserID:     identity.UserID,
			Action:     domain.ActivityCameraDisconnected,
		})
		p.logger.Infow("camera disconnected", "room_id", roomID, "user_id", identity.UserID)
	}
}

// VisibleCameras returns the identity-filtered directory snapshot. The
// REST listing and the broadcast path both go through this.
func (p *PresenceCoordinator) VisibleCameras(identity domain.Identity) []*domain.CameraRecord {
	return p.directory.ListVisibleTo(identity)
}

func (p *PresenceCoordinator) RoomCamera(roomID domain.RoomID) (domain.ConnectionID, bool) {
	room, ok := p.registry.Get(roomID)
	if !ok || !room.HasCamera() {
		return "", false
	}
	return room.Camera, true
}

func (p *PresenceCoordinator) CameraRecord(roomID domain.RoomID) (*domain.CameraRecord, bool) {
	return p.directory.Get(roomID)
}

func (p *PresenceCoordinator) RoomCount() int {
	return p.registry.Count()
}

func (p *PresenceCoordinator) RoomViewers(roomID domain.RoomID) []domain.ConnectionID {
	room, ok := p.registry.Get(roomID)
	if !ok {
		return nil
	}
	return room.ViewerIDs()
}

// cameraListUpdates builds a per-recipient filtered cameras-updated
// message for every live connection. Must be called under p.mu so the
// recipient snapshot and directory state are consistent.
func (p *PresenceCoordinator) cameraListUpdates() []outbound {
	var queue []outbound
	p.notifier.ForEachConnection(func(connID domain.ConnectionID, identity domain.Identity) {
		queue = append(queue, outbound{
			connID:  connID,
			message: camerasUpdatedMessage(p.directory.ListVisibleTo(identity)),
		})
	})
	return queue
}

// unlockAndFlush releases the state lock and delivers the queued
// notifications. An older snapshot can never overtake a newer one to
// the same recipient because flushMu is taken while mu is still held.
func (p *PresenceCoordinator) unlockAndFlush(queue []outbound) {
	p.flushMu.Lock()
	p.mu.Unlock()
	defer p.flushMu.Unlock()

	for _, out := range queue {
		if err := p.notifier.Send(out.connID, out.message); err != nil {
			p.logger.Debugw("presence notification dropped",
				"connection_id", out.connID,
				"error", err,
			)
		}
	}
}

// recordActivity writes an audit line off the signaling path. Failures
// are logged and never retried.
func (p *PresenceCoordinator) recordActivity(entry *domain.ActivityEntry) {
	if p.activity == nil {
		return
	}
	entry.Timestamp = time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.activity.RecordActivity(ctx, entry); err != nil {
			p.logger.Warnw("failed to record activity",
				"room_id", entry.RoomID,
				"action", entry.Action,
				"error", err,
			)
		}
	}()
}

func camerasUpdatedMessage(records []*domain.CameraRecord) map[string]interface{} {
	return map[string]interface{}{
		"type":    "cameras-updated",
		"cameras": records,
	}
}
