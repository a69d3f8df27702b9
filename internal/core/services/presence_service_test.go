package services

import (
	"sync"
	"testing"
	"time"

	"camsignal/internal/core/domain"
	"camsignal/internal/core/ports"
	"camsignal/internal/infrastructure/repositories/memory"
	apperrors "camsignal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeNotifier records every outbound message per connection.
type fakeNotifier struct {
	mu    sync.Mutex
	conns map[domain.ConnectionID]domain.Identity
	sent  map[domain.ConnectionID][]map[string]interface{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		conns: make(map[domain.ConnectionID]domain.Identity),
		sent:  make(map[domain.ConnectionID][]map[string]interface{}),
	}
}

func (f *fakeNotifier) connect(connID domain.ConnectionID, identity domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[connID] = identity
}

func (f *fakeNotifier) Send(connID domain.ConnectionID, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conns[connID]; !ok {
		return domain.ErrNoSuchTarget
	}
	if m, ok := message.(map[string]interface{}); ok {
		f.sent[connID] = append(f.sent[connID], m)
	}
	return nil
}

func (f *fakeNotifier) ForEachConnection(fn func(connID domain.ConnectionID, identity domain.Identity)) {
	f.mu.Lock()
	snapshot := make(map[domain.ConnectionID]domain.Identity, len(f.conns))
	for id, identity := range f.conns {
		snapshot[id] = identity
	}
	f.mu.Unlock()

	for id, identity := range snapshot {
		fn(id, identity)
	}
}

func (f *fakeNotifier) messagesOfType(connID domain.ConnectionID, messageType string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []map[string]interface{}
	for _, m := range f.sent[connID] {
		if m["type"] == messageType {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeNotifier) lastCamerasUpdated(connID domain.ConnectionID) []*domain.CameraRecord {
	msgs := f.messagesOfType(connID, "cameras-updated")
	if len(msgs) == 0 {
		return nil
	}
	cameras, _ := msgs[len(msgs)-1]["cameras"].([]*domain.CameraRecord)
	return cameras
}

type presenceFixture struct {
	coordinator *PresenceCoordinator
	notifier    *fakeNotifier
	directory   ports.CameraDirectory
	registry    ports.RoomRegistry
}

func newPresenceFixture() *presenceFixture {
	notifier := newFakeNotifier()
	directory := memory.NewMemoryCameraDirectory()
	registry := memory.NewMemoryRoomRegistry()
	coordinator := NewPresenceCoordinator(registry, directory, notifier, nil, zap.NewNop().Sugar())
	return &presenceFixture{
		coordinator: coordinator,
		notifier:    notifier,
		directory:   directory,
		registry:    registry,
	}
}

var (
	alice = domain.Identity{UserID: 1, Username: "alice", Role: domain.RoleUser, Authenticated: true}
	bob   = domain.Identity{UserID: 2, Username: "bob", Role: domain.RoleUser, Authenticated: true}
	root  = domain.Identity{UserID: 3, Username: "root", Role: domain.RoleAdmin, Authenticated: true}
)

func cameraJoin(roomID domain.RoomID) ports.JoinRequest {
	return ports.JoinRequest{RoomID: roomID, Role: domain.PeerRoleCamera, CameraName: "Front door"}
}

func viewerJoin(roomID domain.RoomID) ports.JoinRequest {
	return ports.JoinRequest{RoomID: roomID, Role: domain.PeerRoleViewer}
}

func TestJoin_CameraRegistersAndNotifies(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("other-1", bob)
	f.notifier.connect("admin-1", root)

	err := f.coordinator.Join("cam-1", alice, cameraJoin("room-a"))
	require.NoError(t, err)

	record, exists := f.directory.Get("room-a")
	require.True(t, exists)
	assert.Equal(t, alice.UserID, record.OwnerUserID)
	assert.Equal(t, "Front door", record.DisplayName)
	assert.Equal(t, domain.ConnectionID("cam-1"), record.ConnectionID)

	// Each live connection gets a listing filtered for its own identity.
	assert.Len(t, f.notifier.lastCamerasUpdated("cam-1"), 1)
	assert.Len(t, f.notifier.lastCamerasUpdated("other-1"), 0)
	assert.Len(t, f.notifier.lastCamerasUpdated("admin-1"), 1)
}

func TestJoin_CameraDefaultsNameAndDevice(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)

	req := ports.JoinRequest{RoomID: "room-a", Role: domain.PeerRoleCamera}
	require.NoError(t, f.coordinator.Join("cam-1", alice, req))

	record, exists := f.directory.Get("room-a")
	require.True(t, exists)
	assert.Equal(t, "Camera room-a", record.DisplayName)
	assert.Equal(t, "Unknown device", record.DeviceInfo)
}

func TestJoin_RejectsUnauthenticated(t *testing.T) {
	f := newPresenceFixture()

	err := f.coordinator.Join("cam-1", domain.Identity{}, cameraJoin("room-a"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuthRequired, apperrors.GetAppError(err).Code)
}

func TestJoin_RejectsBadRoomID(t *testing.T) {
	f := newPresenceFixture()

	err := f.coordinator.Join("cam-1", alice, cameraJoin("no spaces allowed"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidMessage, apperrors.GetAppError(err).Code)
}

func TestJoin_TakeoverByStrangerRejected(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("cam-2", bob)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))

	err := f.coordinator.Join("cam-2", bob, cameraJoin("room-a"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAccessDenied, apperrors.GetAppError(err).Code)

	// Rejection must leave the original registration untouched.
	record, exists := f.directory.Get("room-a")
	require.True(t, exists)
	assert.Equal(t, alice.UserID, record.OwnerUserID)
	assert.Equal(t, domain.ConnectionID("cam-1"), record.ConnectionID)

	room, ok := f.registry.Get("room-a")
	require.True(t, ok)
	assert.Equal(t, domain.ConnectionID("cam-1"), room.Camera)
}

func TestJoin_OwnerRejoinReplacesRecord(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("cam-2", alice)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))
	require.NoError(t, f.coordinator.Join("cam-2", alice, cameraJoin("room-a")))

	record, exists := f.directory.Get("room-a")
	require.True(t, exists)
	assert.Equal(t, domain.ConnectionID("cam-2"), record.ConnectionID)
}

func TestJoin_ViewerUnknownRoomFailsClosed(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("view-1", alice)

	err := f.coordinator.Join("view-1", alice, viewerJoin("room-a"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNoSuchCamera, apperrors.GetAppError(err).Code)

	// The failed join must not create a room.
	_, ok := f.registry.Get("room-a")
	assert.False(t, ok)
}

func TestJoin_ViewerNotOwnerDenied(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("view-1", bob)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))

	err := f.coordinator.Join("view-1", bob, viewerJoin("room-a"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAccessDenied, apperrors.GetAppError(err).Code)

	room, ok := f.registry.Get("room-a")
	require.True(t, ok)
	assert.Empty(t, room.Viewers)
}

func TestJoin_OwnerViewerAdmitted(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("view-1", alice)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))
	require.NoError(t, f.coordinator.Join("view-1", alice, viewerJoin("room-a")))

	room, ok := f.registry.Get("room-a")
	require.True(t, ok)
	assert.Contains(t, room.Viewers, domain.ConnectionID("view-1"))

	assert.Len(t, f.notifier.lastCamerasUpdated("view-1"), 1)
	assert.Len(t, f.notifier.messagesOfType("view-1", "camera-available"), 1)
}

func TestJoin_AdminViewerAdmitted(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("view-1", root)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))
	require.NoError(t, f.coordinator.Join("view-1", root, viewerJoin("room-a")))

	room, ok := f.registry.Get("room-a")
	require.True(t, ok)
	assert.Contains(t, room.Viewers, domain.ConnectionID("view-1"))
}

func TestDisconnect_CameraNotifiesViewersAndUnregisters(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("view-1", alice)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))
	require.NoError(t, f.coordinator.Join("view-1", alice, viewerJoin("room-a")))

	f.coordinator.Disconnect("cam-1", alice, "room-a", domain.PeerRoleCamera)

	_, exists := f.directory.Get("room-a")
	assert.False(t, exists)
	assert.Len(t, f.notifier.messagesOfType("view-1", "camera-disconnected"), 1)
	assert.Len(t, f.notifier.lastCamerasUpdated("view-1"), 0)
}

// A replaced camera's late disconnect must not tear down its
// successor's registration.
func TestDisconnect_StaleCameraLeavesSuccessorIntact(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("cam-2", alice)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))
	require.NoError(t, f.coordinator.Join("cam-2", alice, cameraJoin("room-a")))

	f.coordinator.Disconnect("cam-1", alice, "room-a", domain.PeerRoleCamera)

	record, exists := f.directory.Get("room-a")
	require.True(t, exists)
	assert.Equal(t, domain.ConnectionID("cam-2"), record.ConnectionID)
}

func TestDisconnect_ViewerLeavesQuietly(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("view-1", alice)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))
	require.NoError(t, f.coordinator.Join("view-1", alice, viewerJoin("room-a")))

	before := len(f.notifier.messagesOfType("cam-1", "cameras-updated"))
	f.coordinator.Disconnect("view-1", alice, "room-a", domain.PeerRoleViewer)

	room, ok := f.registry.Get("room-a")
	require.True(t, ok)
	assert.Empty(t, room.Viewers)
	// Viewer departures are silent; no directory broadcast fires.
	assert.Len(t, f.notifier.messagesOfType("cam-1", "cameras-updated"), before)
}

func TestDisconnect_NoRoomIsNoOp(t *testing.T) {
	f := newPresenceFixture()
	f.coordinator.Disconnect("cam-1", alice, "", domain.PeerRoleCamera)
}

func TestRoomQueries(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("view-1", alice)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))
	require.NoError(t, f.coordinator.Join("view-1", alice, viewerJoin("room-a")))

	cameraID, ok := f.coordinator.RoomCamera("room-a")
	require.True(t, ok)
	assert.Equal(t, domain.ConnectionID("cam-1"), cameraID)

	viewers := f.coordinator.RoomViewers("room-a")
	assert.Equal(t, []domain.ConnectionID{"view-1"}, viewers)

	_, ok = f.coordinator.RoomCamera("room-b")
	assert.False(t, ok)
	assert.Nil(t, f.coordinator.RoomViewers("room-b"))
}

func TestVisibleCameras_FiltersByOwnership(t *testing.T) {
	f := newPresenceFixture()
	f.notifier.connect("cam-1", alice)
	f.notifier.connect("cam-2", bob)

	require.NoError(t, f.coordinator.Join("cam-1", alice, cameraJoin("room-a")))
	require.NoError(t, f.coordinator.Join("cam-2", bob, cameraJoin("room-b")))

	assert.Len(t, f.coordinator.VisibleCameras(alice), 1)
	assert.Len(t, f.coordinator.VisibleCameras(bob), 1)
	assert.Len(t, f.coordinator.VisibleCameras(root), 2)
	assert.Empty(t, f.coordinator.VisibleCameras(domain.Identity{}))
}

// stallingNotifier blocks its first Send until released so a competing
// flush is forced to queue behind it.
type stallingNotifier struct {
	*fakeNotifier
	release chan struct{}
	stalled chan struct{}
	once    sync.Once
}

func (s *stallingNotifier) Send(connID domain.ConnectionID, message any) error {
	s.once.Do(func() {
		close(s.stalled)
		<-s.release
	})
	return s.fakeNotifier.Send(connID, message)
}

func TestPresence_FlushesDeliverInCommitOrder(t *testing.T) {
	base := newFakeNotifier()
	notifier := &stallingNotifier{
		fakeNotifier: base,
		release:      make(chan struct{}),
		stalled:      make(chan struct{}),
	}
	coordinator := NewPresenceCoordinator(
		memory.NewMemoryRoomRegistry(),
		memory.NewMemoryCameraDirectory(),
		notifier,
		nil,
		zap.NewNop().Sugar(),
	)

	notifier.connect("watcher", alice)
	notifier.connect("cam-1", alice)
	notifier.connect("cam-2", alice)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, coordinator.Join("cam-1", alice, cameraJoin("room-a")))
	}()
	<-notifier.stalled

	go func() {
		defer wg.Done()
		assert.NoError(t, coordinator.Join("cam-2", alice, cameraJoin("room-b")))
	}()

	// The second join commits its state, but its snapshots must wait in
	// line behind the stalled flush of the first.
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, base.messagesOfType("watcher", "cameras-updated"))

	close(notifier.release)
	wg.Wait()

	// The newest snapshot arrives last, so the watcher's view settles
	// on both cameras.
	assert.Len(t, base.lastCamerasUpdated("watcher"), 2)
}
