package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gamechannels/domain/entities"
	"gamechannels/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestReconciler() (*ReconcilerService, *testhelpers.MockGuildSettingsRepository, *testhelpers.MockPlatformGateway, *testhelpers.MockEventPublisher) {
	mockRepo := new(testhelpers.MockGuildSettingsRepository)
	mockGateway := new(testhelpers.MockPlatformGateway)
	mockPublisher := new(testhelpers.MockEventPublisher)
	registry := NewRegistryService(mockRepo, mockGateway, mockPublisher)
	return NewReconcilerService(registry, mockRepo, mockGateway), mockRepo, mockGateway, mockPublisher
}

func TestReconcileGuild_DisabledGuildHasNoSideEffects(t *testing.T) {
	t.Parallel()

	reconciler, mockRepo, mockGateway, mockPublisher := newTestReconciler()
	settings := entities.NewGuildSettings(123) // Enabled defaults to false
	mockRepo.On("GetOrCreateGuildSettings", mock.Anything, int64(123)).Return(settings, nil)

	err := reconciler.ReconcileGuild(context.Background(), 123)

	require.NoError(t, err)
	mockGateway.AssertNotCalled(t, "SnapshotPresences", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "UpdateGuildSettings", mock.Anything, mock.Anything)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestReconcileGuild_CreatesAndEnrollsAtThreshold(t *testing.T) {
	t.Parallel()

	reconciler, mockRepo, mockGateway, mockPublisher := newTestReconciler()
	settings := initializedSettings(123)
	settings.Enabled = true
	settings.PlayerThreshold = 2
	mockRepo.On("GetOrCreateGuildSettings", mock.Anything, int64(123)).Return(settings, nil)

	mockGateway.On("SnapshotPresences", mock.Anything, int64(123)).Return([]entities.MemberPresence{
		{UserID: 1, Activity: "Factorio"},
		{UserID: 2, Activity: "Factorio"},
		{UserID: 3, Activity: "Solitaire"}, // below threshold, no record created
		{UserID: 4, Activity: "Factorio", Bot: true},
	}, nil)

	// The Factorio record does not exist yet; the fallback lookup resolves
	// channel names of existing records, of which there are none.
	mockGateway.On("CreateRole", mock.Anything, int64(123), "Plays: Factorio").Return(int64(100), nil)
	mockGateway.On("CreateChannel", mock.Anything, int64(123), "factorio", int64(50)).Return(int64(200), nil)
	mockGateway.On("RestrictChannel", mock.Anything, int64(123), int64(200), int64(100)).Return(nil)
	mockRepo.On("UpdateGuildSettings", mock.Anything, settings).Return(nil)
	mockGateway.On("SendMessage", mock.Anything, int64(200), mock.AnythingOfType("string")).Return(int64(300), nil)
	mockPublisher.On("Publish", mock.AnythingOfType("events.SubcommunityCreatedEvent")).Return(nil)

	// The freshly created record is eligible in the same pass
	mockGateway.On("GrantRole", mock.Anything, int64(123), int64(1), int64(100)).Return(nil)
	mockGateway.On("GrantRole", mock.Anything, int64(123), int64(2), int64(100)).Return(nil)
	mockPublisher.On("Publish", mock.AnythingOfType("events.MemberJoinedEvent")).Return(nil)

	err := reconciler.ReconcileGuild(context.Background(), 123)

	require.NoError(t, err)
	require.NotNil(t, settings.FindByKeyword("Factorio"))
	assert.Nil(t, settings.FindByKeyword("Solitaire"))
	mockGateway.AssertExpectations(t)
	mockGateway.AssertNotCalled(t, "GrantRole", mock.Anything, int64(123), int64(3), mock.Anything)
	mockGateway.AssertNotCalled(t, "GrantRole", mock.Anything, int64(123), int64(4), mock.Anything)
}

func TestReconcileGuild_SkipsExcludedAndExistingMembers(t *testing.T) {
	t.Parallel()

	reconciler, mockRepo, mockGateway, mockPublisher := newTestReconciler()
	settings := initializedSettings(123)
	settings.Enabled = true
	settings.PlayerThreshold = 2
	sc := &entities.Subcommunity{Name: "Factorio", RoleID: 100, ChannelID: 200, Aliases: []string{"Factorio"}}
	sc.AddExclusion(3)
	settings.Add(sc)
	mockRepo.On("GetOrCreateGuildSettings", mock.Anything, int64(123)).Return(settings, nil)

	mockGateway.On("SnapshotPresences", mock.Anything, int64(123)).Return([]entities.MemberPresence{
		{UserID: 1, Activity: "Factorio"},                          // eligible
		{UserID: 2, Activity: "Factorio", RoleIDs: []int64{100}},   // already holds the role
		{UserID: 3, Activity: "Factorio"},                          // explicitly left earlier
	}, nil)
	mockGateway.On("GrantRole", mock.Anything, int64(123), int64(1), int64(100)).Return(nil)
	mockPublisher.On("Publish", mock.AnythingOfType("events.MemberJoinedEvent")).Return(nil)

	err := reconciler.ReconcileGuild(context.Background(), 123)

	require.NoError(t, err)
	mockGateway.AssertExpectations(t)
	mockGateway.AssertNotCalled(t, "GrantRole", mock.Anything, int64(123), int64(2), mock.Anything)
	mockGateway.AssertNotCalled(t, "GrantRole", mock.Anything, int64(123), int64(3), mock.Anything)
	// Auto-join must never touch the exclusion list
	assert.True(t, sc.IsExcluded(3))
	mockRepo.AssertNotCalled(t, "UpdateGuildSettings", mock.Anything, mock.Anything)
}

func TestReconcileGuild_FailureIsolation(t *testing.T) {
	t.Parallel()

	reconciler, mockRepo, mockGateway, mockPublisher := newTestReconciler()
	settings := initializedSettings(123)
	settings.Enabled = true
	settings.PlayerThreshold = 1
	aoe := &entities.Subcommunity{Name: "Age of Empires", RoleID: 100, ChannelID: 200, Aliases: []string{"Age of Empires"}}
	factorio := &entities.Subcommunity{Name: "Factorio", RoleID: 101, ChannelID: 201, Aliases: []string{"Factorio"}}
	settings.Add(aoe)
	settings.Add(factorio)
	mockRepo.On("GetOrCreateGuildSettings", mock.Anything, int64(123)).Return(settings, nil)

	mockGateway.On("SnapshotPresences", mock.Anything, int64(123)).Return([]entities.MemberPresence{
		{UserID: 1, Activity: "Age of Empires"},
		{UserID: 2, Activity: "Factorio"},
	}, nil)

	// One grant fails; the pass continues with the next activity
	mockGateway.On("GrantRole", mock.Anything, int64(123), int64(1), int64(100)).
		Return(&PlatformError{Op: "grant_role", Err: assert.AnError})
	mockGateway.On("GrantRole", mock.Anything, int64(123), int64(2), int64(101)).Return(nil)
	mockPublisher.On("Publish", mock.AnythingOfType("events.MemberJoinedEvent")).Return(nil)

	err := reconciler.ReconcileGuild(context.Background(), 123)

	require.NoError(t, err)
	mockGateway.AssertCalled(t, "GrantRole", mock.Anything, int64(123), int64(2), int64(101))
}

func TestReconcileGuild_SnapshotFailure(t *testing.T) {
	t.Parallel()

	reconciler, mockRepo, mockGateway, _ := newTestReconciler()
	settings := entities.NewGuildSettings(123)
	settings.Enabled = true
	mockRepo.On("GetOrCreateGuildSettings", mock.Anything, int64(123)).Return(settings, nil)
	mockGateway.On("SnapshotPresences", mock.Anything, int64(123)).
		Return(nil, &PlatformError{Op: "snapshot_presences", Err: assert.AnError})

	err := reconciler.ReconcileGuild(context.Background(), 123)

	assert.Error(t, err)
}

// A reconciliation pass and an explicit removal racing on the same guild
// must not interleave: once the pass holds the guild's lock, the removal
// waits for it, so no membership grant can land after the record's role has
// been deleted.
func TestReconcileGuild_SerializesWithExplicitRemove(t *testing.T) {
	t.Parallel()

	mockRepo := new(testhelpers.MockGuildSettingsRepository)
	mockGateway := new(testhelpers.MockPlatformGateway)
	mockPublisher := new(testhelpers.MockEventPublisher)
	registry := NewRegistryService(mockRepo, mockGateway, mockPublisher)
	reconciler := NewReconcilerService(registry, mockRepo, mockGateway)

	settings := initializedSettings(123)
	settings.Enabled = true
	settings.PlayerThreshold = 2
	settings.Add(&entities.Subcommunity{Name: "Chess", RoleID: 500, ChannelID: 600, Aliases: []string{"Chess"}})

	var mu sync.Mutex
	var order []string
	record := func(event string) {
		mu.Lock()
		order = append(order, event)
		mu.Unlock()
	}

	// The removal is launched only once the pass is inside the lock; the
	// sleep widens the window in which a broken lock would let the role
	// deletion land between the grants.
	passInside := make(chan struct{})
	var once sync.Once
	mockRepo.On("GetOrCreateGuildSettings", mock.Anything, int64(123)).Return(settings, nil)
	mockGateway.On("SnapshotPresences", mock.Anything, int64(123)).
		Run(func(mock.Arguments) {
			once.Do(func() { close(passInside) })
			time.Sleep(50 * time.Millisecond)
		}).
		Return([]entities.MemberPresence{
			{UserID: 1, Activity: "Chess"},
			{UserID: 2, Activity: "Chess"},
		}, nil)
	mockGateway.On("GrantRole", mock.Anything, int64(123), int64(1), int64(500)).
		Run(func(mock.Arguments) { record("grant") }).Return(nil)
	mockGateway.On("GrantRole", mock.Anything, int64(123), int64(2), int64(500)).
		Run(func(mock.Arguments) { record("grant") }).Return(nil)
	mockPublisher.On("Publish", mock.AnythingOfType("events.MemberJoinedEvent")).Return(nil)

	mockGateway.On("RoleExists", mock.Anything, int64(123), int64(500)).Return(true, nil)
	mockGateway.On("ChannelName", mock.Anything, int64(123), int64(600)).Return("chess", nil)
	mockGateway.On("DeleteRole", mock.Anything, int64(123), int64(500)).
		Run(func(mock.Arguments) { record("delete-role") }).Return(nil)
	mockGateway.On("DeleteChannel", mock.Anything, int64(123), int64(600)).Return(nil)
	mockRepo.On("UpdateGuildSettings", mock.Anything, settings).Return(nil)
	mockPublisher.On("Publish", mock.AnythingOfType("events.SubcommunityRemovedEvent")).Return(nil)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- reconciler.ReconcileGuild(context.Background(), 123)
	}()
	go func() {
		defer wg.Done()
		<-passInside
		errs <- registry.Remove(context.Background(), 123, "Chess", 0)
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	deleteIdx := -1
	grants := 0
	for i, event := range order {
		if event == "delete-role" {
			deleteIdx = i
		}
	}
	require.NotEqual(t, -1, deleteIdx, "removal never deleted the role")
	for i, event := range order {
		if event == "grant" {
			grants++
			assert.Less(t, i, deleteIdx, "a grant landed after the role was deleted")
		}
	}
	assert.Equal(t, 2, grants)
	assert.Nil(t, settings.FindByKeyword("Chess"))
}

// An in-flight pass on one guild must not block explicit commands on another.
func TestReconcileGuild_DifferentGuildsProceedInParallel(t *testing.T) {
	t.Parallel()

	mockRepo := new(testhelpers.MockGuildSettingsRepository)
	mockGateway := new(testhelpers.MockPlatformGateway)
	mockPublisher := new(testhelpers.MockEventPublisher)
	registry := NewRegistryService(mockRepo, mockGateway, mockPublisher)
	reconciler := NewReconcilerService(registry, mockRepo, mockGateway)

	settingsOne := entities.NewGuildSettings(1)
	settingsOne.Enabled = true
	settingsTwo := initializedSettings(2)
	settingsTwo.Add(&entities.Subcommunity{Name: "Chess", RoleID: 500, ChannelID: 600, Aliases: []string{"Chess"}})

	// Guild 1's pass parks inside the lock until released
	passInside := make(chan struct{})
	release := make(chan struct{})
	mockRepo.On("GetOrCreateGuildSettings", mock.Anything, int64(1)).Return(settingsOne, nil)
	mockGateway.On("SnapshotPresences", mock.Anything, int64(1)).
		Run(func(mock.Arguments) {
			close(passInside)
			<-release
		}).
		Return([]entities.MemberPresence{}, nil)

	mockRepo.On("GetOrCreateGuildSettings", mock.Anything, int64(2)).Return(settingsTwo, nil)
	mockGateway.On("RoleExists", mock.Anything, int64(2), int64(500)).Return(true, nil)
	mockGateway.On("ChannelName", mock.Anything, int64(2), int64(600)).Return("chess", nil)
	mockGateway.On("DeleteRole", mock.Anything, int64(2), int64(500)).Return(nil)
	mockGateway.On("DeleteChannel", mock.Anything, int64(2), int64(600)).Return(nil)
	mockRepo.On("UpdateGuildSettings", mock.Anything, settingsTwo).Return(nil)
	mockPublisher.On("Publish", mock.AnythingOfType("events.SubcommunityRemovedEvent")).Return(nil)

	passDone := make(chan error, 1)
	go func() {
		passDone <- reconciler.ReconcileGuild(context.Background(), 1)
	}()
	select {
	case <-passInside:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for guild 1's pass to start")
	}

	removeDone := make(chan error, 1)
	go func() {
		removeDone <- registry.Remove(context.Background(), 2, "Chess", 0)
	}()
	select {
	case err := <-removeDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("removal on guild 2 blocked behind guild 1's pass")
	}

	close(release)
	select {
	case err := <-passDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("guild 1's pass never finished")
	}
}
