package testhelpers

import (
	"context"

	"gamechannels/domain/entities"
	"gamechannels/domain/events"

	"github.com/stretchr/testify/mock"
)

// MockGuildSettingsRepository is a mock implementation of GuildSettingsRepository
type MockGuildSettingsRepository struct {
	mock.Mock
}

func (m *MockGuildSettingsRepository) GetOrCreateGuildSettings(ctx context.Context, guildID int64) (*entities.GuildSettings, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GuildSettings), args.Error(1)
}

func (m *MockGuildSettingsRepository) UpdateGuildSettings(ctx context.Context, settings *entities.GuildSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

// MockPlatformGateway is a mock implementation of PlatformGateway
type MockPlatformGateway struct {
	mock.Mock
}

func (m *MockPlatformGateway) CreateRole(ctx context.Context, guildID int64, name string) (int64, error) {
	args := m.Called(ctx, guildID, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlatformGateway) DeleteRole(ctx context.Context, guildID, roleID int64) error {
	args := m.Called(ctx, guildID, roleID)
	return args.Error(0)
}

func (m *MockPlatformGateway) RoleExists(ctx context.Context, guildID, roleID int64) (bool, error) {
	args := m.Called(ctx, guildID, roleID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPlatformGateway) CreateCategory(ctx context.Context, guildID int64, name string) (int64, error) {
	args := m.Called(ctx, guildID, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlatformGateway) CreateChannel(ctx context.Context, guildID int64, name string, categoryID int64) (int64, error) {
	args := m.Called(ctx, guildID, name, categoryID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlatformGateway) DeleteChannel(ctx context.Context, guildID, channelID int64) error {
	args := m.Called(ctx, guildID, channelID)
	return args.Error(0)
}

func (m *MockPlatformGateway) ChannelName(ctx context.Context, guildID, channelID int64) (string, error) {
	args := m.Called(ctx, guildID, channelID)
	return args.String(0), args.Error(1)
}

func (m *MockPlatformGateway) RestrictChannel(ctx context.Context, guildID, channelID, roleID int64) error {
	args := m.Called(ctx, guildID, channelID, roleID)
	return args.Error(0)
}

func (m *MockPlatformGateway) GrantRole(ctx context.Context, guildID, userID, roleID int64) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

func (m *MockPlatformGateway) RevokeRole(ctx context.Context, guildID, userID, roleID int64) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

func (m *MockPlatformGateway) MemberHasRole(ctx context.Context, guildID, userID, roleID int64) (bool, error) {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPlatformGateway) CountRoleMembers(ctx context.Context, guildID, roleID int64) (int, error) {
	args := m.Called(ctx, guildID, roleID)
	return args.Int(0), args.Error(1)
}

func (m *MockPlatformGateway) SendMessage(ctx context.Context, channelID int64, content string) (int64, error) {
	args := m.Called(ctx, channelID, content)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlatformGateway) EditMessage(ctx context.Context, channelID, messageID int64, content string) error {
	args := m.Called(ctx, channelID, messageID, content)
	return args.Error(0)
}

func (m *MockPlatformGateway) SnapshotPresences(ctx context.Context, guildID int64) ([]entities.MemberPresence, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.MemberPresence), args.Error(1)
}

func (m *MockPlatformGateway) GuildRoles(ctx context.Context, guildID int64) ([]entities.RoleInfo, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.RoleInfo), args.Error(1)
}

func (m *MockPlatformGateway) GuildChannels(ctx context.Context, guildID int64) ([]entities.ChannelInfo, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.ChannelInfo), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
