package chathub_test

import (
	"time"

	"github.com/stretchr/testify/mock"

	"pairgogo/backend/internal/models"
)

// MockStorage is a testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) EnsureUser(userID, username string) error {
	args := m.Called(userID, username)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(userID string) (*models.User, error) {
	args := m.Called(userID)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) UpdateUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) GetProfile(userID string) (*models.Profile, error) {
	args := m.Called(userID)
	if p := args.Get(0); p != nil {
		return p.(*models.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) BlockUser(blockerID, blockedID string) error {
	args := m.Called(blockerID, blockedID)
	return args.Error(0)
}

func (m *MockStorage) UnblockUser(blockerID, blockedID string) error {
	args := m.Called(blockerID, blockedID)
	return args.Error(0)
}

func (m *MockStorage) SaveMessage(msg *models.ChatMessage) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) GetChatHistory(sessionID string) ([]models.ChatHistory, error) {
	args := m.Called(sessionID)
	if h := args.Get(0); h != nil {
		return h.([]models.ChatHistory), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) SaveSessionRecord(rec *models.SessionRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

func (m *MockStorage) CloseSessionRecord(sessionID string) error {
	args := m.Called(sessionID)
	return args.Error(0)
}

func (m *MockStorage) ActiveSessionRecords() ([]models.SessionRecord, error) {
	args := m.Called()
	if r := args.Get(0); r != nil {
		return r.([]models.SessionRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) SaveReport(report *models.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

func (m *MockStorage) ReportsSince(targetID string, since time.Time) ([]models.Report, error) {
	args := m.Called(targetID, since)
	if r := args.Get(0); r != nil {
		return r.([]models.Report), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStorage) IsUserBanned(userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) BanUser(userID string, d time.Duration) error {
	args := m.Called(userID, d)
	return args.Error(0)
}

func (m *MockStorage) PublishMessage(sessionID string, msg models.ChatMessage) error {
	args := m.Called(sessionID, msg)
	return args.Error(0)
}
