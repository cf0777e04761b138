package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pairgogo/backend/internal/models"
)

// Storage is the durable-record surface the rest of the backend depends on:
// the user directory (profiles and block lists), the chat history archive,
// session archive rows, and reports. Redis handles the fast paths: ban
// flags and room message fan-out.
type Storage interface {
	EnsureUser(userID, username string) error
	GetUserByID(userID string) (*models.User, error)
	UpdateUser(user *models.User) error
	GetProfile(userID string) (*models.Profile, error)
	BlockUser(blockerID, blockedID string) error
	UnblockUser(blockerID, blockedID string) error

	SaveMessage(msg *models.ChatMessage) error
	GetChatHistory(sessionID string) ([]models.ChatHistory, error)

	SaveSessionRecord(rec *models.SessionRecord) error
	CloseSessionRecord(sessionID string) error
	ActiveSessionRecords() ([]models.SessionRecord, error)

	SaveReport(report *models.Report) error
	ReportsSince(targetID string, since time.Time) ([]models.Report, error)

	IsUserBanned(userID string) (bool, error)
	BanUser(userID string, d time.Duration) error

	PublishMessage(sessionID string, msg models.ChatMessage) error
}

// Service implements Storage over PostgreSQL (gorm) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService constructor.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// EnsureUser creates the directory row on first contact. Existing rows are
// left untouched.
func (s *Service) EnsureUser(userID, username string) error {
	var user models.User
	defaults := models.User{ID: userID, Username: username}
	result := s.DB.Where("id = ?", userID).FirstOrCreate(&user, defaults)
	if result.Error != nil {
		log.Printf("ERROR: Failed to save user %s on first contact: %v", userID, result.Error)
		return result.Error
	}
	return nil
}

func (s *Service) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) UpdateUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// GetProfile is the directory-service read used by the pairing coordinator.
func (s *Service) GetProfile(userID string) (*models.Profile, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{
		UserID:   user.ID,
		Username: user.Username,
		Blocked:  append([]string(nil), user.BlockedUsers...),
	}, nil
}

// BlockUser records the block on both sides: the blocker's outgoing list and
// the target's incoming list.
func (s *Service) BlockUser(blockerID, blockedID string) error {
	blocker, err := s.GetUserByID(blockerID)
	if err != nil {
		return err
	}
	if !contains(blocker.BlockedUsers, blockedID) {
		blocker.BlockedUsers = append(blocker.BlockedUsers, blockedID)
		if err := s.DB.Save(blocker).Error; err != nil {
			return err
		}
	}

	blocked, err := s.GetUserByID(blockedID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !contains(blocked.BlockedBy, blockerID) {
		blocked.BlockedBy = append(blocked.BlockedBy, blockerID)
		return s.DB.Save(blocked).Error
	}
	return nil
}

func (s *Service) UnblockUser(blockerID, blockedID string) error {
	blocker, err := s.GetUserByID(blockerID)
	if err != nil {
		return err
	}
	blocker.BlockedUsers = remove(blocker.BlockedUsers, blockedID)
	if err := s.DB.Save(blocker).Error; err != nil {
		return err
	}

	blocked, err := s.GetUserByID(blockedID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	blocked.BlockedBy = remove(blocked.BlockedBy, blockerID)
	return s.DB.Save(blocked).Error
}

// SaveMessage archives a chat message in PostgreSQL.
func (s *Service) SaveMessage(msg *models.ChatMessage) error {
	history := models.ChatHistory{
		SessionID:  msg.SessionID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Type:       msg.Type,
	}
	if err := s.DB.Create(&history).Error; err != nil {
		log.Printf("ERROR: Failed to save message for session %s: %v", msg.SessionID, err)
		return err
	}
	return nil
}

// GetChatHistory loads a session's archived messages ordered by send time.
func (s *Service) GetChatHistory(sessionID string) ([]models.ChatHistory, error) {
	var history []models.ChatHistory
	err := s.DB.Where("session_id = ?", sessionID).Order("created_at asc").Find(&history).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return history, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to get chat history for session %s: %v", sessionID, err)
		return nil, err
	}
	return history, nil
}

func (s *Service) SaveSessionRecord(rec *models.SessionRecord) error {
	return s.DB.Save(rec).Error
}

func (s *Service) CloseSessionRecord(sessionID string) error {
	return s.DB.Model(&models.SessionRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"active":   false,
			"ended_at": time.Now().Unix(),
		}).Error
}

// ActiveSessionRecords lists archive rows still marked active, used by the
// recovery pass at startup and by the admin CLI.
func (s *Service) ActiveSessionRecords() ([]models.SessionRecord, error) {
	var recs []models.SessionRecord
	if err := s.DB.Where("active = ?", true).Find(&recs).Error; err != nil {
		log.Printf("ERROR: Failed to retrieve active session records: %v", err)
		return nil, err
	}
	return recs, nil
}

func (s *Service) SaveReport(report *models.Report) error {
	if report.Status == "" {
		report.Status = "new"
	}
	if err := s.DB.Create(report).Error; err != nil {
		log.Printf("ERROR: Failed to save report for session %s: %v", report.SessionID, err)
		return err
	}
	return nil
}

func (s *Service) ReportsSince(targetID string, since time.Time) ([]models.Report, error) {
	var reports []models.Report
	err := s.DB.Where("target_id = ? AND created_at > ?", targetID, since).Find(&reports).Error
	return reports, err
}

// IsUserBanned checks the ban flag in Redis.
func (s *Service) IsUserBanned(userID string) (bool, error) {
	status, err := s.Redis.Get(s.Ctx, "ban:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// BanUser sets the Redis ban flag with expiry and mirrors it to the row.
func (s *Service) BanUser(userID string, d time.Duration) error {
	if err := s.Redis.Set(s.Ctx, "ban:"+userID, "active", d).Err(); err != nil {
		return err
	}
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.IsBanned = true
	user.BanEndTime = time.Now().Add(d).Unix()
	return s.DB.Save(user).Error
}

// PublishMessage fans a message out over Redis Pub/Sub, channel per session.
func (s *Service) PublishMessage(sessionID string, msg models.ChatMessage) error {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, "room:"+sessionID, string(msgBytes)).Err()
}

// SubscribeToAllRooms subscribes to every session channel; the hub routes
// the received messages to local clients.
func (s *Service) SubscribeToAllRooms() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, "room:*")
}

func contains(arr pq.StringArray, v string) bool {
	for _, x := range arr {
		if x == v {
			return true
		}
	}
	return false
}

func remove(arr pq.StringArray, v string) pq.StringArray {
	out := make(pq.StringArray, 0, len(arr))
	for _, x := range arr {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
