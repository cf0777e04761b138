package chathub

import (
	"encoding/json"
	"log"

	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/storage"
)

// StartPubSubListener starts the goroutine that relays chat traffic between
// instances. Text and typing messages are published to a per-session Redis
// channel; every instance subscribes to all of them and the run loop fans
// each message out to its local clients.
func (m *ManagerService) StartPubSubListener() {
	svc, ok := m.Storage.(*storage.Service)
	if !ok {
		// No Redis behind the storage (tests); local delivery only.
		return
	}

	go func() {
		pubsub := svc.SubscribeToAllRooms()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var chatMsg models.ChatMessage
			if err := json.Unmarshal([]byte(msg.Payload), &chatMsg); err != nil {
				log.Printf("Error unmarshalling Redis message: %v", err)
				continue
			}
			m.pubSubCh <- chatMsg
		}
	}()
}
