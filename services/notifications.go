package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"stormneighbor-server/models"
	"stormneighbor-server/storage"

	"gorm.io/datatypes"
)

const expoPushEndpoint = "https://exp.host/--/api/v2/push/send"

// NotificationService handles push delivery and the persisted notification feed
type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotificationData is the payload attached to a push for client deep linking
type NotificationData struct {
	Type           string `json:"type"`
	PostID         string `json:"postId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	SenderID       string `json:"senderId,omitempty"`
	Screen         string `json:"screen"`
	Params         string `json:"params,omitempty"`
}

type expoPushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// sendExpoPush posts a single push message to the Expo push API.
func sendExpoPush(token, title, body string, data map[string]string) error {
	msg := expoPushMessage{To: token, Title: title, Body: body, Data: data, Sound: "default"}
	payload, err := json.Marshal([]expoPushMessage{msg})
	if err != nil {
		return err
	}

	res, err := http.Post(expoPushEndpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("expo push status %d", res.StatusCode)
	}
	return nil
}

// getUserPushTokens returns the push tokens of a user who allows notifications.
func (ns *NotificationService) getUserPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil, fmt.Errorf("user %d has notifications disabled or no tokens", userID)
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push tokens: %w", err)
	}
	return tokens, nil
}

// SendNotificationToUser persists a notification row and pushes it to every
// registered device of the user. A user with pushes disabled still gets the
// persisted row for the in-app feed.
func (ns *NotificationService) SendNotificationToUser(userID uint, title, body string, data NotificationData) error {
	if dataJSON, err := json.Marshal(data); err == nil {
		record := models.Notification{
			UserID: userID,
			Type:   data.Type,
			Title:  title,
			Body:   body,
			Data:   datatypes.JSON(dataJSON),
		}
		if err := storage.DB.Create(&record).Error; err != nil {
			log.Printf("failed to persist notification for user %d: %v", userID, err)
		}
	}

	tokens, err := ns.getUserPushTokens(userID)
	if err != nil {
		return err
	}

	dataMap := map[string]string{
		"type":           data.Type,
		"postId":         data.PostID,
		"conversationId": data.ConversationID,
		"senderId":       data.SenderID,
		"screen":         data.Screen,
		"params":         data.Params,
	}

	var lastError error
	for _, token := range tokens {
		if err := sendExpoPush(token, title, body, dataMap); err != nil {
			log.Printf("failed to push to token %s: %v", token, err)
			lastError = err
		}
	}
	return lastError
}

// SendMessageNotification notifies a recipient about a new direct message.
func (ns *NotificationService) SendMessageNotification(recipientID, senderID, conversationID uint, senderName string) error {
	title := "New Message"
	body := fmt.Sprintf("%s sent you a message", senderName)
	params := fmt.Sprintf(`{"conversationId": %d, "senderId": %d}`, conversationID, senderID)

	data := NotificationData{
		Type:           "message",
		ConversationID: fmt.Sprintf("%d", conversationID),
		SenderID:       fmt.Sprintf("%d", senderID),
		Screen:         "Conversation",
		Params:         params,
	}
	return ns.SendNotificationToUser(recipientID, title, body, data)
}

// SendEmergencyPostNotification fans an emergency post out to every user in
// the post's city who allows notifications.
func (ns *NotificationService) SendEmergencyPostNotification(post *models.Post) {
	var users []models.User
	err := storage.DB.
		Where("location_city = ? AND location_state = ? AND allows_notifications = ?", post.LocationCity, post.LocationState, true).
		Where("id <> ?", post.AuthorID).
		Find(&users).Error
	if err != nil {
		log.Printf("emergency fanout query failed for post %d: %v", post.ID, err)
		return
	}

	title := "Emergency Alert"
	body := post.Title
	params := fmt.Sprintf(`{"postId": %d}`, post.ID)
	data := NotificationData{
		Type:   "emergency_post",
		PostID: fmt.Sprintf("%d", post.ID),
		Screen: "PostDetail",
		Params: params,
	}

	for _, user := range users {
		if err := ns.SendNotificationToUser(user.ID, title, body, data); err != nil {
			log.Printf("emergency push to user %d failed: %v", user.ID, err)
		}
	}
}
