// services/notifier.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"spin-tournament-engine/models"
)

// sendPacing is the delay between sends in batch notification loops, to stay
// under the chat platform's rate limits.
const sendPacing = 100 * time.Millisecond

// Message is a handle to a delivered chat message.
type Message struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// Notifier is the chat delivery boundary. Sends to end users are best-effort:
// callers log and discard failures, so players see either the message or
// silence, never an internal error.
type Notifier interface {
	SendToUser(chatID int64, text string) (*Message, error)
	SendToGroupTopic(topicID int64, text string) (*Message, error)
	DeleteMessage(chatID, messageID int64) error
	Pin(msg *Message) error
	// CrossPost forwards a group-topic message into the main group feed and
	// returns the handle of the copy.
	CrossPost(msg *Message) (*Message, error)
}

// SubscriptionChecker supplies the externally computed quota bonus for users
// subscribed to the partner channels.
type SubscriptionChecker interface {
	SubscriptionSpinsBonus(chatID int64) int
}

// TelegramNotifier talks to the Telegram Bot API over plain HTTP.
type TelegramNotifier struct {
	apiBase       string
	mainGroupID   int64
	bonusChannels []int64
	HTTPClient    *http.Client
}

func NewTelegramNotifier() *TelegramNotifier {
	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		log.Fatal("BOT_TOKEN environment variable is required")
	}
	mainGroupID, err := strconv.ParseInt(os.Getenv("MAIN_GROUP_ID"), 10, 64)
	if err != nil {
		log.Fatal("MAIN_GROUP_ID must be a numeric chat id")
	}

	var bonusChannels []int64
	for _, raw := range strings.Split(os.Getenv("BONUS_CHANNEL_IDS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Fatalf("BONUS_CHANNEL_IDS contains a non-numeric id: %q", raw)
		}
		bonusChannels = append(bonusChannels, id)
	}

	return &TelegramNotifier{
		apiBase:       "https://api.telegram.org/bot" + token,
		mainGroupID:   mainGroupID,
		bonusChannels: bonusChannels,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type tgResult struct {
	MessageID int64  `json:"message_id"`
	Status    string `json:"status"`
}

func (n *TelegramNotifier) call(method string, payload map[string]interface{}) (*tgResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", method, err)
	}

	resp, err := n.HTTPClient.Post(n.apiBase+"/"+method, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var out struct {
		OK          bool     `json:"ok"`
		Result      tgResult `json:"result"`
		Description string   `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !out.OK {
		return nil, fmt.Errorf("%s rejected: %s", method, out.Description)
	}
	return &out.Result, nil
}

func (n *TelegramNotifier) SendToUser(chatID int64, text string) (*Message, error) {
	res, err := n.call("sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return nil, err
	}
	return &Message{ChatID: chatID, MessageID: res.MessageID}, nil
}

func (n *TelegramNotifier) SendToGroupTopic(topicID int64, text string) (*Message, error) {
	res, err := n.call("sendMessage", map[string]interface{}{
		"chat_id":           n.mainGroupID,
		"message_thread_id": topicID,
		"text":              text,
	})
	if err != nil {
		return nil, err
	}
	return &Message{ChatID: n.mainGroupID, MessageID: res.MessageID}, nil
}

func (n *TelegramNotifier) DeleteMessage(chatID, messageID int64) error {
	_, err := n.call("deleteMessage", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	})
	return err
}

func (n *TelegramNotifier) Pin(msg *Message) error {
	_, err := n.call("pinChatMessage", map[string]interface{}{
		"chat_id":    msg.ChatID,
		"message_id": msg.MessageID,
	})
	return err
}

func (n *TelegramNotifier) CrossPost(msg *Message) (*Message, error) {
	res, err := n.call("forwardMessage", map[string]interface{}{
		"chat_id":      n.mainGroupID,
		"from_chat_id": msg.ChatID,
		"message_id":   msg.MessageID,
	})
	if err != nil {
		return nil, err
	}
	return &Message{ChatID: n.mainGroupID, MessageID: res.MessageID}, nil
}

// SubscriptionSpinsBonus counts partner-channel memberships; each one adds a
// full base quota on top of the user's limit. Lookup failures count as not
// subscribed.
func (n *TelegramNotifier) SubscriptionSpinsBonus(chatID int64) int {
	bonus := 0
	for _, channelID := range n.bonusChannels {
		res, err := n.call("getChatMember", map[string]interface{}{
			"chat_id": channelID,
			"user_id": chatID,
		})
		if err != nil {
			continue
		}
		if res.Status != "left" && res.Status != "kicked" {
			bonus += models.DefaultSpinsAmount
		}
	}
	return bonus
}

// NopNotifier drops every delivery. Used in tests and when no bot token is
// configured.
type NopNotifier struct{}

func (NopNotifier) SendToUser(chatID int64, text string) (*Message, error) {
	return &Message{ChatID: chatID}, nil
}

func (NopNotifier) SendToGroupTopic(topicID int64, text string) (*Message, error) {
	return &Message{}, nil
}

func (NopNotifier) DeleteMessage(chatID, messageID int64) error { return nil }

func (NopNotifier) Pin(msg *Message) error { return nil }

func (NopNotifier) CrossPost(msg *Message) (*Message, error) { return &Message{}, nil }

func (NopNotifier) SubscriptionSpinsBonus(chatID int64) int { return 0 }
