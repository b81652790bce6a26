package store

import (
	"context"
	"sync/atomic"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/realtime"
)

// Chat target kinds.
const (
	ChatPrivate = models.MessageTypePrivate
	ChatGroup   = models.MessageTypeGroup
)

// ChatAPI is the part of the REST client the chat store uses.
type ChatAPI interface {
	UserID() int
	SendMessage(ctx context.Context, receiverID int, content string) (*models.Message, error)
	Conversation(ctx context.Context, otherUserID, limit, offset int) ([]models.Message, error)
	RecentConversations(ctx context.Context, limit int) ([]models.ConversationSummary, error)
	DeleteMessage(ctx context.Context, messageID int) error
}

// ChatSocket is the realtime side of chat. *realtime.Client satisfies it.
type ChatSocket interface {
	Status() realtime.Status
	Send(frame any) error
	OnMessage(h realtime.MessageHandler) func()
}

// ChatStore holds the messages of the signed-in user and the open chat.
type ChatStore struct {
	base
	api ChatAPI
	ws  ChatSocket

	activeKind string
	activeID   int
	messages   []models.Message
	localID    atomic.Int64
}

// NewChatStore builds a chat store. ws may be nil to use HTTP only.
func NewChatStore(api ChatAPI, ws ChatSocket) *ChatStore {
	return &ChatStore{base: newBase("chat"), api: api, ws: ws, activeKind: ChatPrivate}
}

// CurrentUserID is the id of the signed-in user.
func (s *ChatStore) CurrentUserID() int {
	return s.api.UserID()
}

// SetActive opens a private chat with a user or a group chat.
func (s *ChatStore) SetActive(kind string, id int) error {
	if kind != ChatPrivate && kind != ChatGroup {
		return models.NewValidationError("unknown chat type: " + kind)
	}
	s.mu.Lock()
	s.activeKind = kind
	s.activeID = id
	s.mu.Unlock()
	return nil
}

// Active returns the open chat.
func (s *ChatStore) Active() (kind string, id int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeKind, s.activeID
}

// Messages returns every message the store holds.
func (s *ChatStore) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.messages...)
}

// ActiveMessages returns the messages of the open chat: both directions of a
// private chat, or everything posted to the group.
func (s *ChatStore) ActiveMessages() []models.Message {
	me := s.api.UserID()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Message{}
	for _, m := range s.messages {
		if s.activeKind == ChatPrivate {
			if m.GroupID == 0 && m.Between(me, s.activeID) {
				out = append(out, m)
			}
		} else if m.GroupID == s.activeID {
			out = append(out, m)
		}
	}
	return out
}

// SendMessage sends content to the open chat. The WebSocket is used when
// connected; private messages fall back to HTTP otherwise. Messages sent over
// the socket are kept locally under a negative id since the server does not
// echo them.
func (s *ChatStore) SendMessage(ctx context.Context, content string) (models.Message, error) {
	kind, target := s.Active()
	if target <= 0 {
		return models.Message{}, s.fail(ctx, "send_message", models.NewValidationError("no active chat"))
	}

	if s.ws != nil && s.ws.Status().Connected {
		var frame any = realtime.ChatFrame(target, content)
		if kind == ChatGroup {
			frame = realtime.GroupFrame(target, content)
		}
		if err := s.ws.Send(frame); err == nil {
			m := models.Message{
				ID:        int(-s.localID.Add(1)),
				SenderID:  s.api.UserID(),
				Content:   content,
				Type:      kind,
				CreatedAt: time.Now().UTC(),
			}
			if kind == ChatGroup {
				m.GroupID = target
			} else {
				m.ReceiverID = target
			}
			s.append(m)
			return m, nil
		} else if kind == ChatGroup {
			return models.Message{}, s.fail(ctx, "send_message", err)
		}
	}

	if kind == ChatGroup {
		return models.Message{}, s.fail(ctx, "send_message", realtime.ErrNotConnected)
	}
	m, err := s.api.SendMessage(ctx, target, content)
	if err != nil {
		return models.Message{}, s.fail(ctx, "send_message", err)
	}
	s.append(*m)
	return *m, nil
}

// append adds m unless a message with the same id is already held.
func (s *ChatStore) append(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.messages {
		if have.ID == m.ID {
			return
		}
	}
	s.messages = append(s.messages, m)
}

// LoadConversation fetches the history with another user and merges it in.
func (s *ChatStore) LoadConversation(ctx context.Context, otherUserID int) ([]models.Message, error) {
	defer s.start()()
	msgs, err := s.api.Conversation(ctx, otherUserID, 50, 0)
	if err != nil {
		return nil, s.fail(ctx, "load_conversation", err)
	}
	for _, m := range msgs {
		s.append(m)
	}
	s.done(ctx, "load_conversation", map[string]interface{}{"other_user_id": otherUserID, "count": len(msgs)})
	return msgs, nil
}

// RecentConversations lists the latest conversations.
func (s *ChatStore) RecentConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	convs, err := s.api.RecentConversations(ctx, pageSize)
	if err != nil {
		return nil, s.fail(ctx, "recent_conversations", err)
	}
	return convs, nil
}

// DeleteMessage deletes one of the user's messages.
func (s *ChatStore) DeleteMessage(ctx context.Context, id int) error {
	if err := s.api.DeleteMessage(ctx, id); err != nil {
		return s.fail(ctx, "delete_message", err)
	}
	s.mu.Lock()
	out := s.messages[:0]
	for _, m := range s.messages {
		if m.ID != id {
			out = append(out, m)
		}
	}
	s.messages = out
	s.mu.Unlock()
	return nil
}

// Listen appends inbound chat frames until ctx is done.
func (s *ChatStore) Listen(ctx context.Context, src EventSource) {
	unsubscribe := src.OnMessage(func(ev realtime.Event) {
		if ev.Message == nil {
			return
		}
		if ev.Type == models.FrameMessage || ev.Type == models.FrameGroup {
			s.append(*ev.Message)
		}
	})
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
}

var emojis = []string{
	"😀", "😃", "😄", "😁", "😆", "😅", "😂", "🤣", "😊", "😇", "🙂", "🙃", "😉", "😌", "😍", "🥰",
	"😘", "😋", "😛", "😜", "🤪", "🤨", "🧐", "🤓", "😎", "🤩", "🥳", "😏", "😒", "😞", "😔", "😟",
	"😢", "😭", "😤", "😠", "😡", "🤯", "😳", "😱", "🤗", "🤔", "🤭", "🤫", "😶", "😐", "🙄", "😴",
	"👋", "👌", "✌️", "🤞", "👍", "👎", "👏", "🙌", "🤝", "🙏", "💪",
	"🐶", "🐱", "🦊", "🐻", "🐼", "🦁", "🐸", "🐵", "🐧", "🦉", "🐝", "🦋", "🐢", "🐙", "🐬", "🐳",
	"🌵", "🌲", "🌴", "🌱", "🍀", "🍁", "🍄", "🌍", "🌙", "⭐", "🔥", "🌈",
	"🍎", "🍌", "🍉", "🍓", "🍒", "🥑", "🌽", "🥐", "🧀", "🍔", "🍟", "🍕", "🌮", "🍣", "🍪", "🍩",
	"⚽", "🏀", "🎾", "🏓", "🎯", "🎮", "🎲", "🎸", "🎧", "🏆",
	"🚗", "🚲", "✈️", "🚀", "⛵", "🏠", "🏕", "🗺",
	"💻", "📱", "📷", "💡", "🔧", "🎁", "🎉", "✉️", "📌",
	"❤️", "🧡", "💛", "💚", "💙", "💜", "🖤", "💔", "💯",
}

// Emojis returns the picker palette.
func (s *ChatStore) Emojis() []string {
	return append([]string(nil), emojis...)
}
