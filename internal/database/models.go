package database

import "context"

// Document keys. Every key is stored behind the namespace prefix.
const (
	KeyAccounts        = "accounts"
	KeySessions        = "sessions"
	KeyCurrentSession  = "current_session"
	KeyChatMessages    = "chat_messages"
	KeyFriends         = "friends"
	KeyServers         = "servers"
	KeyContactMessages = "contact_messages"
	KeyNotifications   = "notifications"
)

const DefaultKeyPrefix = "portal:"

type namespaced struct {
	DocumentStore
	prefix string
}

// Namespace scopes every key of s under prefix.
func Namespace(s DocumentStore, prefix string) DocumentStore {
	if prefix == "" {
		return s
	}
	return &namespaced{DocumentStore: s, prefix: prefix}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.DocumentStore.Get(ctx, n.prefix+key)
}

func (n *namespaced) Put(ctx context.Context, key string, value []byte) error {
	return n.DocumentStore.Put(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.DocumentStore.Delete(ctx, n.prefix+key)
}
