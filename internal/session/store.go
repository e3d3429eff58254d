// Package session keeps the in-memory pending-download state, keyed by
// conversation id. Process-lifetime only; sessions are never persisted.
package session

import (
	"sync"

	"github.com/tgfetch/url-uploader-bot/internal/models"
)

const shardCount = 16

type shard struct {
	mu       sync.RWMutex
	sessions map[int64]*models.PendingSession
}

// Store is a sharded conversation-id → session map. One session per
// conversation; Put replaces unconditionally (last writer wins).
type Store struct {
	shards [shardCount]*shard
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[int64]*models.PendingSession)}
	}
	return s
}

func (s *Store) shardFor(chatID int64) *shard {
	return s.shards[uint64(chatID)%shardCount]
}

func (s *Store) Get(chatID int64) (*models.PendingSession, bool) {
	sh := s.shardFor(chatID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[chatID]
	return sess, ok
}

func (s *Store) Put(sess *models.PendingSession) {
	sh := s.shardFor(sess.ChatID)
	sh.mu.Lock()
	sh.sessions[sess.ChatID] = sess
	sh.mu.Unlock()
}

func (s *Store) Delete(chatID int64) {
	sh := s.shardFor(chatID)
	sh.mu.Lock()
	delete(sh.sessions, chatID)
	sh.mu.Unlock()
}

// Count returns the number of active sessions across all shards.
func (s *Store) Count() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return total
}
