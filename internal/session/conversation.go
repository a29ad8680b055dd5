package session

import (
	"sync"

	"servicechat/internal/models"
)

// Conversation is the ordered turn history of one session key. The first turn
// is always the scenario seed.
type Conversation struct {
	key models.SessionKey

	mu    sync.RWMutex
	turns []models.Turn
}

func newConversation(key models.SessionKey, seed []models.Turn) *Conversation {
	return &Conversation{key: key, turns: models.CloneTurns(seed)}
}

func (c *Conversation) Key() models.SessionKey {
	return c.key
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Turns returns a copy of the full history.
func (c *Conversation) Turns() []models.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.CloneTurns(c.turns)
}

// Window returns the seed plus the newest limit-1 turns when the history is
// longer than limit, otherwise a copy of the whole history.
func (c *Conversation) Window(limit int) []models.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := len(c.turns)
	if limit <= 0 || n <= limit {
		return models.CloneTurns(c.turns)
	}
	out := make([]models.Turn, 0, limit)
	out = append(out, c.turns[0])
	out = append(out, c.turns[n-(limit-1):]...)
	return out
}

func (c *Conversation) append(turn models.Turn) {
	c.mu.Lock()
	c.turns = append(c.turns, turn)
	c.mu.Unlock()
}

func (c *Conversation) reset(seed []models.Turn) {
	c.mu.Lock()
	c.turns = models.CloneTurns(seed)
	c.mu.Unlock()
}
