package services

import "sync"

// guildLocks serializes mutations per guild. Every mutating registry
// operation and every reconciliation pass holds the guild's lock across its
// full read-mutate-persist span; operations on different guilds proceed
// independently.
type guildLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newGuildLocks() *guildLocks {
	return &guildLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the lock for the guild and returns the unlock function.
func (g *guildLocks) Lock(guildID int64) func() {
	g.mu.Lock()
	l, ok := g.locks[guildID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[guildID] = l
	}
	g.mu.Unlock()

	l.Lock()
	return l.Unlock
}
