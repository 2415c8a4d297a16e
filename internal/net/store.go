package net

import "sort"

// SessionStore indexes live sessions by id. Game loop only.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session, 64)}
}

func (st *SessionStore) Add(s *Session) { st.sessions[s.ID] = s }

func (st *SessionStore) Remove(id uint64) { delete(st.sessions, id) }

func (st *SessionStore) Get(id uint64) *Session { return st.sessions[id] }

func (st *SessionStore) Len() int { return len(st.sessions) }

// ForEach visits sessions in ascending id order.
func (st *SessionStore) ForEach(fn func(*Session)) {
	for _, s := range st.Sorted() {
		fn(s)
	}
}

// Sorted returns the sessions ordered by id.
func (st *SessionStore) Sorted() []*Session {
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
