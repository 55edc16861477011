package registry

import (
	"strconv"
	"strings"

	"github.com/sguter90/watermaestro/pkg/models"
)

const userIDPrefix = "user"

// Snapshot is the full, ordered set of user profiles as loaded from storage.
// Mutations only become durable through Registry.Commit.
type Snapshot struct {
	users []models.UserProfile

	// seq is the highest generated id number ever issued; storedSeq is the
	// value last read from or written to storage.
	seq       int
	storedSeq int
}

// NewSnapshot wraps profiles in a snapshot
func NewSnapshot(users []models.UserProfile) *Snapshot {
	s := &Snapshot{users: users}
	for _, u := range users {
		s.observe(u.ID)
	}
	return s
}

// withSeq records the persisted high-water mark
func (s *Snapshot) withSeq(stored int) *Snapshot {
	s.storedSeq = stored
	if stored > s.seq {
		s.seq = stored
	}
	return s
}

func (s *Snapshot) observe(id string) {
	if n, ok := idNumber(id); ok && n > s.seq {
		s.seq = n
	}
}

func idNumber(id string) (int, bool) {
	suffix, ok := strings.CutPrefix(id, userIDPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Users returns the profiles in snapshot order
func (s *Snapshot) Users() []models.UserProfile {
	return s.users
}

// Len returns the number of profiles
func (s *Snapshot) Len() int {
	return len(s.users)
}

// Find returns the profile with id, or false if there is none.
// The pointer aliases the snapshot so callers can mutate in place.
func (s *Snapshot) Find(id string) (*models.UserProfile, bool) {
	for i := range s.users {
		if s.users[i].ID == id {
			return &s.users[i], true
		}
	}
	return nil, false
}

// Append adds a profile at the end
func (s *Snapshot) Append(profile models.UserProfile) {
	s.users = append(s.users, profile)
	s.observe(profile.ID)
}

// Remove drops the profile with id and reports whether it existed
func (s *Snapshot) Remove(id string) bool {
	for i := range s.users {
		if s.users[i].ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return true
		}
	}
	return false
}

// NextID returns "user" + (count+1), or one past the highest id ever issued
// when that is larger. Ids of removed users are never handed out again.
func (s *Snapshot) NextID() string {
	n := len(s.users) + 1
	if s.seq+1 > n {
		n = s.seq + 1
	}
	for ; ; n++ {
		id := userIDPrefix + strconv.Itoa(n)
		if _, taken := s.Find(id); !taken {
			return id
		}
	}
}

// IDs returns the profile ids in snapshot order
func (s *Snapshot) IDs() []string {
	ids := make([]string, len(s.users))
	for i, u := range s.users {
		ids[i] = u.ID
	}
	return ids
}

func (s *Snapshot) clone() *Snapshot {
	users := make([]models.UserProfile, len(s.users))
	for i, u := range s.users {
		users[i] = u.Clone()
	}
	return &Snapshot{users: users, seq: s.seq, storedSeq: s.storedSeq}
}
