package command

import (
	"context"
	"sync"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/progress"
	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
	"github.com/studyhub/study-tracker/internal/domain/user"
)

// In-memory fakes shared by the command handler tests. They mirror the
// semantics the Postgres implementations guarantee, in particular the
// optimistic status check on session updates.

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]session.StudySession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]session.StudySession)}
}

func (r *fakeSessionRepo) Create(_ context.Context, s session.StudySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (session.StudySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return session.StudySession{}, shared.ErrSessionNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) Update(_ context.Context, s session.StudySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) UpdateWithStatusCheck(_ context.Context, s session.StudySession, expected session.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[s.ID]
	if !ok {
		return shared.ErrSessionNotFound
	}
	if stored.Status != expected {
		return shared.ErrConcurrentTransition
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) GetByUser(_ context.Context, userID string, _ session.ListOptions) ([]session.StudySession, error) {
	return r.byUser(userID, false), nil
}

func (r *fakeSessionRepo) GetByUserAndTopic(_ context.Context, userID, topicID string, _ session.ListOptions) ([]session.StudySession, error) {
	var out []session.StudySession
	for _, s := range r.byUser(userID, false) {
		if s.TopicID == topicID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) GetCompletedByUser(_ context.Context, userID string) ([]session.StudySession, error) {
	return r.byUser(userID, true), nil
}

func (r *fakeSessionRepo) GetCompletedInRange(_ context.Context, userID string, from, to time.Time) ([]session.StudySession, error) {
	var out []session.StudySession
	for _, s := range r.byUser(userID, true) {
		day := s.StartTime
		if day == nil {
			day = s.EndTime
		}
		if day != nil && !day.Before(from) && day.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) GetStartTimes(_ context.Context, userID string) ([]time.Time, error) {
	var out []time.Time
	for _, s := range r.byUser(userID, true) {
		if s.StartTime != nil {
			out = append(out, *s.StartTime)
		} else if s.EndTime != nil {
			out = append(out, *s.EndTime)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) GetActiveByUser(_ context.Context, userID string) (session.StudySession, error) {
	for _, s := range r.byUser(userID, false) {
		if s.Status == session.StatusActive || s.Status == session.StatusPaused {
			return s, nil
		}
	}
	return session.StudySession{}, shared.ErrSessionNotFound
}

func (r *fakeSessionRepo) CountByUser(_ context.Context, userID string, status session.Status) (int, error) {
	count := 0
	for _, s := range r.byUser(userID, false) {
		if s.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeSessionRepo) byUser(userID string, completedOnly bool) []session.StudySession {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []session.StudySession
	for _, s := range r.sessions {
		if s.UserID != userID {
			continue
		}
		if completedOnly && s.Status != session.StatusCompleted {
			continue
		}
		out = append(out, s)
	}
	return out
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*user.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return shared.ErrUserAlreadyExists
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrUserNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) ApplyStatsDelta(_ context.Context, userID string, delta user.StatsDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.Statistics.TotalStudyHours += delta.StudyHours
	u.Statistics.TotalSessions += delta.Sessions
	u.Statistics.CompletedTopics += delta.CompletedTopics
	if delta.LastStudyDate != nil {
		day := *delta.LastStudyDate
		u.Statistics.LastStudyDate = &day
	}
	return nil
}

func (r *fakeUserRepo) UpdateStreaks(_ context.Context, userID string, current, longest int, lastStudyDate *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.Statistics.ApplyStreaks(current, longest, lastStudyDate)
	return nil
}

func (r *fakeUserRepo) ReplaceStatistics(_ context.Context, userID string, stats user.Statistics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.Statistics = stats
	return nil
}

func (r *fakeUserRepo) SaveAchievements(_ context.Context, userID string, achievements []user.Achievement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.Achievements = append(u.Achievements, achievements...)
	return nil
}

func (r *fakeUserRepo) GetAllIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeUserRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[id]
	return ok, nil
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type fakeProgressRepo struct {
	mu      sync.Mutex
	records map[string]*progress.UserProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{records: make(map[string]*progress.UserProgress)}
}

func progressKey(userID, topicID string) string { return userID + "|" + topicID }

func (r *fakeProgressRepo) GetByUserAndTopic(_ context.Context, userID, topicID string) (*progress.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[progressKey(userID, topicID)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProgressRepo) Upsert(_ context.Context, p *progress.UserProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.records[progressKey(p.UserID, p.TopicID)] = &cp
	return nil
}

func (r *fakeProgressRepo) AddStudyTime(_ context.Context, userID, topicID string, minutes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.records[progressKey(userID, topicID)]
	if !ok {
		return shared.ErrProgressNotFound
	}
	p.TimeSpentMinutes += minutes
	return nil
}

func (r *fakeProgressRepo) GetByUser(_ context.Context, userID string) ([]*progress.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*progress.UserProgress
	for _, p := range r.records {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) GetBookmarked(_ context.Context, userID string) ([]*progress.UserProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*progress.UserProgress
	for _, p := range r.records {
		if p.UserID == userID && p.IsBookmarked {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) CountCompleted(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.records {
		if p.UserID == userID && p.Status == progress.StatusCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeProgressRepo) Delete(_ context.Context, userID, topicID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, progressKey(userID, topicID))
	return nil
}

type fakeTopicRepo struct {
	mu     sync.Mutex
	topics map[string]*topic.Topic
}

func newFakeTopicRepo() *fakeTopicRepo {
	return &fakeTopicRepo{topics: make(map[string]*topic.Topic)}
}

func (r *fakeTopicRepo) Create(_ context.Context, t *topic.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.topics[t.ID] = &cp
	return nil
}

func (r *fakeTopicRepo) GetByID(_ context.Context, id string) (*topic.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[id]
	if !ok {
		return nil, shared.ErrTopicNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTopicRepo) Update(_ context.Context, t *topic.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.topics[t.ID] = &cp
	return nil
}

func (r *fakeTopicRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.topics, id)
	return nil
}

func (r *fakeTopicRepo) List(_ context.Context, category topic.Category, _, _ int) ([]*topic.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*topic.Topic
	for _, t := range r.topics {
		if category == "" || t.Category == category {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTopicRepo) ApplyStatsDelta(_ context.Context, topicID string, delta topic.StatsDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[topicID]
	if !ok {
		return shared.ErrTopicNotFound
	}
	t.Stats.TotalStudyMinutes += delta.StudyMinutes
	t.Stats.SessionCount += delta.Sessions
	t.Stats.CompletionCount += delta.Completions
	if delta.Rating != 0 {
		total := t.Stats.AverageRating*float64(t.Stats.RatingCount) + float64(delta.Rating)
		t.Stats.RatingCount++
		t.Stats.AverageRating = total / float64(t.Stats.RatingCount)
	}
	return nil
}

func (r *fakeTopicRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.topics[id]
	return ok, nil
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *fakeEventBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *fakeEventBus) byType(t shared.EventType) []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []shared.Event
	for _, e := range b.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}
