package query

import (
	"context"
	"sort"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/progress"
	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
	"github.com/studyhub/study-tracker/internal/domain/user"
)

// In-memory fakes for the read side. They implement the full repository
// contracts so handlers can be constructed the same way production code
// does, but only the methods the queries touch carry real logic.

// ─────────────────────────────────────────────────────────────────────────────
// Session repository
// ─────────────────────────────────────────────────────────────────────────────

type fakeSessionRepo struct {
	sessions map[string]session.StudySession
	err      error // when set, every method fails with it
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]session.StudySession)}
}

func (r *fakeSessionRepo) Create(_ context.Context, s session.StudySession) error {
	if r.err != nil {
		return r.err
	}
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (session.StudySession, error) {
	if r.err != nil {
		return session.StudySession{}, r.err
	}
	s, ok := r.sessions[id]
	if !ok {
		return session.StudySession{}, shared.ErrSessionNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) Update(_ context.Context, s session.StudySession) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *fakeSessionRepo) UpdateWithStatusCheck(_ context.Context, s session.StudySession, expected session.Status) error {
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
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) GetByUser(_ context.Context, userID string, opts session.ListOptions) ([]session.StudySession, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.list(userID, "", opts), nil
}

func (r *fakeSessionRepo) GetByUserAndTopic(_ context.Context, userID, topicID string, opts session.ListOptions) ([]session.StudySession, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.list(userID, topicID, opts), nil
}

func (r *fakeSessionRepo) GetCompletedByUser(_ context.Context, userID string) ([]session.StudySession, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []session.StudySession
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == session.StatusCompleted {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) GetCompletedInRange(_ context.Context, userID string, from, to time.Time) ([]session.StudySession, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []session.StudySession
	for _, s := range r.sessions {
		if s.UserID != userID || s.Status != session.StatusCompleted {
			continue
		}
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
	if r.err != nil {
		return nil, r.err
	}
	var out []time.Time
	for _, s := range r.sessions {
		if s.UserID != userID || s.Status != session.StatusCompleted {
			continue
		}
		if s.StartTime != nil {
			out = append(out, *s.StartTime)
		} else if s.EndTime != nil {
			out = append(out, *s.EndTime)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) GetActiveByUser(_ context.Context, userID string) (session.StudySession, error) {
	if r.err != nil {
		return session.StudySession{}, r.err
	}
	for _, s := range r.sessions {
		if s.UserID == userID && (s.Status == session.StatusActive || s.Status == session.StatusPaused) {
			return s, nil
		}
	}
	return session.StudySession{}, shared.ErrSessionNotFound
}

func (r *fakeSessionRepo) CountByUser(_ context.Context, userID string, status session.Status) (int, error) {
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) list(userID, topicID string, opts session.ListOptions) []session.StudySession {
	var out []session.StudySession
	for _, s := range r.sessions {
		if s.UserID != userID {
			continue
		}
		if topicID != "" && s.TopicID != topicID {
			continue
		}
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if opts.Offset >= len(out) {
		return nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// User repository and cache
// ─────────────────────────────────────────────────────────────────────────────

type fakeUserRepo struct {
	users map[string]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*user.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, shared.ErrUserNotFound
}

func (r *fakeUserRepo) Update(_ context.Context, u *user.User) error {
	r.users[u.ID] = u
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) ApplyStatsDelta(_ context.Context, userID string, delta user.StatsDelta) error {
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.Statistics.TotalStudyHours += delta.StudyHours
	u.Statistics.TotalSessions += delta.Sessions
	u.Statistics.CompletedTopics += delta.CompletedTopics
	if delta.LastStudyDate != nil {
		u.Statistics.LastStudyDate = delta.LastStudyDate
	}
	return nil
}

func (r *fakeUserRepo) UpdateStreaks(_ context.Context, userID string, current, longest int, lastStudyDate *time.Time) error {
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.Statistics.ApplyStreaks(current, longest, lastStudyDate)
	return nil
}

func (r *fakeUserRepo) ReplaceStatistics(_ context.Context, userID string, stats user.Statistics) error {
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.Statistics = stats
	return nil
}

func (r *fakeUserRepo) SaveAchievements(_ context.Context, userID string, achievements []user.Achievement) error {
	u, ok := r.users[userID]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.Achievements = append(u.Achievements, achievements...)
	return nil
}

func (r *fakeUserRepo) GetAllIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeUserRepo) Exists(_ context.Context, id string) (bool, error) {
	_, ok := r.users[id]
	return ok, nil
}

func (r *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// fakeUserCache records hits and writes so tests can assert the
// read-through path.
type fakeUserCache struct {
	entries map[string]*user.User
	err     error
	gets    int
	sets    int
}

func newFakeUserCache() *fakeUserCache {
	return &fakeUserCache{entries: make(map[string]*user.User)}
}

func (c *fakeUserCache) Get(_ context.Context, userID string) (*user.User, error) {
	c.gets++
	if c.err != nil {
		return nil, c.err
	}
	u, ok := c.entries[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (c *fakeUserCache) Set(_ context.Context, u *user.User, _ time.Duration) error {
	c.sets++
	if c.err != nil {
		return c.err
	}
	c.entries[u.ID] = u
	return nil
}

func (c *fakeUserCache) Invalidate(_ context.Context, userID string) error {
	delete(c.entries, userID)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic and progress repositories
// ─────────────────────────────────────────────────────────────────────────────

type fakeTopicRepo struct {
	topics map[string]*topic.Topic
}

func newFakeTopicRepo() *fakeTopicRepo {
	return &fakeTopicRepo{topics: make(map[string]*topic.Topic)}
}

func (r *fakeTopicRepo) Create(_ context.Context, t *topic.Topic) error {
	r.topics[t.ID] = t
	return nil
}

func (r *fakeTopicRepo) GetByID(_ context.Context, id string) (*topic.Topic, error) {
	t, ok := r.topics[id]
	if !ok {
		return nil, shared.ErrTopicNotFound
	}
	return t, nil
}

func (r *fakeTopicRepo) Update(_ context.Context, t *topic.Topic) error {
	r.topics[t.ID] = t
	return nil
}

func (r *fakeTopicRepo) Delete(_ context.Context, id string) error {
	delete(r.topics, id)
	return nil
}

func (r *fakeTopicRepo) List(_ context.Context, category topic.Category, offset, limit int) ([]*topic.Topic, error) {
	var out []*topic.Topic
	for _, t := range r.topics {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTopicRepo) ApplyStatsDelta(_ context.Context, topicID string, delta topic.StatsDelta) error {
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
	_, ok := r.topics[id]
	return ok, nil
}

type fakeProgressRepo struct {
	records map[string]*progress.UserProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{records: make(map[string]*progress.UserProgress)}
}

func progressKey(userID, topicID string) string { return userID + "|" + topicID }

func (r *fakeProgressRepo) GetByUserAndTopic(_ context.Context, userID, topicID string) (*progress.UserProgress, error) {
	p, ok := r.records[progressKey(userID, topicID)]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return p, nil
}

func (r *fakeProgressRepo) Upsert(_ context.Context, p *progress.UserProgress) error {
	r.records[progressKey(p.UserID, p.TopicID)] = p
	return nil
}

func (r *fakeProgressRepo) AddStudyTime(_ context.Context, userID, topicID string, minutes int) error {
	p, ok := r.records[progressKey(userID, topicID)]
	if !ok {
		return shared.ErrProgressNotFound
	}
	p.TimeSpentMinutes += minutes
	return nil
}

func (r *fakeProgressRepo) GetByUser(_ context.Context, userID string) ([]*progress.UserProgress, error) {
	var out []*progress.UserProgress
	for _, p := range r.records {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) GetBookmarked(_ context.Context, userID string) ([]*progress.UserProgress, error) {
	var out []*progress.UserProgress
	for _, p := range r.records {
		if p.UserID == userID && p.IsBookmarked {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) CountCompleted(_ context.Context, userID string) (int, error) {
	n := 0
	for _, p := range r.records {
		if p.UserID == userID && p.Status == progress.StatusCompleted {
			n++
		}
	}
	return n, nil
}

func (r *fakeProgressRepo) Delete(_ context.Context, userID, topicID string) error {
	delete(r.records, progressKey(userID, topicID))
	return nil
}
