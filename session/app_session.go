package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"Gin_postgres_redis_library/models"

	"github.com/redis/go-redis/v9"
)

var ErrNoSession = errors.New("session not found")

// AppSessionStore keeps signed-in members in Redis. Each member also has a
// set of live session ids so approval, role changes and rejection reach
// every browser they are signed in on.
type AppSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAppSessionStore(rdb *redis.Client, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl}
}

// AppSession is the member snapshot taken at sign-in.
type AppSession struct {
	ID        string            `json:"id"`
	UserID    string            `json:"uid"`
	Role      models.Role       `json:"role"`
	Status    models.UserStatus `json:"status"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"ua,omitempty"`
	IssuedAt  int64             `json:"iat"`
	ExpiresAt int64             `json:"exp"`
}

func sessKey(id string) string    { return fmt.Sprintf("lib:sess:%s", id) }
func memberKey(uid string) string { return fmt.Sprintf("lib:member_sessions:%s", uid) }

// Create stores a session for u under id.
func (s *AppSessionStore) Create(ctx context.Context, id string, u *models.User, ip, ua string) error {
	now := time.Now()
	b, err := json.Marshal(AppSession{
		ID:        id,
		UserID:    u.ID,
		Role:      u.Role,
		Status:    u.Status,
		IP:        ip,
		UserAgent: ua,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessKey(id), b, s.ttl)
	pipe.SAdd(ctx, memberKey(u.ID), id)
	pipe.Expire(ctx, memberKey(u.ID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	b, err := s.rdb.Get(ctx, sessKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var as AppSession
	if err := json.Unmarshal(b, &as); err != nil {
		return nil, err
	}
	return &as, nil
}

func (s *AppSessionStore) Delete(ctx context.Context, id string) error {
	as, _ := s.Get(ctx, id) // 忽略失败
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessKey(id))
	if as != nil {
		pipe.SRem(ctx, memberKey(as.UserID), id)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ListForUser returns the member's live sessions, newest first. Ids whose
// session already expired are dropped from the member set.
func (s *AppSessionStore) ListForUser(ctx context.Context, userID string) ([]AppSession, error) {
	ids, err := s.rdb.SMembers(ctx, memberKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]AppSession, 0, len(ids))
	var stale []any
	for _, id := range ids {
		as, err := s.Get(ctx, id)
		if errors.Is(err, ErrNoSession) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *as)
	}
	if len(stale) > 0 {
		_ = s.rdb.SRem(ctx, memberKey(userID), stale...).Err()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt > out[j].IssuedAt })
	return out, nil
}

// SetMemberState rewrites role and status on every live session of the
// member, keeping each session's remaining lifetime.
func (s *AppSessionStore) SetMemberState(ctx context.Context, userID string, role models.Role, status models.UserStatus) error {
	live, err := s.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(live) == 0 {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	for _, as := range live {
		as.Role, as.Status = role, status
		b, err := json.Marshal(as)
		if err != nil {
			return err
		}
		pipe.SetArgs(ctx, sessKey(as.ID), b, redis.SetArgs{KeepTTL: true, Mode: "XX"})
	}
	_, err = pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		// a session expired between the read and the write
		return nil
	}
	return err
}

// RevokeAllForUser signs the member out everywhere (rejection, deletion).
func (s *AppSessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := s.rdb.SMembers(ctx, memberKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, sessKey(sid))
	}
	pipe.Del(ctx, memberKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
