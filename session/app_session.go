package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"escrim/models"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession 会话不存在或已过期
var ErrNoSession = errors.New("session not found")

type AppSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAppSessionStore(rdb *redis.Client, ttl time.Duration) *AppSessionStore {
	return &AppSessionStore{rdb: rdb, ttl: ttl}
}

// AppSession 登录后的身份，每个请求由中间件解析一次
type AppSession struct {
	UserID     string      `json:"uid"`
	Identifier string      `json:"idf"`
	Role       models.Role `json:"role"`
	IssuedAt   int64       `json:"iat"`
	ExpiresAt  int64       `json:"exp"`
}

func key(id string) string           { return fmt.Sprintf("escrim:sess:%s", id) }
func personSetKey(uid string) string { return fmt.Sprintf("escrim:person_sessions:%s", uid) }

func (s *AppSessionStore) TTL() time.Duration { return s.ttl }

func (s *AppSessionStore) Create(ctx context.Context, id string, p *models.Person) error {
	now := time.Now()
	b, err := json.Marshal(AppSession{
		UserID:     p.ID,
		Identifier: p.Identifier,
		Role:       p.Role,
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(id), b, s.ttl)
	pipe.SAdd(ctx, personSetKey(p.ID), id)
	pipe.Expire(ctx, personSetKey(p.ID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *AppSessionStore) Get(ctx context.Context, id string) (*AppSession, error) {
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
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
	pipe.Del(ctx, key(id))
	if as != nil {
		pipe.SRem(ctx, personSetKey(as.UserID), id)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// RevokeAllForPerson 改密码后让该用户所有已登录的会话失效
func (s *AppSessionStore) RevokeAllForPerson(ctx context.Context, personID string) error {
	ids, err := s.rdb.SMembers(ctx, personSetKey(personID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	for _, sid := range ids {
		pipe.Del(ctx, key(sid))
	}
	pipe.Del(ctx, personSetKey(personID))
	_, err = pipe.Exec(ctx)
	return err
}
