// Package redisstore keeps the access token in Redis so several client
// processes (for example CLI invocations on different hosts) share one session.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/sessions"
	"github.com/jrsteele09/deepsight-client/token"
	"github.com/redis/go-redis/v9"
)

var (
	_ sessions.Store       = (*Store)(nil)
	_ sessions.CookieStore = (*Store)(nil)
)

type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type Store struct {
	client     *redis.Client
	key        string
	cookiesKey string
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis connection failed: %v", errors.ErrStoreUnavailable, err)
	}

	return NewFromClient(client, opts.KeyPrefix), nil
}

func NewFromClient(client *redis.Client, keyPrefix string) *Store {
	key, cookiesKey := sessions.AccessTokenKey, sessions.CookiesKey
	if keyPrefix != "" {
		key = keyPrefix + ":" + key
		cookiesKey = keyPrefix + ":" + cookiesKey
	}
	return &Store{client: client, key: key, cookiesKey: cookiesKey}
}

func (s *Store) Load(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "[redisstore] get %s", s.key)
	}
	return v, nil
}

// Save stores the token with a TTL matching its remaining lifetime, so Redis
// drops it once the token could no longer be used.
func (s *Store) Save(ctx context.Context, accessToken string) error {
	if err := s.client.Set(ctx, s.key, accessToken, ttlFor(accessToken)).Err(); err != nil {
		return errors.Wrapf(err, "[redisstore] set %s", s.key)
	}
	return nil
}

func (s *Store) LoadCookies(ctx context.Context) ([]*http.Cookie, error) {
	v, err := s.client.Get(ctx, s.cookiesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[redisstore] get %s", s.cookiesKey)
	}

	var cookies []*http.Cookie
	if err := json.Unmarshal(v, &cookies); err != nil {
		return nil, errors.Wrapf(err, "[redisstore] decode %s", s.cookiesKey)
	}
	return cookies, nil
}

// SaveCookies stores the cookies without a TTL; the server decides when the
// session they carry ends.
func (s *Store) SaveCookies(ctx context.Context, cookies []*http.Cookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("[redisstore] encode cookies: %w", err)
	}
	if err := s.client.Set(ctx, s.cookiesKey, data, 0).Err(); err != nil {
		return errors.Wrapf(err, "[redisstore] set %s", s.cookiesKey)
	}
	return nil
}

// Clear removes the token and the cookies.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key, s.cookiesKey).Err(); err != nil {
		return errors.Wrapf(err, "[redisstore] del %s", s.key)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// minTTL is used for tokens that are already expired; a TTL of 0 would keep
// them forever.
const minTTL = time.Second

// ttlFor returns 0 (no expiry) for tokens without a readable exp, and at
// least minTTL otherwise.
func ttlFor(accessToken string) time.Duration {
	exp, err := token.ParseExpiry(accessToken)
	if err != nil {
		return 0
	}
	ttl := exp.Sub(token.NowTimeFunc())
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}
