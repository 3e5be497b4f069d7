package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const oauthStateVersionV1 = 1

var (
	ErrStateNotFound     = errors.New("oauth state not found")
	ErrStateExists       = errors.New("oauth state already exists")
	ErrStoreUnavailable  = errors.New("redis store unavailable")
	errStateFieldTooLong = errors.New("oauth state field too long")
)

// OAuthState is what the engine remembers between redirecting a user to a
// provider and receiving the callback.
type OAuthState struct {
	Provider  string
	Nonce     string
	Verifier  string
	CreatedAt int64
}

type OAuthStateStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewOAuthStateStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *OAuthStateStore {
	if prefix == "" {
		prefix = "authcore"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OAuthStateStore{redis: redisClient, prefix: prefix, ttl: ttl}
}

func (s *OAuthStateStore) key(state string) string {
	return s.prefix + ":oauth:" + state
}

// Save stores rec under state unless that state is already pending.
func (s *OAuthStateStore) Save(ctx context.Context, state string, rec *OAuthState) error {
	encoded, err := encodeOAuthState(rec)
	if err != nil {
		return err
	}
	ok, err := s.redis.SetNX(ctx, s.key(state), encoded, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return ErrStateExists
	}
	return nil
}

// Consume returns and deletes the record in one step.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	data, err := s.redis.GetDel(ctx, s.key(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return decodeOAuthState(data)
}

func encodeOAuthState(rec *OAuthState) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(oauthStateVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, rec.CreatedAt); err != nil {
		return nil, err
	}
	for _, field := range []string{rec.Provider, rec.Nonce, rec.Verifier} {
		if len(field) > 65535 {
			return nil, errStateFieldTooLong
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}
	return buf.Bytes(), nil
}

func decodeOAuthState(data []byte) (*OAuthState, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != oauthStateVersionV1 {
		return nil, errors.New("invalid oauth state version")
	}

	rec := &OAuthState{}
	if err := binary.Read(reader, binary.BigEndian, &rec.CreatedAt); err != nil {
		return nil, err
	}
	fields := []*string{&rec.Provider, &rec.Nonce, &rec.Verifier}
	for _, f := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(reader, b); err != nil {
			return nil, err
		}
		*f = string(b)
	}
	return rec, nil
}
