package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/epiworks/episeek/internal/model"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps cached predictions for a week. Predictor models change
// rarely; annotation records drift but a stale protein name is harmless.
const DefaultTTL = 7 * 24 * time.Hour

// Redis caches outcomes in a shared redis instance, so parallel pipelines
// against the same services share one budget of remote calls.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(addr string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func redisKey(service string, key model.Key) string {
	return "episeek:" + service + ":" + string(key)
}

// envelope is the wire form of a cached value. Tag picks the concrete type
// back out on the way in.
type envelope struct {
	Tag  string          `json:"tag"`
	Data json.RawMessage `json:"data"`
}

func (r *Redis) Get(ctx context.Context, service string, key model.Key) (model.Outcome, bool, error) {
	raw, err := r.rdb.Get(ctx, redisKey(service, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Outcome{}, false, nil
	}
	if err != nil {
		return model.Outcome{}, false, fmt.Errorf("cache get: %w", err)
	}

	v, err := decodeValue(raw)
	if err != nil {
		// a corrupt entry behaves like a miss, the caller re-fetches
		return model.Outcome{}, false, nil
	}
	return model.Success(v), true, nil
}

func (r *Redis) Put(ctx context.Context, service string, key model.Key, out model.Outcome) error {
	if !out.OK() {
		return fmt.Errorf("cache put: refusing to store a failure for %s/%s", service, key)
	}
	raw, err := encodeValue(out.Value)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	if err := r.rdb.Set(ctx, redisKey(service, key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func encodeValue(v model.Value) ([]byte, error) {
	var tag string
	switch v.(type) {
	case model.Affinity:
		tag = "affinity"
	case model.Immunogenicity:
		tag = "immunogenicity"
	case model.Annotation:
		tag = "annotation"
	case model.PhysChem:
		tag = "physchem"
	case model.Conservation:
		tag = "conservation"
	case model.RankScore:
		tag = "rank"
	default:
		return nil, fmt.Errorf("unknown value type %T", v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Tag: tag, Data: data})
}

func decodeValue(raw []byte) (model.Value, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	switch env.Tag {
	case "affinity":
		var v model.Affinity
		return unmarshalInto(env.Data, &v)
	case "immunogenicity":
		var v model.Immunogenicity
		return unmarshalInto(env.Data, &v)
	case "annotation":
		var v model.Annotation
		return unmarshalInto(env.Data, &v)
	case "physchem":
		var v model.PhysChem
		return unmarshalInto(env.Data, &v)
	case "conservation":
		var v model.Conservation
		return unmarshalInto(env.Data, &v)
	case "rank":
		var v model.RankScore
		return unmarshalInto(env.Data, &v)
	}
	return nil, fmt.Errorf("unknown cache tag %q", env.Tag)
}

func unmarshalInto[T model.Value](data []byte, v *T) (model.Value, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return *v, nil
}
