package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"auxpass/internal/status"
	"auxpass/models"

	"github.com/redis/go-redis/v9"
)

var _ StateStore = (*RedisStore)(nil)

const stationsKey = "aux:stations"

// compareAndSetScript writes the record only when the stored version still
// matches ARGV[1]. A missing record counts as version 0, as in MemoryStore.Put.
//
// Versions are only ever written by Put via strconv.FormatInt, so both sides
// of the comparison are canonical base-10 strings and string equality is
// numeric equality.
//
// KEYS[1] state hash, KEYS[2] station index set
// ARGV[1] expected version, ARGV[2] encoded state, ARGV[3] new version, ARGV[4] station id
const compareAndSetScript = `
local current = redis.call('HGET', KEYS[1], 'version')
if not current then
	current = '0'
end
if current ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'version', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[4])
return 1
`

type RedisStore struct {
	Redis *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{Redis: redisClient}
}

func stateKey(stationID string) string {
	return fmt.Sprintf("aux:state:%s", stationID)
}

func (s *RedisStore) Get(ctx context.Context, stationID string) (*models.AuxState, int64, error) {
	vals, err := s.Redis.HMGet(ctx, stateKey(stationID), "data", "version").Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis hmget %s: %w", stationID, err)
	}

	if len(vals) != 2 || vals[0] == nil {
		return nil, 0, nil
	}

	data, ok := vals[0].(string)
	if !ok {
		return nil, 0, fmt.Errorf("station %s: unexpected data type %T", stationID, vals[0])
	}

	var version int64
	if raw, ok := vals[1].(string); ok {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("station %s: parse version: %w", stationID, err)
		}
	}

	var state models.AuxState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, 0, fmt.Errorf("station %s: decode state: %w", stationID, err)
	}
	state.Version = version
	if state.Queue == nil {
		state.Queue = []models.QueueEntry{}
	}

	return &state, version, nil
}

func (s *RedisStore) Put(ctx context.Context, state *models.AuxState, expectedVersion int64) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("station %s: encode state: %w", state.StationID, err)
	}

	res, err := s.Redis.Eval(ctx, compareAndSetScript,
		[]string{stateKey(state.StationID), stationsKey},
		strconv.FormatInt(expectedVersion, 10),
		string(data),
		strconv.FormatInt(state.Version, 10),
		state.StationID,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis eval cas %s: %w", state.StationID, err)
	}

	if res == 0 {
		return status.ErrVersionConflict
	}
	return nil
}

func (s *RedisStore) Stations(ctx context.Context) ([]string, error) {
	ids, err := s.Redis.SMembers(ctx, stationsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", stationsKey, err)
	}
	return ids, nil
}
