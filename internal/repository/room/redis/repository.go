package redis

import (
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
	retention      time.Duration
	setPlayback    *redis.Script
	appendMessage  *redis.Script
}

func NewRepo(rc *redis.Client, expireDuration, retention time.Duration) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
		retention:      retention,
		setPlayback:    redis.NewScript(setPlaybackLua),
		appendMessage:  redis.NewScript(appendMessageLua),
	}
}

func (r repo) getRoomKey(roomID string) string {
	return "room:" + roomID
}

func (r repo) getPlaybackKey(roomID string) string {
	return "room:" + roomID + ":playback"
}

func (r repo) getHostTokenKey(roomID string) string {
	return "room:" + roomID + ":host_token"
}

func (r repo) getMessagesKey(roomID string) string {
	return "room:" + roomID + ":messages"
}

func (r repo) getMessageIDsKey(roomID string) string {
	return "room:" + roomID + ":message_ids"
}

func (r repo) getLastTimestampKey(roomID string) string {
	return "room:" + roomID + ":last_ts"
}

func (r repo) getPresenceKey(roomID string) string {
	return "room:" + roomID + ":presence"
}

// setPlaybackLua assigns the next version and stores the descriptor in one
// atomic step, which is what keeps the version strictly increasing under
// concurrent writers.
const setPlaybackLua = `
local version = redis.call('HINCRBY', KEYS[1], 'version', 1)
redis.call('HSET', KEYS[1], 'url', ARGV[1], 'updated_at', ARGV[2])
return version
`

// appendMessageLua ingests a message once per id. The ingestion timestamp is
// max(last+1, now) so successive timestamps are strictly increasing per room
// even when the wall clock ties or steps back. Entries older than the
// retention window are trimmed on every ingest.
//
// KEYS: messages zset, ids set, last-ts key. ARGV: id, payload, now, retention.
// Returns the assigned timestamp, or 0 if the id was already seen.
const appendMessageLua = `
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
	return 0
end

local ts = tonumber(ARGV[3])
local last = tonumber(redis.call('GET', KEYS[3]) or '0')
if ts <= last then
	ts = last + 1
end

redis.call('SET', KEYS[3], ts)
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[1], ts, ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. (ts - tonumber(ARGV[4])))

return ts
`
