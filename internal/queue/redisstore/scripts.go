package redisstore

import "github.com/redis/go-redis/v9"

// Scripts return integers or arrays only; a Lua false reply would surface
// as redis.Nil.

// enqueueScript inserts an item unless its identity key is taken.
//
// KEYS[1] identity, KEYS[2] index, KEYS[3] pending, KEYS[4] item
// ARGV[1] identity field, ARGV[2] id, ARGV[3] score, ARGV[4..] item field/value pairs
//
// Returns 1 when inserted, 0 when already queued.
var enqueueScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[2])
redis.call('HSET', KEYS[4], unpack(ARGV, 4))
return 1
`)

// claimScript pops up to limit pending ids, highest score first, and marks
// them claimed.
//
// KEYS[1] pending, KEYS[2] claimed
// ARGV[1] item key prefix, ARGV[2] worker, ARGV[3] now, ARGV[4] limit,
// ARGV[5] number of issue codes n, ARGV[6..5+n] issue codes, then one token per slot
//
// Item hashes are addressed as ARGV[1]..id rather than through KEYS; they
// share the hash-tagged prefix of KEYS[1] and so its cluster slot.
//
// Returns one flat HGETALL reply per claimed item, read after marking, so
// callers never see a claim that was overwritten in between.
var claimScript = redis.NewScript(`
local limit = tonumber(ARGV[4])
local ncodes = tonumber(ARGV[5])
local tokenBase = 5 + ncodes
local ids = {}
if ncodes == 0 then
  local popped = redis.call('ZPOPMAX', KEYS[1], limit)
  for i = 1, #popped, 2 do
    ids[#ids + 1] = popped[i]
  end
else
  local codes = {}
  for i = 1, ncodes do
    codes[ARGV[5 + i]] = true
  end
  local start = 0
  local page = 100
  while #ids < limit do
    local chunk = redis.call('ZREVRANGE', KEYS[1], start, start + page - 1)
    if #chunk == 0 then
      break
    end
    for _, id in ipairs(chunk) do
      local code = redis.call('HGET', ARGV[1] .. id, 'issue_code')
      if code and codes[code] then
        ids[#ids + 1] = id
        if #ids >= limit then
          break
        end
      end
    end
    start = start + page
  end
  for _, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
  end
end
for i, id in ipairs(ids) do
  redis.call('HSET', ARGV[1] .. id,
    'status', 'claimed',
    'worker', ARGV[2],
    'claimed_at', ARGV[3],
    'token', ARGV[tokenBase + i],
    'updated_at', ARGV[3])
  redis.call('HSET', KEYS[2], id, ARGV[2])
end
local claimed = {}
for _, id in ipairs(ids) do
  claimed[#claimed + 1] = redis.call('HGETALL', ARGV[1] .. id)
end
return claimed
`)

// completeScript stores a result on the claimed item.
//
// KEYS[1] item, KEYS[2] claimed, KEYS[3] completed, KEYS[4] identity
// ARGV[1] worker, ARGV[2] token, ARGV[3] status, ARGV[4] result JSON, ARGV[5] now, ARGV[6] id
//
// Returns 1 on success, 0 for a stale claim, -1 when the item is missing.
var completeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local f = redis.call('HMGET', KEYS[1], 'status', 'worker', 'token', 'identity')
if f[1] ~= 'claimed' or f[2] ~= ARGV[1] or f[3] ~= ARGV[2] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[3], 'result', ARGV[4], 'updated_at', ARGV[5])
redis.call('HDEL', KEYS[1], 'worker', 'claimed_at', 'token')
redis.call('HDEL', KEYS[2], ARGV[6])
redis.call('HSET', KEYS[3], ARGV[6], ARGV[4])
if f[4] and redis.call('HGET', KEYS[4], f[4]) == ARGV[6] then
  redis.call('HDEL', KEYS[4], f[4])
end
return 1
`)

// failScript applies a retry decision computed by the caller.
//
// KEYS[1] item, KEYS[2] claimed, KEYS[3] pending, KEYS[4] failed, KEYS[5] identity
// ARGV[1] token, ARGV[2] status, ARGV[3] retry count, ARGV[4] priority,
// ARGV[5] last error, ARGV[6] result JSON, ARGV[7] now, ARGV[8] id, ARGV[9] pending score
//
// Returns 1 on success, 0 for a stale claim, -1 when the item is missing.
var failScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local f = redis.call('HMGET', KEYS[1], 'status', 'token', 'identity')
if f[1] ~= 'claimed' or f[2] ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1],
  'status', ARGV[2],
  'retry_count', ARGV[3],
  'priority', ARGV[4],
  'last_error', ARGV[5],
  'updated_at', ARGV[7])
redis.call('HDEL', KEYS[1], 'worker', 'claimed_at', 'token')
redis.call('HDEL', KEYS[2], ARGV[8])
if ARGV[2] == 'pending' then
  redis.call('ZADD', KEYS[3], ARGV[9], ARGV[8])
else
  redis.call('HSET', KEYS[1], 'result', ARGV[6])
  redis.call('HSET', KEYS[4], ARGV[8], ARGV[6])
  if f[3] and redis.call('HGET', KEYS[5], f[3]) == ARGV[8] then
    redis.call('HDEL', KEYS[5], f[3])
  end
end
return 1
`)

// retryScript moves a failed item back to pending unless a newer item holds
// its identity key.
//
// KEYS[1] item, KEYS[2] failed, KEYS[3] pending, KEYS[4] identity
// ARGV[1] id, ARGV[2] now, ARGV[3] pending score
//
// Returns 1 when reset, 0 otherwise.
var retryScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'status', 'identity')
if f[1] ~= 'failed' or not f[2] then
  return 0
end
if redis.call('HEXISTS', KEYS[4], f[2]) == 1 then
  return 0
end
redis.call('HSET', KEYS[4], f[2], ARGV[1])
redis.call('HSET', KEYS[1], 'status', 'pending', 'retry_count', '0', 'updated_at', ARGV[2])
redis.call('HDEL', KEYS[1], 'last_error', 'result')
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// pruneScript deletes a terminal item last updated before the cutoff.
//
// KEYS[1] item, KEYS[2] index, KEYS[3] completed, KEYS[4] failed
// ARGV[1] id, ARGV[2] cutoff micros
//
// Returns 1 when deleted, 0 otherwise.
var pruneScript = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'status', 'updated_at')
if f[1] ~= 'completed' and f[1] ~= 'skipped' and f[1] ~= 'failed' then
  return 0
end
if not f[2] or tonumber(f[2]) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('HDEL', KEYS[4], ARGV[1])
return 1
`)
