package redisstore

import (
	"strconv"
	"strings"
)

// DefaultKeyPrefix is the hash-tagged prefix used when none is configured.
const DefaultKeyPrefix = "{lintfix}"

// Keys holds the Redis keys used by one queue.
type Keys struct {
	Prefix     string
	Pending    string
	Claimed    string
	Completed  string
	Failed     string
	Heartbeats string
	Identity   string
	Index      string
	Seq        string
	ItemPrefix string
}

// KeysForPrefix derives every key from a common prefix. A prefix without a
// hash tag is wrapped in braces: the scripts touch item hashes they do not
// declare in KEYS, which Redis Cluster only tolerates within one slot.
func KeysForPrefix(prefix string) Keys {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	prefix = hashTagged(prefix)
	return Keys{
		Prefix:     prefix,
		Pending:    prefix + ":pending",
		Claimed:    prefix + ":claimed",
		Completed:  prefix + ":completed",
		Failed:     prefix + ":failed",
		Heartbeats: prefix + ":heartbeats",
		Identity:   prefix + ":identity",
		Index:      prefix + ":index",
		Seq:        prefix + ":seq",
		ItemPrefix: prefix + ":item:",
	}
}

// hashTagged reports prefix unchanged when it already has a non-empty
// {tag}, following the Redis Cluster rule of first '{' to next '}'.
func hashTagged(prefix string) string {
	if open := strings.IndexByte(prefix, '{'); open >= 0 {
		if end := strings.IndexByte(prefix[open+1:], '}'); end > 0 {
			return prefix
		}
	}
	return "{" + prefix + "}"
}

// Item returns the hash key of one item.
func (k Keys) Item(id string) string {
	return k.ItemPrefix + id
}

const seqSpan = 1e9

// pendingScore orders by priority first and enqueue sequence second.
func pendingScore(priority int, seq int64) string {
	score := float64(priority)*seqSpan - float64(seq%int64(seqSpan))
	return strconv.FormatFloat(score, 'f', -1, 64)
}
