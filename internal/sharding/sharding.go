package sharding

import (
	"fmt"
	"hash/crc32"
)

// ShardCount is the fixed number of partitions for relayed updates.
const ShardCount = 256

// ShardID calculates the deterministic shard for a username.
func ShardID(username string) int {
	checksum := crc32.ChecksumIEEE([]byte(username))
	return int(checksum % ShardCount)
}

// UpdateSubject returns the NATS subject a user's task updates are relayed
// on. Format: hooks.update.{shard_id}.user.{username}
func UpdateSubject(username string) string {
	return fmt.Sprintf("hooks.update.%d.user.%s", ShardID(username), username)
}
