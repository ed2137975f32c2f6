package sharding

import (
	"fmt"
	"strings"
	"testing"
)

func TestShardID_Range(t *testing.T) {
	for _, username := range []string{"alice", "bob", "charlie", ""} {
		shard := ShardID(username)
		if shard < 0 || shard >= ShardCount {
			t.Errorf("ShardID(%q) = %d, outside [0, %d)", username, shard, ShardCount)
		}
	}
}

func TestShardID_Stable(t *testing.T) {
	if ShardID("alice") != ShardID("alice") {
		t.Error("sharding is not deterministic")
	}
}

func TestUpdateSubject(t *testing.T) {
	subject := UpdateSubject("alice")
	want := fmt.Sprintf("hooks.update.%d.user.alice", ShardID("alice"))
	if subject != want {
		t.Errorf("UpdateSubject = %v, want %v", subject, want)
	}
	if !strings.HasPrefix(subject, "hooks.update.") {
		t.Errorf("subject %q is outside the UPDATES stream", subject)
	}
}

func TestDistribution(t *testing.T) {
	// Rough check to ensure we don't map everything to shard 0
	distribution := make(map[int]int)
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("user-%d", i)
		distribution[ShardID(key)]++
	}

	if len(distribution) < 100 {
		t.Errorf("sharding distribution is too poor. Only %d unique shards used for 1000 keys", len(distribution))
	}
}
