package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

func roomKey(roomId int) string {
	return fmt.Sprintf("room:%d", roomId)
}

func permsKey(roomId int) string {
	return fmt.Sprintf("perms:%d", roomId)
}

func channelKey(guildId, channelId string) string {
	return fmt.Sprintf("chan:%s:%s", guildId, channelId)
}

func banKey(guildId string) string {
	return fmt.Sprintf("ban:%s", guildId)
}

func rateKey(roomId int, userId string) string {
	return fmt.Sprintf("rate:%d:%s", roomId, userId)
}

func dupKey(roomId int, userId string) string {
	return fmt.Sprintf("dup:%d:%s", roomId, userId)
}

func noticeKey(userId, kind string) string {
	return fmt.Sprintf("notice:%s:%s", userId, kind)
}

func reqRateKey(userId string) string {
	return fmt.Sprintf("reqrate:%s", userId)
}

func sessionKey(tokenHash string) string {
	return fmt.Sprintf("session:%s", tokenHash)
}

const liveStatsKey = "live_stats"

// HashToken derives the session key component from a bearer token so
// raw tokens never land in the cache.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:16])
}
