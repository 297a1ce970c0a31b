package xpmem

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashKey 把任意应用 key 映射为定宽存储 key。
// SHA-256 的抗碰撞性保证两个不同的应用 key 不会被当作同一个。
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// hashBlob 计算编码后值的内容哈希，历史模式用于相同内容去重。
// 去重判断要求抗碰撞：哈希碰撞会导致不同的值被静默跳过。
func hashBlob(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
