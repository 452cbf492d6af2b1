// Package slot maps keys to Redis Cluster hash slots.
//
// go-redis routes by the same function but keeps it internal; batch planning
// needs it up front to group keys before any command is built.
package slot

import "strings"

// Count is the number of hash slots in a Redis Cluster.
const Count = 16384

var table [256]uint16

func init() {
	// CRC16/XMODEM, poly 0x1021, init 0
	for i := range table {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
}

func crc16(s string) uint16 {
	var crc uint16
	for i := 0; i < len(s); i++ {
		crc = crc<<8 ^ table[byte(crc>>8)^s[i]]
	}
	return crc
}

// Tag returns the part of key the cluster hashes: the content of the first
// {...} section when it is non-empty, otherwise the whole key.
func Tag(key string) string {
	if s := strings.IndexByte(key, '{'); s >= 0 {
		if e := strings.IndexByte(key[s+1:], '}'); e > 0 {
			return key[s+1 : s+1+e]
		}
	}
	return key
}

// Of returns the hash slot owning key.
func Of(key string) int {
	return int(crc16(Tag(key)) % Count)
}
