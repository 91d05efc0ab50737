package dht

import (
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-veilcore/pkg/types"
)

const lockStripes = 64

// stripedLocks 按记录键分片的互斥锁
type stripedLocks struct {
	locks [lockStripes]sync.Mutex
}

func (s *stripedLocks) of(key types.RecordKey) *sync.Mutex {
	h := murmur3.Sum32(append(key.Kind[:], key.Value[:]...))
	return &s.locks[h%lockStripes]
}

// lock 锁定记录并返回解锁函数
func (s *stripedLocks) lock(key types.RecordKey) func() {
	mu := s.of(key)
	mu.Lock()
	return mu.Unlock
}
