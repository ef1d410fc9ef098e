package download

import (
	"hash/fnv"
	"sync"
)

// keyedMutex serializes mutations that must appear atomic per post, such as
// the first image of a post flipping it to downloading. Striped so the lock
// table never grows with the number of posts.
type keyedMutex struct {
	shards [64]sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.shards[h.Sum32()%uint32(len(k.shards))]
	m.Lock()
	return m.Unlock
}
