package chat

import (
	"hash/fnv"
	"sync"
)

type fanoutJob struct {
	conns   []*Client
	payload []byte
}

// Fanout delivers one payload to many connections on a small worker
// pool. Jobs are sharded by key, so all broadcasts for one room land on
// the same worker and room order is preserved; different rooms spread
// across workers and may interleave freely.
type Fanout struct {
	shards   []chan fanoutJob
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewFanout(workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1024
	}
	f := &Fanout{shards: make([]chan fanoutJob, workers)}
	for i := range f.shards {
		ch := make(chan fanoutJob, queue)
		f.shards[i] = ch
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			for job := range ch {
				for _, c := range job.conns {
					c.Enqueue(job.payload)
				}
			}
		}()
	}
	return f
}

// Broadcast queues the payload for every connection. Key selects the
// shard; use one key per room or per user.
func (f *Fanout) Broadcast(key string, conns []*Client, payload []byte) {
	if len(conns) == 0 || len(payload) == 0 {
		return
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	f.shards[h.Sum32()%uint32(len(f.shards))] <- fanoutJob{conns: conns, payload: payload}
}

func (f *Fanout) Close() {
	f.stopOnce.Do(func() {
		for _, ch := range f.shards {
			close(ch)
		}
	})
	f.wg.Wait()
}
