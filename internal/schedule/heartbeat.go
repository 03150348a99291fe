package schedule

import (
	"log"
	"sync"
	"time"
)

// HeartbeatTask logs a liveness line on a fixed interval. It doubles as the
// cheapest possible probe that the scheduler loop itself is still turning.
type HeartbeatTask struct {
	interval time.Duration
	mu       sync.Mutex
	next     time.Time
}

func NewHeartbeatTask(interval time.Duration) *HeartbeatTask {
	return &HeartbeatTask{
		interval: interval,
		next:     time.Now().Add(interval),
	}
}

func (h *HeartbeatTask) Name() string { return "HeartbeatTask" }

func (h *HeartbeatTask) NextTriggerTime() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next
}

func (h *HeartbeatTask) UpdateNextTriggerTime() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next = time.Now().Add(h.interval)
}

func (h *HeartbeatTask) Run() {
	log.Println("HeartbeatTask: alive")
}
