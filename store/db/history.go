package db

import "time"

// DefaultHistorySize 查询记录环形缓冲容量
const DefaultHistorySize = 1000

// QueryRecord 单次查询的遥测记录
type QueryRecord struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"` // entity.action
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// history 固定容量的 FIFO 环形缓冲，不加锁，由 telemetry 保护
type history struct {
	buf   []QueryRecord
	start int
	size  int
}

func newHistory(capacity int) *history {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &history{buf: make([]QueryRecord, capacity)}
}

// push 追加记录，满时淘汰最旧的一条
func (h *history) push(r QueryRecord) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = r
		h.size++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) len() int {
	return h.size
}

// last 按时间顺序返回最近 n 条记录的副本
func (h *history) last(n int) []QueryRecord {
	if n <= 0 || h.size == 0 {
		return []QueryRecord{}
	}
	if n > h.size {
		n = h.size
	}

	out := make([]QueryRecord, n)
	offset := h.size - n
	for i := range n {
		out[i] = h.buf[(h.start+offset+i)%len(h.buf)]
	}
	return out
}
