// Package history 保存演示服务的标注结果与对话记录
package history

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/getcharzp/go-som/pipeline"
)

// DefaultCapacity 默认保留的最近标注数
const DefaultCapacity = 64

// Run 一次标注及其后续对话
type Run struct {
	ID        string
	Source    image.Image // 原图, 高亮时在其上重绘
	Result    *pipeline.Result
	Reply     string // 最近一次视觉问答的回复
	CreatedAt time.Time
}

// Runs 按会话保存最近一次标注, 超出容量时淘汰最早的会话
type Runs struct {
	mu       sync.Mutex
	capacity int
	runs     map[string]*Run
	order    []string
}

// NewRuns 创建容量为 capacity 的存储, capacity <= 0 时使用默认值
func NewRuns(capacity int) *Runs {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Runs{capacity: capacity, runs: make(map[string]*Run)}
}

// Put 保存会话的最新标注, 覆盖旧的标注
func (r *Runs) Put(session string, run *Run) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[session]; ok {
		r.remove(session)
	}
	r.runs[session] = run
	r.order = append(r.order, session)

	for len(r.order) > r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.runs, oldest)
	}
}

// Get 会话最新标注的副本, 之后的 SetReply 不会修改返回值
func (r *Runs) Get(session string) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[session]
	if !ok {
		return nil, false
	}
	cp := *run
	return &cp, true
}

// SetReply 记录会话最近一次视觉问答的回复
func (r *Runs) SetReply(session, reply string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[session]
	if ok {
		run.Reply = reply
	}
	return ok
}

// Len 当前保存的会话数
func (r *Runs) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func (r *Runs) remove(session string) {
	for i, s := range r.order {
		if s == session {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// NewRunID 生成随机的标注 ID
func NewRunID() string {
	return uuid.NewString()
}
