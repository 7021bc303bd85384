package download

import (
	"context"
	"sync"

	"github.com/RecoveryAshes/TabResFetch/internal/models"
)

// TaskQueue 有界FIFO任务队列
// 基于带缓冲channel实现,出队顺序即入队顺序。
// Close之后不接受新任务,已排队的任务仍可被取完。
type TaskQueue struct {
	tasks  chan *models.DownloadTask
	mu     sync.Mutex
	closed bool
}

// NewTaskQueue 创建任务队列,capacity为缓冲上限
func NewTaskQueue(capacity int) *TaskQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &TaskQueue{
		tasks: make(chan *models.DownloadTask, capacity),
	}
}

// Enqueue 任务入队,队列已关闭时返回ErrQueueClosed
// 发送全程持锁,与Close互斥,并发关闭不会打到已关闭的channel上。
// 代价是队列满时Close也要等到腾出空位,worker在取就不会死锁
func (q *TaskQueue) Enqueue(task *models.DownloadTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return models.ErrQueueClosed
	}
	q.tasks <- task
	return nil
}

// Dequeue 取出队首任务
// 队列为空时阻塞,直到有新任务、队列关闭(ErrQueueClosed)或ctx取消
func (q *TaskQueue) Dequeue(ctx context.Context) (*models.DownloadTask, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return nil, models.ErrQueueClosed
		}
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close 关闭队列,幂等
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.tasks)
}

// Len 当前排队中的任务数
func (q *TaskQueue) Len() int {
	return len(q.tasks)
}
