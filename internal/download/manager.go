package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/RecoveryAshes/TabResFetch/internal/browser"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// Manager 下载任务编排器
// 维护任务队列和worker池,对外提供入队、等待、统计和报告导出。
// UI触达段由uiMu全局串行化,HTTP流式下载不受此限制
type Manager struct {
	ctrl     browser.Controller
	queue    *TaskQueue
	resolver *PathResolver
	fetcher  *Fetcher
	recorder *Recorder
	guard    *WorkerGuard
	config   models.DownloadConfig
	baseDir  string
	lesson   models.LessonContext

	uiMu sync.Mutex // 串行化浏览器UI操作

	mu         sync.RWMutex // 保护tasks和计数器
	tasks      map[string]*models.DownloadTask
	order      []string // 任务入队顺序,报告按此输出
	completed  int
	failed     int
	inProgress int

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	workers int
}

// NewManager 创建下载编排器
// headers是HTTP直连下载的基础请求头,会话Cookie从浏览器控制器读取
func NewManager(ctrl browser.Controller, baseDir string, lesson models.LessonContext, config models.DownloadConfig, headers http.Header) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cookies, err := ctrl.Cookies()
	if err != nil {
		utils.Warnf("读取浏览器Cookie失败,HTTP直连下载可能无法通过认证: %v", err)
	}

	return &Manager{
		ctrl:     ctrl,
		queue:    NewTaskQueue(256),
		resolver: NewPathResolver(baseDir, lesson),
		fetcher:  NewFetcher(config.DownloadTimeout, headers, cookies),
		recorder: NewRecorder(),
		guard:    NewWorkerGuard(),
		config:   config,
		baseDir:  baseDir,
		lesson:   lesson,
		tasks:    make(map[string]*models.DownloadTask),
	}, nil
}

// Start 启动worker池,重复调用报错
// 实际worker数由资源守卫根据可用内存压定
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("下载管理器已经启动")
	}
	m.started = true

	workerCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.workers = m.guard.RecommendWorkers(m.config.Workers)
	m.guard.LogSnapshot()

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.workerLoop(workerCtx, i)
	}
	utils.Infof("下载管理器已启动: workers=%d max_retries=%d", m.workers, m.config.MaxRetries)
	return nil
}

// AddTask 由资源描述符创建任务并入队
func (m *Manager) AddTask(resource *models.ResourceDescriptor) (*models.DownloadTask, error) {
	task, err := models.NewDownloadTask(resource, m.lesson, m.baseDir)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.tasks[task.TaskID] = task
	m.order = append(m.order, task.TaskID)
	m.mu.Unlock()

	if err := m.queue.Enqueue(task); err != nil {
		m.mu.Lock()
		delete(m.tasks, task.TaskID)
		m.order = m.order[:len(m.order)-1]
		m.mu.Unlock()
		return nil, err
	}
	return task, nil
}

// AddBatch 批量入队,返回成功入队的任务数
func (m *Manager) AddBatch(resources []*models.ResourceDescriptor) int {
	added := 0
	for _, res := range resources {
		if _, err := m.AddTask(res); err != nil {
			utils.Warnf("任务入队失败 %q: %v", res.ElementText, err)
			continue
		}
		added++
	}
	utils.Infof("批量入队 %d/%d 个任务", added, len(resources))
	return added
}

// workerLoop worker主循环
// panic不杀死worker: 记录日志、短暂休眠后继续取下一个任务
func (m *Manager) workerLoop(ctx context.Context, workerID int) {
	defer m.wg.Done()
	utils.Debugf("worker %d 已启动", workerID)

	for {
		task, err := m.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, models.ErrQueueClosed) {
				utils.Debugf("worker %d 退出: 队列已关闭", workerID)
			} else {
				utils.Debugf("worker %d 退出: %v", workerID, err)
			}
			return
		}
		m.runTaskGuarded(ctx, workerID, task)
	}
}

// runTaskGuarded 带panic恢复地执行单个任务
func (m *Manager) runTaskGuarded(ctx context.Context, workerID int, task *models.DownloadTask) {
	defer func() {
		if r := recover(); r != nil {
			fault := &models.WorkerFaultError{WorkerID: workerID, Cause: r}
			utils.Errorf("%v", fault)
			m.finishTask(task, "", 0, "", fault.Error())
			time.Sleep(time.Second)
		}
	}()
	m.runTask(ctx, workerID, task)
}

// runTask 执行任务的重试循环
// 每次失败后指数退避,尝试次数耗尽才进入失败终态
func (m *Manager) runTask(ctx context.Context, workerID int, task *models.DownloadTask) {
	m.mu.Lock()
	m.inProgress++
	m.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < m.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		// 状态字段会被BuildReport/GetStats并发读取,变更必须持锁
		m.mu.Lock()
		err := task.MarkDownloading()
		m.mu.Unlock()
		if err != nil {
			lastErr = err
			break
		}

		result, err := m.executeTask(ctx, task)
		if err == nil {
			utils.Infof("worker %d 下载完成: %s -> %s", workerID, task.Resource.FileName, result.path)
			m.finishTask(task, result.path, result.size, result.hash, "")
			return
		}

		lastErr = err
		utils.Warnf("worker %d 任务 %s 第 %d/%d 次尝试失败: %v",
			workerID, task.TaskID, attempt+1, m.config.MaxRetries, err)

		// 401/403说明会话Cookie已失效,重试前从浏览器重新取一份
		var httpErr *models.HTTPError
		if errors.As(err, &httpErr) &&
			(httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
			if cookies, ckErr := m.ctrl.Cookies(); ckErr == nil {
				m.fetcher.SetCookies(cookies)
				utils.Infof("已从浏览器会话刷新 %d 个Cookie", len(cookies))
			} else {
				utils.Warnf("刷新会话Cookie失败: %v", ckErr)
			}
		}

		if attempt < m.config.MaxRetries-1 {
			backoff := m.config.BackoffBase << attempt
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = m.config.MaxRetries
			}
		}
	}

	errMsg := "未知错误"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	m.finishTask(task, "", 0, "", errMsg)
}

// finishTask 把任务落到终态,更新计数并写下载记录
func (m *Manager) finishTask(task *models.DownloadTask, path string, size int64, hash, errMsg string) {
	m.mu.Lock()
	if task.Status.IsTerminal() {
		m.mu.Unlock()
		return
	}
	// panic恢复路径上任务可能还停留在pending
	if task.Status == models.TaskStatusPending {
		_ = task.MarkDownloading()
	}

	if errMsg == "" {
		if err := task.MarkCompleted(path); err != nil {
			utils.Errorf("标记任务完成失败: %v", err)
		} else {
			m.completed++
		}
	} else {
		if err := task.MarkFailed(errMsg); err != nil {
			utils.Errorf("标记任务失败失败: %v", err)
		} else {
			m.failed++
		}
	}
	m.inProgress--
	m.mu.Unlock()

	record := models.DownloadRecord{
		Timestamp:      time.Now(),
		TaskID:         task.TaskID,
		ResourceName:   task.Resource.ElementText,
		ResourceType:   task.Resource.ResourceType,
		FileName:       task.Resource.FileName,
		FileSize:       size,
		FileHash:       hash,
		TabPath:        task.Resource.TabPath.Join(),
		Status:         task.Status,
		Lesson:         task.Lesson,
		DownloadMethod: task.Resource.DownloadMethod,
	}
	dir := m.resolver.ResolveDir(task.Resource)
	if err := m.recorder.Append(dir, record); err != nil {
		utils.Warnf("写入下载记录失败: %v", err)
	}
}

// updateProgress 更新任务进度(HTTP流式下载回调)
func (m *Manager) updateProgress(task *models.DownloadTask, progress float64) {
	m.mu.Lock()
	if !task.Status.IsTerminal() {
		task.Progress = progress
	}
	m.mu.Unlock()
}

// WaitForCompletion 阻塞等待全部已入队任务进入终态
// 带终端进度条,ctx取消时提前返回
func (m *Manager) WaitForCompletion(ctx context.Context) error {
	m.mu.RLock()
	total := len(m.tasks)
	m.mu.RUnlock()
	if total == 0 {
		return nil
	}

	bar := utils.NewProgressBar(total, "下载进度")
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := m.GetStats()
			_ = bar.Set(stats.Completed + stats.Failed)
			if stats.Completed+stats.Failed >= stats.Total {
				_ = bar.Finish()
				utils.Infof("全部任务完成: 成功 %d 失败 %d", stats.Completed, stats.Failed)
				return nil
			}
		}
	}
}

// Stop 停止下载管理器
// 关闭队列让worker取完退出,取消ctx打断进行中的等待,有界等待worker汇合
func (m *Manager) Stop(timeout time.Duration) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.queue.Close()
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		utils.Info("下载管理器已停止")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("等待worker退出超时(%s)", timeout)
	}
}

// GetStats 下载统计快照
// Pending按余量推导,保证各状态计数之和恒等于总数
func (m *Manager) GetStats() models.TaskStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := models.TaskStats{
		Total:      len(m.tasks),
		Completed:  m.completed,
		Failed:     m.failed,
		InProgress: m.inProgress,
	}
	stats.Pending = stats.Total - stats.Completed - stats.Failed - stats.InProgress
	finished := stats.Completed + stats.Failed
	if finished > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(finished) * 100
	}
	return stats
}

// BuildReport 由当前任务集合生成汇总报告
func (m *Manager) BuildReport() *models.DownloadReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report := &models.DownloadReport{
		GeneratedAt: time.Now(),
		Statistics: models.TaskStats{
			Total:      len(m.tasks),
			Completed:  m.completed,
			Failed:     m.failed,
			InProgress: m.inProgress,
		},
	}
	report.Statistics.Pending = report.Statistics.Total -
		report.Statistics.Completed - report.Statistics.Failed - report.Statistics.InProgress
	finished := report.Statistics.Completed + report.Statistics.Failed
	if finished > 0 {
		report.Statistics.SuccessRate = float64(report.Statistics.Completed) / float64(finished) * 100
	}

	var totalSize int64
	for _, id := range m.order {
		task := m.tasks[id]
		switch task.Status {
		case models.TaskStatusCompleted:
			report.CompletedTasks = append(report.CompletedTasks, task.Summarize())
			if info, err := fileSize(task.FilePath); err == nil {
				totalSize += info
			}
		case models.TaskStatusFailed:
			report.FailedTasks = append(report.FailedTasks, task.Summarize())
		}
	}

	report.Summary = models.ReportSummary{
		TotalFiles:  len(report.CompletedTasks),
		TotalSize:   totalSize,
		SuccessRate: report.Statistics.SuccessRate,
	}
	return report
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ExportReport 导出汇总报告到JSON文件
func (m *Manager) ExportReport(path string) error {
	report := m.BuildReport()
	if err := utils.SaveJSON(path, report); err != nil {
		return fmt.Errorf("导出下载报告失败: %w", err)
	}
	utils.Infof("下载报告已导出: %s", path)
	return nil
}
