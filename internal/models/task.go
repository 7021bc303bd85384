package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus 下载任务状态
type TaskStatus string

const (
	TaskStatusPending     TaskStatus = "pending"     // 待执行
	TaskStatusDownloading TaskStatus = "downloading" // 下载中
	TaskStatusCompleted   TaskStatus = "completed"   // 已完成
	TaskStatusFailed      TaskStatus = "failed"      // 失败
)

// IsTerminal 是否为终态(completed/failed)
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// LessonContext 课时上下文,对下载核心不透明,仅用于路径和记录
type LessonContext struct {
	CourseName  string `json:"course_name"`  // 课程名称
	SessionNum  int    `json:"session_num"`  // 课时序号
	SessionName string `json:"session_name"` // 课时名称
}

// IsZero 是否未提供课时信息
func (lc LessonContext) IsZero() bool {
	return lc.CourseName == "" && lc.SessionNum == 0 && lc.SessionName == ""
}

// DownloadTask 下载任务
// 状态机: pending -> downloading -> {completed | failed},终态不可再变。
// downloading期间由唯一一个worker持有,完成后所有权交还管理器。
type DownloadTask struct {
	// 标识
	TaskID string `json:"task_id"` // 任务唯一ID

	// 任务内容
	Resource       *ResourceDescriptor `json:"resource"`        // 资源描述符
	Lesson         LessonContext       `json:"lesson"`          // 课时上下文
	DestinationDir string              `json:"destination_dir"` // 目标根目录

	// 执行状态
	Status       TaskStatus `json:"status"`                  // 当前状态
	Progress     float64    `json:"progress"`                // 下载进度 [0,1]
	StartTime    *time.Time `json:"start_time,omitempty"`    // 开始时间
	EndTime      *time.Time `json:"end_time,omitempty"`      // 结束时间
	ErrorMessage string     `json:"error_message,omitempty"` // 最后一次失败原因
	FilePath     string     `json:"file_path,omitempty"`     // 落盘路径(完成后有效)
}

// NewDownloadTask 创建下载任务
// 任务ID由毫秒时间戳+随机后缀组成,同名资源也能保证唯一
func NewDownloadTask(resource *ResourceDescriptor, lesson LessonContext, destinationDir string) (*DownloadTask, error) {
	if resource == nil {
		return nil, fmt.Errorf("资源描述符不能为空")
	}
	if err := resource.ResourceType.Validate(); err != nil {
		return nil, err
	}
	if err := resource.DownloadMethod.Validate(); err != nil {
		return nil, err
	}

	return &DownloadTask{
		TaskID:         generateTaskID(),
		Resource:       resource,
		Lesson:         lesson,
		DestinationDir: destinationDir,
		Status:         TaskStatusPending,
	}, nil
}

// generateTaskID 生成任务ID: task_<毫秒时间戳>_<uuid前8位>
func generateTaskID() string {
	return fmt.Sprintf("task_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// MarkDownloading 进入下载中状态
// 重试时允许从downloading再次进入downloading(同一任务的新一次尝试)
func (t *DownloadTask) MarkDownloading() error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("任务 %s 已处于终态 %s,不能再次执行", t.TaskID, t.Status)
	}
	if t.StartTime == nil {
		now := time.Now()
		t.StartTime = &now
	}
	t.Status = TaskStatusDownloading
	return nil
}

// MarkCompleted 标记完成,记录落盘路径
func (t *DownloadTask) MarkCompleted(filePath string) error {
	if t.Status != TaskStatusDownloading {
		return fmt.Errorf("任务 %s 状态为 %s,不能标记完成", t.TaskID, t.Status)
	}
	now := time.Now()
	t.EndTime = &now
	t.Status = TaskStatusCompleted
	t.Progress = 1.0
	t.FilePath = filePath
	return nil
}

// MarkFailed 标记失败,保留最后一次尝试的错误信息
func (t *DownloadTask) MarkFailed(errMsg string) error {
	if t.Status != TaskStatusDownloading {
		return fmt.Errorf("任务 %s 状态为 %s,不能标记失败", t.TaskID, t.Status)
	}
	now := time.Now()
	t.EndTime = &now
	t.Status = TaskStatusFailed
	t.ErrorMessage = errMsg
	return nil
}

// Duration 任务耗时(秒),未结束返回0
func (t *DownloadTask) Duration() float64 {
	if t.StartTime == nil || t.EndTime == nil {
		return 0
	}
	return t.EndTime.Sub(*t.StartTime).Seconds()
}

// TaskStats 下载统计快照
// 不变式: Completed + Failed + InProgress + Pending == Total
type TaskStats struct {
	Total       int     `json:"total"`        // 总任务数
	Completed   int     `json:"completed"`    // 成功数
	Failed      int     `json:"failed"`       // 失败数
	InProgress  int     `json:"in_progress"`  // 下载中数
	Pending     int     `json:"pending"`      // 待执行数
	SuccessRate float64 `json:"success_rate"` // 成功率(百分比)
}

// DownloadConfig 下载编排配置
type DownloadConfig struct {
	Workers         int           `json:"workers"`          // 并发worker数 (默认:3)
	MaxRetries      int           `json:"max_retries"`      // 单任务最大尝试次数 (默认:3)
	DownloadTimeout time.Duration `json:"download_timeout"` // 单次下载尝试超时 (默认:300s)
	BackoffBase     time.Duration `json:"backoff_base"`     // 退避基准,第i次失败后等待 BackoffBase<<i (默认:1s)
	ClickWait       time.Duration `json:"click_wait"`       // 点击后UI稳定等待 (默认:700ms)
}

// Validate 校验下载配置
func (c *DownloadConfig) Validate() error {
	if c.Workers < 1 || c.Workers > 16 {
		return fmt.Errorf("并发worker数必须在1-16之间")
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("最大尝试次数必须在1-10之间")
	}
	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("下载超时必须大于0")
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("退避基准必须大于0")
	}
	return nil
}

// DefaultDownloadConfig 默认下载配置
func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		Workers:         3,
		MaxRetries:      3,
		DownloadTimeout: 300 * time.Second,
		BackoffBase:     time.Second,
		ClickWait:       700 * time.Millisecond,
	}
}
