package models

import (
	"time"
)

// RecordFileName 每个目标目录下的下载记录文件名
const RecordFileName = "下载记录.json"

// ReportFileName 汇总报告文件名
const ReportFileName = "下载报告.json"

// DownloadRecord 下载记录
// 每次成功或有记录价值的下载尝试写入一条,写入后永不修改
type DownloadRecord struct {
	Timestamp      time.Time      `json:"timestamp"`       // 记录时间
	TaskID         string         `json:"task_id"`         // 任务ID
	ResourceName   string         `json:"resource_name"`   // 资源名称(元素文本)
	ResourceType   ResourceType   `json:"resource_type"`   // 资源类型
	FileName       string         `json:"file_name"`       // 落盘文件名
	FileSize       int64          `json:"file_size"`       // 文件大小(字节)
	FileHash       string         `json:"file_hash"`       // 内容SHA-256哈希(hex)
	TabPath        string         `json:"tab_path"`        // Tab路径(已拼接)
	Status         TaskStatus     `json:"status"`          // 任务状态
	Lesson         LessonContext  `json:"lesson"`          // 课时上下文
	DownloadMethod DownloadMethod `json:"download_method"` // 下载方式
}

// TaskSummary 报告中单个任务的摘要
type TaskSummary struct {
	TaskID       string     `json:"task_id"`
	ResourceName string     `json:"resource_name"`
	ResourceType string     `json:"resource_type"`
	FileName     string     `json:"file_name"`
	TabPath      string     `json:"tab_path"`
	Status       TaskStatus `json:"status"`
	Progress     float64    `json:"progress"`
	FilePath     string     `json:"file_path,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Duration     float64    `json:"duration"` // 秒
}

// Summarize 生成任务摘要
func (t *DownloadTask) Summarize() TaskSummary {
	return TaskSummary{
		TaskID:       t.TaskID,
		ResourceName: t.Resource.ElementText,
		ResourceType: string(t.Resource.ResourceType),
		FileName:     t.Resource.FileName,
		TabPath:      t.Resource.TabPath.Join(),
		Status:       t.Status,
		Progress:     t.Progress,
		FilePath:     t.FilePath,
		ErrorMessage: t.ErrorMessage,
		Duration:     t.Duration(),
	}
}

// ReportSummary 报告汇总段
type ReportSummary struct {
	TotalFiles  int     `json:"total_files"`  // 成功文件数
	TotalSize   int64   `json:"total_size"`   // 成功文件总大小(字节)
	SuccessRate float64 `json:"success_rate"` // 成功率(百分比)
}

// DownloadReport 下载汇总报告
// 由当前已完成/失败任务集合按需生成,属于派生数据而非权威状态
type DownloadReport struct {
	GeneratedAt    time.Time     `json:"generated_at"`    // 生成时间
	Statistics     TaskStats     `json:"statistics"`      // 统计快照
	CompletedTasks []TaskSummary `json:"completed_tasks"` // 成功任务
	FailedTasks    []TaskSummary `json:"failed_tasks"`    // 失败任务
	Summary        ReportSummary `json:"summary"`         // 汇总段
}
