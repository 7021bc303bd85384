package models

import (
	"strings"
	"testing"
	"time"
)

func newTestDescriptor(t *testing.T) *ResourceDescriptor {
	t.Helper()
	desc, err := NewResourceDescriptor(
		"第3课讲义.pdf", ".file_btn", nil,
		ResourcePDF, MethodDirect, "第3课讲义.pdf",
		TabPath{"课前预习", "资料"},
	)
	if err != nil {
		t.Fatalf("创建资源描述符失败: %v", err)
	}
	return desc
}

func TestNewResourceDescriptor_Validation(t *testing.T) {
	tests := []struct {
		name        string
		rtype       ResourceType
		method      DownloadMethod
		expectError bool
	}{
		{"合法类型和方式", ResourcePDF, MethodDirect, false},
		{"未知类型合法", ResourceUnknown, MethodPreview, false},
		{"非法资源类型", ResourceType("exe"), MethodDirect, true},
		{"非法下载方式", ResourcePDF, DownloadMethod("torrent"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResourceDescriptor("x", ".btn", nil, tt.rtype, tt.method, "x", TabPath{"资源"})
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestResourceDescriptor_DedupKey(t *testing.T) {
	a := newTestDescriptor(t)
	b := newTestDescriptor(t)
	if a.DedupKey() != b.DedupKey() {
		t.Error("相同内容的描述符去重键应一致")
	}

	c := newTestDescriptor(t)
	c.TabPath = TabPath{"课中", "资料"}
	if a.DedupKey() == c.DedupKey() {
		t.Error("不同Tab路径的同名资源应视为不同资源")
	}
}

func TestTabPath_Join(t *testing.T) {
	tests := []struct {
		name string
		path TabPath
		want string
	}{
		{"两级路径", TabPath{"课前预习", "视频"}, "课前预习 > 视频"},
		{"单级路径", TabPath{"课程资源"}, "课程资源"},
		{"空路径", TabPath{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.path.Join(); got != tt.want {
				t.Errorf("期望 %q, 实际 %q", tt.want, got)
			}
		})
	}
}

func TestTabPath_Clone(t *testing.T) {
	original := TabPath{"课前", "资料"}
	cloned := original.Clone()
	cloned[0] = "改动"
	if original[0] != "课前" {
		t.Error("Clone后修改副本不应影响原路径")
	}
}

func TestDownloadTask_StateMachine(t *testing.T) {
	t.Run("正常完成流程", func(t *testing.T) {
		task, err := NewDownloadTask(newTestDescriptor(t), LessonContext{}, "downloads")
		if err != nil {
			t.Fatalf("创建任务失败: %v", err)
		}
		if task.Status != TaskStatusPending {
			t.Errorf("新任务状态应为pending, 实际 %s", task.Status)
		}

		if err := task.MarkDownloading(); err != nil {
			t.Fatalf("pending->downloading失败: %v", err)
		}
		if err := task.MarkCompleted("/tmp/a.pdf"); err != nil {
			t.Fatalf("downloading->completed失败: %v", err)
		}
		if task.Progress != 1.0 {
			t.Errorf("完成后进度应为1.0, 实际 %f", task.Progress)
		}
		if task.FilePath != "/tmp/a.pdf" {
			t.Errorf("完成后应记录落盘路径, 实际 %q", task.FilePath)
		}
	})

	t.Run("重试允许downloading重入", func(t *testing.T) {
		task, _ := NewDownloadTask(newTestDescriptor(t), LessonContext{}, "downloads")
		_ = task.MarkDownloading()
		if err := task.MarkDownloading(); err != nil {
			t.Errorf("重试时downloading->downloading应被允许: %v", err)
		}
	})

	t.Run("终态不可再变", func(t *testing.T) {
		task, _ := NewDownloadTask(newTestDescriptor(t), LessonContext{}, "downloads")
		_ = task.MarkDownloading()
		_ = task.MarkFailed("网络超时")

		if err := task.MarkDownloading(); err == nil {
			t.Error("failed终态不应允许再次执行")
		}
		if err := task.MarkCompleted("/tmp/a.pdf"); err == nil {
			t.Error("failed终态不应允许标记完成")
		}
		if task.ErrorMessage != "网络超时" {
			t.Errorf("失败原因应保留, 实际 %q", task.ErrorMessage)
		}
	})

	t.Run("pending不能直接完成", func(t *testing.T) {
		task, _ := NewDownloadTask(newTestDescriptor(t), LessonContext{}, "downloads")
		if err := task.MarkCompleted("/tmp/a.pdf"); err == nil {
			t.Error("pending->completed应被拒绝")
		}
	})
}

func TestDownloadTask_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		task, err := NewDownloadTask(newTestDescriptor(t), LessonContext{}, "downloads")
		if err != nil {
			t.Fatalf("创建任务失败: %v", err)
		}
		if seen[task.TaskID] {
			t.Fatalf("任务ID重复: %s", task.TaskID)
		}
		seen[task.TaskID] = true
		if !strings.HasPrefix(task.TaskID, "task_") {
			t.Errorf("任务ID格式异常: %s", task.TaskID)
		}
	}
}

func TestDownloadConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*DownloadConfig)
		expectError bool
	}{
		{"默认配置合法", func(c *DownloadConfig) {}, false},
		{"worker数为0", func(c *DownloadConfig) { c.Workers = 0 }, true},
		{"worker数超上限", func(c *DownloadConfig) { c.Workers = 17 }, true},
		{"重试次数为0", func(c *DownloadConfig) { c.MaxRetries = 0 }, true},
		{"超时为负", func(c *DownloadConfig) { c.DownloadTimeout = -time.Second }, true},
		{"退避基准为0", func(c *DownloadConfig) { c.BackoffBase = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultDownloadConfig()
			tt.mutate(&config)
			err := config.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestCliHeaders_Parse(t *testing.T) {
	tests := []struct {
		name        string
		headers     []string
		expectError bool
		checkName   string
		checkValue  string
	}{
		{"单个头部", []string{"User-Agent: MyBot/1.0"}, false, "User-Agent", "MyBot/1.0"},
		{"值包含冒号", []string{"Referer: https://example.com/a"}, false, "Referer", "https://example.com/a"},
		{"缺少冒号", []string{"BadHeader"}, true, "", ""},
		{"空名称", []string{": value"}, true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := CliHeaders(tt.headers).Parse()
			if (err != nil) != tt.expectError {
				t.Fatalf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
			if err == nil && parsed.Get(tt.checkName) != tt.checkValue {
				t.Errorf("期望 %s=%q, 实际 %q", tt.checkName, tt.checkValue, parsed.Get(tt.checkName))
			}
		})
	}
}

func TestLessonContext_IsZero(t *testing.T) {
	if !(LessonContext{}).IsZero() {
		t.Error("空课时上下文应为零值")
	}
	if (LessonContext{CourseName: "图形化编程"}).IsZero() {
		t.Error("有课程名的上下文不应为零值")
	}
}
