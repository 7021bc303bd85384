package models

import (
	"errors"
	"fmt"
)

// 下载与遍历过程中的错误类型定义
// 单次尝试的失败记录在任务上并驱动重试,不会抛出worker循环
var (
	// ErrZeroByteArtifact 下载产物大小为0,文件已删除
	ErrZeroByteArtifact = errors.New("下载的文件大小为0")

	// ErrLinkNotFound 无法从预览页面提取真实下载链接
	ErrLinkNotFound = errors.New("无法从预览页面提取下载链接")

	// ErrPageStructureLost 核心页面结构丢失,遍历必须立即终止
	ErrPageStructureLost = errors.New("核心页面结构丢失,终止Tab遍历")

	// ErrNoSelector 任务缺少有效的元素选择器
	ErrNoSelector = errors.New("没有有效的元素选择器")

	// ErrQueueClosed 任务队列已关闭
	ErrQueueClosed = errors.New("任务队列已关闭")
)

// ElementNotFoundError 页面元素未找到
type ElementNotFoundError struct {
	Selector string // 查找用的选择器
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("找不到元素: %s", e.Selector)
}

// NavigationTimeoutError UI事件等待超时(下载事件、弹窗、网络空闲)
type NavigationTimeoutError struct {
	Operation string // 等待的操作
	Cause     error
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("UI操作超时 [%s]: %v", e.Operation, e.Cause)
}

func (e *NavigationTimeoutError) Unwrap() error {
	return e.Cause
}

// UnsupportedMethodError 不支持的下载方式
type UnsupportedMethodError struct {
	Method DownloadMethod
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("预览下载方式 %q 暂未实现", string(e.Method))
}

// HTTPError HTTP请求返回非2xx状态码
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP错误: %d (%s)", e.StatusCode, e.URL)
}

// WorkerFaultError worker循环内逃逸的异常(panic恢复)
// 与任务级失败不同,记录日志后worker短暂休眠并继续运行
type WorkerFaultError struct {
	WorkerID int
	Cause    any
}

func (e *WorkerFaultError) Error() string {
	return fmt.Sprintf("worker %d 异常: %v", e.WorkerID, e.Cause)
}
