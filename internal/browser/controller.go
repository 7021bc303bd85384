package browser

import (
	"time"
)

// Cookie 浏览器会话Cookie
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// DownloadArtifact 浏览器原生下载产物
type DownloadArtifact struct {
	Path string // 临时落盘路径
	Size int64  // 文件大小(字节)
}

// ElementHandle 页面元素句柄
// 抽象元素级操作,下载策略和资源检测都通过它访问页面元素
type ElementHandle interface {
	// Text 获取元素内文本(已trim)
	Text() (string, error)

	// Attribute 获取属性值,属性不存在返回空字符串
	Attribute(name string) (string, error)

	// Click 点击元素
	Click() error

	// Child 查找第一个匹配的后代元素
	Child(selector string) (ElementHandle, error)

	// Children 查找所有匹配的后代元素
	Children(selector string) ([]ElementHandle, error)

	// Parent 获取父元素
	Parent() (ElementHandle, error)

	// Previous 获取前一个兄弟元素
	Previous() (ElementHandle, error)
}

// PopupPage 预览弹窗(新标签页)句柄
type PopupPage interface {
	// URL 弹窗当前URL
	URL() (string, error)

	// HTML 弹窗页面HTML内容
	HTML() (string, error)

	// WaitSettle 等待弹窗页面加载稳定
	WaitSettle(timeout time.Duration) error

	// Close 关闭弹窗
	Close() error
}

// Controller 浏览器会话控制器
// 登录、页面导航等流程在外部完成,本接口只暴露资源发现与下载所需的会话操作。
// 整个进程共享一个浏览器会话(Cookie和活动Tab是全局状态),
// 多worker并发时UI触达段必须由调用方串行化。
type Controller interface {
	// Element 定位单个元素(有界等待),找不到返回ElementNotFoundError
	Element(selector string) (ElementHandle, error)

	// Elements 定位所有当前匹配的元素,不等待
	Elements(selector string) ([]ElementHandle, error)

	// Has 检查页面当前是否存在匹配元素
	Has(selector string) (bool, error)

	// WaitSettle 等待页面加载完成且DOM稳定
	WaitSettle(timeout time.Duration) error

	// ExpectDownload 执行trigger(通常是点击下载按钮)并等待浏览器下载完成
	ExpectDownload(timeout time.Duration, trigger func() error) (*DownloadArtifact, error)

	// ExpectPopup 执行trigger(通常是点击预览按钮)并等待新标签页打开
	ExpectPopup(timeout time.Duration, trigger func() error) (PopupPage, error)

	// Cookies 获取当前会话的全部Cookie,用于HTTP直连下载认证
	Cookies() ([]Cookie, error)

	// CurrentURL 当前页面URL
	CurrentURL() (string, error)
}
