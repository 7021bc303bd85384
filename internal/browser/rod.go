package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// stableWindow DOM稳定判定窗口
const stableWindow = 300 * time.Millisecond

// RodOptions 浏览器控制器创建参数
type RodOptions struct {
	// ControlURL 非空时接管已运行的浏览器实例(保留登录态),为空时自行启动
	ControlURL string

	// Headless 自行启动时是否无头模式
	Headless bool

	// DownloadDir 浏览器原生下载的落盘目录
	DownloadDir string

	// LocateTimeout 单元素定位的有界等待时长
	LocateTimeout time.Duration
}

// RodController 基于go-rod的Controller实现
type RodController struct {
	browser       *rod.Browser
	page          *rod.Page
	launcher      *launcher.Launcher
	downloadDir   string
	locateTimeout time.Duration
	ownsBrowser   bool
}

// NewRodController 创建浏览器控制器并定位到目标页面
// controlURL非空时接管外部浏览器(此时假定用户已登录并停留在课程页面)
func NewRodController(opts RodOptions) (*RodController, error) {
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = 5 * time.Second
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = filepath.Join(os.TempDir(), "tabresfetch_downloads")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建下载临时目录失败: %w", err)
	}

	c := &RodController{
		downloadDir:   opts.DownloadDir,
		locateTimeout: opts.LocateTimeout,
	}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(opts.Headless).
			Set("ignore-certificate-errors")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("启动浏览器失败: %w", err)
		}
		c.launcher = l
		c.ownsBrowser = true
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if c.launcher != nil {
			c.launcher.Cleanup()
		}
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	c.browser = browser

	utils.Infof("浏览器已连接: control_url=%s headless=%v", controlURL, opts.Headless)
	return c, nil
}

// OpenPage 导航到目标页面;url为空时复用浏览器当前激活的页面
func (c *RodController) OpenPage(url string) error {
	if url == "" {
		pages, err := c.browser.Pages()
		if err != nil {
			return fmt.Errorf("获取浏览器页面列表失败: %w", err)
		}
		if len(pages) == 0 {
			return fmt.Errorf("浏览器没有可接管的页面")
		}
		c.page = pages[0]
		return nil
	}

	page, err := c.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return fmt.Errorf("打开页面失败: %w", err)
	}
	c.page = page
	return c.WaitSettle(30 * time.Second)
}

// Element 定位单个元素,超时返回ElementNotFoundError
func (c *RodController) Element(selector string) (ElementHandle, error) {
	el, err := c.page.Timeout(c.locateTimeout).Element(selector)
	if err != nil {
		return nil, &models.ElementNotFoundError{Selector: selector}
	}
	return &rodElement{el: el, locateTimeout: c.locateTimeout}, nil
}

// Elements 定位所有当前匹配的元素,不做等待
func (c *RodController) Elements(selector string) ([]ElementHandle, error) {
	els, err := c.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("查询元素失败 %q: %w", selector, err)
	}
	handles := make([]ElementHandle, 0, len(els))
	for _, el := range els {
		handles = append(handles, &rodElement{el: el, locateTimeout: c.locateTimeout})
	}
	return handles, nil
}

// Has 检查页面是否存在匹配元素
func (c *RodController) Has(selector string) (bool, error) {
	has, _, err := c.page.Has(selector)
	if err != nil {
		return false, fmt.Errorf("检查元素存在性失败 %q: %w", selector, err)
	}
	return has, nil
}

// WaitSettle 等待页面加载并DOM稳定
func (c *RodController) WaitSettle(timeout time.Duration) error {
	page := c.page.Timeout(timeout)
	if err := page.WaitLoad(); err != nil {
		return &models.NavigationTimeoutError{Operation: "等待页面加载", Cause: err}
	}
	if err := page.WaitStable(stableWindow); err != nil {
		return &models.NavigationTimeoutError{Operation: "等待DOM稳定", Cause: err}
	}
	return nil
}

// ExpectDownload 触发并等待浏览器原生下载完成
func (c *RodController) ExpectDownload(timeout time.Duration, trigger func() error) (*DownloadArtifact, error) {
	wait := c.browser.WaitDownload(c.downloadDir)

	if err := trigger(); err != nil {
		return nil, fmt.Errorf("触发下载失败: %w", err)
	}

	done := make(chan *proto.PageDownloadWillBegin, 1)
	go func() { done <- wait() }()

	select {
	case info := <-done:
		if info == nil {
			return nil, fmt.Errorf("下载事件异常结束")
		}
		path := filepath.Join(c.downloadDir, info.GUID)
		stat, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("下载文件未落盘 %s: %w", path, err)
		}
		return &DownloadArtifact{Path: path, Size: stat.Size()}, nil
	case <-time.After(timeout):
		return nil, &models.NavigationTimeoutError{Operation: "等待浏览器下载完成"}
	}
}

// ExpectPopup 触发并等待新标签页打开
func (c *RodController) ExpectPopup(timeout time.Duration, trigger func() error) (PopupPage, error) {
	wait := c.page.WaitOpen()

	if err := trigger(); err != nil {
		return nil, fmt.Errorf("触发弹窗失败: %w", err)
	}

	type openResult struct {
		page *rod.Page
		err  error
	}
	done := make(chan openResult, 1)
	go func() {
		p, err := wait()
		done <- openResult{page: p, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("等待弹窗打开失败: %w", res.err)
		}
		return &rodPopup{page: res.page}, nil
	case <-time.After(timeout):
		return nil, &models.NavigationTimeoutError{Operation: "等待预览弹窗打开"}
	}
}

// Cookies 获取当前会话全部Cookie
func (c *RodController) Cookies() ([]Cookie, error) {
	raw, err := c.page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("获取Cookie失败: %w", err)
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, ck := range raw {
		cookies = append(cookies, Cookie{
			Name:   ck.Name,
			Value:  ck.Value,
			Domain: ck.Domain,
			Path:   ck.Path,
		})
	}
	return cookies, nil
}

// CurrentURL 当前页面URL
func (c *RodController) CurrentURL() (string, error) {
	info, err := c.page.Info()
	if err != nil {
		return "", fmt.Errorf("获取页面信息失败: %w", err)
	}
	return info.URL, nil
}

// Close 关闭浏览器会话
// 接管的外部浏览器只断开连接,不关闭用户的浏览器进程
func (c *RodController) Close() error {
	if c.ownsBrowser {
		if err := c.browser.Close(); err != nil {
			return fmt.Errorf("关闭浏览器失败: %w", err)
		}
		if c.launcher != nil {
			c.launcher.Cleanup()
		}
		return nil
	}
	return c.browser.Close()
}

// rodElement ElementHandle的rod实现
type rodElement struct {
	el            *rod.Element
	locateTimeout time.Duration
}

func (e *rodElement) Text() (string, error) {
	text, err := e.el.Text()
	if err != nil {
		return "", fmt.Errorf("获取元素文本失败: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *rodElement) Attribute(name string) (string, error) {
	val, err := e.el.Attribute(name)
	if err != nil {
		return "", fmt.Errorf("获取元素属性失败 %q: %w", name, err)
	}
	if val == nil {
		return "", nil
	}
	return *val, nil
}

func (e *rodElement) Click() error {
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("点击元素失败: %w", err)
	}
	return nil
}

func (e *rodElement) Child(selector string) (ElementHandle, error) {
	child, err := e.el.Timeout(e.locateTimeout).Element(selector)
	if err != nil {
		return nil, &models.ElementNotFoundError{Selector: selector}
	}
	return &rodElement{el: child, locateTimeout: e.locateTimeout}, nil
}

func (e *rodElement) Children(selector string) ([]ElementHandle, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("查询后代元素失败 %q: %w", selector, err)
	}
	handles := make([]ElementHandle, 0, len(els))
	for _, el := range els {
		handles = append(handles, &rodElement{el: el, locateTimeout: e.locateTimeout})
	}
	return handles, nil
}

func (e *rodElement) Parent() (ElementHandle, error) {
	parent, err := e.el.Parent()
	if err != nil {
		return nil, fmt.Errorf("获取父元素失败: %w", err)
	}
	return &rodElement{el: parent, locateTimeout: e.locateTimeout}, nil
}

func (e *rodElement) Previous() (ElementHandle, error) {
	prev, err := e.el.Previous()
	if err != nil {
		return nil, fmt.Errorf("获取前一个兄弟元素失败: %w", err)
	}
	return &rodElement{el: prev, locateTimeout: e.locateTimeout}, nil
}

// rodPopup PopupPage的rod实现
type rodPopup struct {
	page *rod.Page
}

func (p *rodPopup) URL() (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", fmt.Errorf("获取弹窗页面信息失败: %w", err)
	}
	return info.URL, nil
}

func (p *rodPopup) HTML() (string, error) {
	html, err := p.page.HTML()
	if err != nil {
		return "", fmt.Errorf("获取弹窗HTML失败: %w", err)
	}
	return html, nil
}

func (p *rodPopup) WaitSettle(timeout time.Duration) error {
	page := p.page.Timeout(timeout)
	if err := page.WaitLoad(); err != nil {
		return &models.NavigationTimeoutError{Operation: "等待弹窗加载", Cause: err}
	}
	if err := page.WaitStable(stableWindow); err != nil {
		return &models.NavigationTimeoutError{Operation: "等待弹窗DOM稳定", Cause: err}
	}
	return nil
}

func (p *rodPopup) Close() error {
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("关闭弹窗失败: %w", err)
	}
	return nil
}
