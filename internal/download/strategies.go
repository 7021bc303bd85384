package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/TabResFetch/internal/browser"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// textSelectorPrefix 文本定位选择器前缀(元素没有可用class时生成)
const textSelectorPrefix = "text="

// triggerElementSelector 文本定位时扫描的候选触发元素
const triggerElementSelector = "button, a, span.file_btn"

// executeResult 单次下载尝试的产物
type executeResult struct {
	path string
	size int64
	hash string
}

// executeTask 按下载方式分发执行一次下载尝试
func (m *Manager) executeTask(ctx context.Context, task *models.DownloadTask) (*executeResult, error) {
	switch task.Resource.DownloadMethod {
	case models.MethodDirect:
		return m.downloadDirect(ctx, task)
	case models.MethodPreviewPDF:
		return m.downloadPreviewPDF(ctx, task)
	case models.MethodPreviewVideo, models.MethodPreviewPPT, models.MethodPreviewSB3:
		return nil, &models.UnsupportedMethodError{Method: task.Resource.DownloadMethod}
	case models.MethodPreview, models.MethodUnknown:
		return m.downloadFallback(ctx, task)
	default:
		return nil, fmt.Errorf("未识别的下载方式: %s", task.Resource.DownloadMethod)
	}
}

// downloadFallback 通用预览/未知方式的兜底分发
// 按钮文本带下载语义时走原生下载,带预览语义且资源是PDF时走预览解析
func (m *Manager) downloadFallback(ctx context.Context, task *models.DownloadTask) (*executeResult, error) {
	text := task.Resource.ElementText
	if strings.Contains(text, "下载") {
		return m.downloadDirect(ctx, task)
	}
	if (strings.Contains(text, "预览") || strings.Contains(text, "查看")) &&
		task.Resource.ResourceType == models.ResourcePDF {
		return m.downloadPreviewPDF(ctx, task)
	}
	return nil, fmt.Errorf("无法识别的触发按钮: %q", text)
}

// downloadDirect 浏览器原生下载
// 点击下载按钮并等待浏览器下载事件完成,产物从临时目录移动到解析路径。
// 从点击到下载完成期间持有UI锁,避免并发任务互相抢占活动Tab
func (m *Manager) downloadDirect(ctx context.Context, task *models.DownloadTask) (*executeResult, error) {
	m.uiMu.Lock()
	defer m.uiMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.ensureTabContext(task.Resource.TabPath); err != nil {
		return nil, err
	}

	el, err := m.resolveElement(task.Resource)
	if err != nil {
		return nil, err
	}

	artifact, err := m.ctrl.ExpectDownload(m.config.DownloadTimeout, func() error {
		return el.Click()
	})
	if err != nil {
		return nil, err
	}
	if artifact.Size == 0 {
		os.Remove(artifact.Path)
		return nil, models.ErrZeroByteArtifact
	}

	destPath := m.resolver.Resolve(task)
	if err := moveArtifact(artifact.Path, destPath); err != nil {
		return nil, err
	}
	hash, err := hashFile(destPath)
	if err != nil {
		return nil, err
	}
	return &executeResult{path: destPath, size: artifact.Size, hash: hash}, nil
}

// downloadPreviewPDF PDF预览解析下载
// 点击预览打开弹窗,从弹窗URL(或HTML)提取真实PDF地址并关闭弹窗,
// 然后带会话Cookie走HTTP直连流式下载。HTTP阶段不占UI锁
func (m *Manager) downloadPreviewPDF(ctx context.Context, task *models.DownloadTask) (*executeResult, error) {
	pdfURL, err := m.resolvePDFURL(ctx, task)
	if err != nil {
		return nil, err
	}

	destPath := m.resolver.Resolve(task)
	result, err := m.fetcher.FetchToFile(ctx, pdfURL, destPath, func(written, total int64) {
		if total > 0 {
			m.updateProgress(task, float64(written)/float64(total))
		}
	})
	if err != nil {
		return nil, err
	}
	return &executeResult{path: result.Path, size: result.Size, hash: result.Hash}, nil
}

// resolvePDFURL 通过预览弹窗获取真实PDF地址,UI触达段整体持锁
func (m *Manager) resolvePDFURL(ctx context.Context, task *models.DownloadTask) (string, error) {
	m.uiMu.Lock()
	defer m.uiMu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := m.ensureTabContext(task.Resource.TabPath); err != nil {
		return "", err
	}

	el, err := m.resolveElement(task.Resource)
	if err != nil {
		return "", err
	}

	popup, err := m.ctrl.ExpectPopup(m.config.DownloadTimeout, func() error {
		return el.Click()
	})
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := popup.Close(); closeErr != nil {
			utils.Debugf("关闭预览弹窗失败: %v", closeErr)
		}
	}()

	if err := popup.WaitSettle(m.config.DownloadTimeout); err != nil {
		utils.Debugf("预览弹窗未完全稳定,继续尝试提取: %v", err)
	}

	popupURL, err := popup.URL()
	if err != nil {
		return "", err
	}
	if pdfURL, err := ExtractPDFURL(popupURL); err == nil {
		return pdfURL, nil
	}

	// URL里没有,再翻弹窗页面内容
	content, err := popup.HTML()
	if err != nil {
		return "", models.ErrLinkNotFound
	}
	return ExtractPDFURLFromHTML(content)
}

// resolveElement 按描述符的选择器重新定位触发元素
// "text="前缀的选择器没有class可用,退化为扫描候选按钮按文本精确匹配
func (m *Manager) resolveElement(resource *models.ResourceDescriptor) (browser.ElementHandle, error) {
	selector := resource.Selector
	if selector == "" {
		return nil, models.ErrNoSelector
	}

	if text, ok := strings.CutPrefix(selector, textSelectorPrefix); ok {
		els, err := m.ctrl.Elements(triggerElementSelector)
		if err != nil {
			return nil, err
		}
		for _, el := range els {
			elText, err := el.Text()
			if err != nil {
				continue
			}
			if elText == text {
				return el, nil
			}
		}
		return nil, &models.ElementNotFoundError{Selector: selector}
	}

	return m.ctrl.Element(selector)
}

// ensureTabContext 下载前把页面切回资源所在的Tab
// 资源检测和下载执行之间隔着队列,活动Tab早已漂移
func (m *Manager) ensureTabContext(tabPath models.TabPath) error {
	selectors := []string{
		".el-tabs__header.is-top .el-tabs__item",
		".el-tabs--left .el-tabs__item, .el-tabs--card .el-tabs__item",
	}

	for level, name := range tabPath {
		if level >= len(selectors) {
			break
		}
		if err := m.activateNamedTab(selectors[level], name); err != nil {
			return fmt.Errorf("切换到Tab %q 失败: %w", name, err)
		}
	}
	return nil
}

// activateNamedTab 在候选Tab里找到指定名称并激活
func (m *Manager) activateNamedTab(selector, name string) error {
	tabs, err := m.ctrl.Elements(selector)
	if err != nil {
		return err
	}
	for _, tab := range tabs {
		text, err := tab.Text()
		if err != nil || text != name {
			continue
		}
		if class, _ := tab.Attribute("class"); strings.Contains(class, "is-active") {
			return nil
		}
		if err := tab.Click(); err != nil {
			return err
		}
		if err := m.ctrl.WaitSettle(10 * time.Second); err != nil {
			return err
		}
		time.Sleep(m.config.ClickWait)
		return nil
	}
	return &models.ElementNotFoundError{Selector: fmt.Sprintf("%s (text=%s)", selector, name)}
}

// moveArtifact 把下载产物移动到目标路径,跨设备时退化为拷贝
func moveArtifact(src, dst string) error {
	if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("打开下载产物失败: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("创建目标文件失败: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("拷贝下载产物失败: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("关闭目标文件失败: %w", err)
	}
	return os.Remove(src)
}

// hashFile 计算文件内容的SHA-256
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开文件计算哈希失败: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("计算文件哈希失败: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
