package download

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/RecoveryAshes/TabResFetch/internal/browser"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// FetchResult HTTP直连下载结果
type FetchResult struct {
	Size int64  // 落盘字节数
	Hash string // 内容SHA-256(hex)
	Path string // 落盘路径
}

// ProgressFunc 下载进度回调,total未知时为-1
type ProgressFunc func(written, total int64)

// Fetcher 带会话认证的HTTP下载器
// 复用浏览器会话的Cookie访问受保护的资源直链,
// 下载流式落盘并同步计算哈希,不在内存中缓存整个文件
type Fetcher struct {
	client   *http.Client
	headers  http.Header
	redactor *utils.HeaderRedactor

	mu      sync.RWMutex // 保护cookies,下载过程中可能被刷新
	cookies []browser.Cookie
}

// NewFetcher 创建HTTP下载器
// headers为每次请求附带的基础请求头,cookies来自浏览器会话
func NewFetcher(timeout time.Duration, headers http.Header, cookies []browser.Cookie) *Fetcher {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	if headers == nil {
		headers = http.Header{}
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		headers:  headers,
		cookies:  cookies,
		redactor: utils.NewHeaderRedactor(),
	}
}

// SetCookies 更新会话Cookie
// 下载中途遇到401/403时由管理器调用,换上浏览器会话里的新Cookie
func (f *Fetcher) SetCookies(cookies []browser.Cookie) {
	f.mu.Lock()
	f.cookies = cookies
	f.mu.Unlock()
}

// sessionCookies 取当前会话Cookie的快照
func (f *Fetcher) sessionCookies() []browser.Cookie {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cookies
}

// FetchToFile 下载URL内容到destPath
// 写入先落到临时文件,成功后原子改名到目标路径;
// 零字节产物视为失败,文件删除并返回ErrZeroByteArtifact
func (f *Fetcher) FetchToFile(ctx context.Context, rawURL, destPath string, progress ProgressFunc) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构造下载请求失败: %w", err)
	}
	for name, values := range f.headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	cookies := f.sessionCookies()
	for _, ck := range cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	utils.Debugf("HTTP下载 %s headers=%s cookies=%d",
		rawURL, f.redactor.RedactToString(req.Header), len(cookies))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("下载请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &models.HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}

	if err := utils.EnsureDir(filepath.Dir(destPath)); err != nil {
		return nil, err
	}

	tmpPath := destPath + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("创建临时文件失败: %w", err)
	}

	hasher := sha256.New()
	written, copyErr := copyWithProgress(out, io.TeeReader(body, hasher), resp.ContentLength, progress)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("写入文件失败: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("关闭文件失败: %w", closeErr)
	}
	if written == 0 {
		os.Remove(tmpPath)
		return nil, models.ErrZeroByteArtifact
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("移动文件到目标路径失败: %w", err)
	}

	return &FetchResult{
		Size: written,
		Hash: hex.EncodeToString(hasher.Sum(nil)),
		Path: destPath,
	}, nil
}

// decodeBody 按Content-Encoding解包响应体
// 手动设置了Accept-Encoding之后net/http不再自动解压,这里自己处理
func decodeBody(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("解压gzip响应失败: %w", err)
		}
		return gz, nil
	default:
		return resp.Body, nil
	}
}

// copyWithProgress 分块拷贝并回调进度
func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, 64*1024)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
