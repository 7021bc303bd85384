package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/RecoveryAshes/TabResFetch/internal/browser"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
)

func TestFetcher_FetchToFile(t *testing.T) {
	content := []byte("%PDF-1.4 这是测试用的PDF内容")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	defer server.Close()

	fetcher := NewFetcher(10*time.Second, nil, nil)
	destPath := filepath.Join(t.TempDir(), "讲义.pdf")

	var lastWritten int64
	result, err := fetcher.FetchToFile(context.Background(), server.URL, destPath, func(written, total int64) {
		lastWritten = written
	})
	if err != nil {
		t.Fatalf("下载失败: %v", err)
	}

	if result.Size != int64(len(content)) {
		t.Errorf("期望大小 %d, 实际 %d", len(content), result.Size)
	}
	sum := sha256.Sum256(content)
	if result.Hash != hex.EncodeToString(sum[:]) {
		t.Errorf("哈希不匹配: %s", result.Hash)
	}
	if lastWritten != int64(len(content)) {
		t.Errorf("进度回调最终值应等于总大小, 实际 %d", lastWritten)
	}

	data, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("读取落盘文件失败: %v", err)
	}
	if string(data) != string(content) {
		t.Error("落盘内容与服务端不一致")
	}
	if _, err := os.Stat(destPath + ".part"); !os.IsNotExist(err) {
		t.Error("临时文件应在完成后清理")
	}
}

func TestFetcher_BrotliResponse(t *testing.T) {
	content := []byte("brotli压缩的PDF字节流内容,需要解包后落盘")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write(content)
		_ = bw.Close()
	}))
	defer server.Close()

	fetcher := NewFetcher(10*time.Second, nil, nil)
	destPath := filepath.Join(t.TempDir(), "讲义.pdf")

	result, err := fetcher.FetchToFile(context.Background(), server.URL, destPath, nil)
	if err != nil {
		t.Fatalf("下载失败: %v", err)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("解包后大小应为 %d, 实际 %d", len(content), result.Size)
	}

	data, _ := os.ReadFile(destPath)
	if string(data) != string(content) {
		t.Error("brotli解包后的内容不一致")
	}
}

func TestFetcher_ZeroByteDeleted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fetcher := NewFetcher(10*time.Second, nil, nil)
	destPath := filepath.Join(t.TempDir(), "空文件.pdf")

	_, err := fetcher.FetchToFile(context.Background(), server.URL, destPath, nil)
	if !errors.Is(err, models.ErrZeroByteArtifact) {
		t.Fatalf("期望ErrZeroByteArtifact, 实际 %v", err)
	}
	if _, statErr := os.Stat(destPath); !os.IsNotExist(statErr) {
		t.Error("零字节文件应被删除")
	}
	if _, statErr := os.Stat(destPath + ".part"); !os.IsNotExist(statErr) {
		t.Error("零字节临时文件应被删除")
	}
}

func TestFetcher_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(10*time.Second, nil, nil)
	destPath := filepath.Join(t.TempDir(), "讲义.pdf")

	_, err := fetcher.FetchToFile(context.Background(), server.URL, destPath, nil)
	var httpErr *models.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("期望HTTPError, 实际 %v", err)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("期望404, 实际 %d", httpErr.StatusCode)
	}
}

func TestFetcher_SendsHeadersAndCookies(t *testing.T) {
	var gotReferer, gotCookie string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		if ck, err := r.Cookie("session_id"); err == nil {
			gotCookie = ck.Value
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("Referer", "https://manage.shengtongedu.cn/")
	cookies := []browser.Cookie{{Name: "session_id", Value: "abc123"}}

	fetcher := NewFetcher(10*time.Second, headers, cookies)
	destPath := filepath.Join(t.TempDir(), "讲义.pdf")

	if _, err := fetcher.FetchToFile(context.Background(), server.URL, destPath, nil); err != nil {
		t.Fatalf("下载失败: %v", err)
	}
	if gotReferer != "https://manage.shengtongedu.cn/" {
		t.Errorf("Referer未携带, 实际 %q", gotReferer)
	}
	if gotCookie != "abc123" {
		t.Errorf("会话Cookie未携带, 实际 %q", gotCookie)
	}
}

func TestFetcher_SetCookiesRefreshesSession(t *testing.T) {
	// 旧会话返回401,换新Cookie后放行
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("session_id")
		if err != nil || ck.Value != "fresh" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher := NewFetcher(10*time.Second, nil, []browser.Cookie{{Name: "session_id", Value: "stale"}})
	destPath := filepath.Join(t.TempDir(), "讲义.pdf")

	_, err := fetcher.FetchToFile(context.Background(), server.URL, destPath, nil)
	var httpErr *models.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("过期Cookie应返回401, 实际 %v", err)
	}

	fetcher.SetCookies([]browser.Cookie{{Name: "session_id", Value: "fresh"}})
	if _, err := fetcher.FetchToFile(context.Background(), server.URL, destPath, nil); err != nil {
		t.Fatalf("刷新Cookie后下载应成功: %v", err)
	}
}
