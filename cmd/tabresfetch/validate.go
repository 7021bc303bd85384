package main

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL 验证课程页面URL格式
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("URL解析失败: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持http/https协议, 当前: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL缺少主机名")
	}
	return nil
}

// ValidateFlags 验证命令行标志
func ValidateFlags(pageURL string, workers, maxRetries, timeoutSeconds, sessionNum int) error {
	if pageURL != "" {
		if err := ValidateURL(pageURL); err != nil {
			return fmt.Errorf("无效的课程页面URL: %w", err)
		}
	}

	if workers < 1 || workers > 16 {
		return fmt.Errorf("并发worker数必须在1-16之间,当前值: %d", workers)
	}

	if maxRetries < 1 || maxRetries > 10 {
		return fmt.Errorf("最大尝试次数必须在1-10之间,当前值: %d", maxRetries)
	}

	if timeoutSeconds < 1 || timeoutSeconds > 3600 {
		return fmt.Errorf("下载超时必须在1-3600秒之间,当前值: %d", timeoutSeconds)
	}

	if sessionNum < 0 || sessionNum > 999 {
		return fmt.Errorf("课时序号必须在0-999之间,当前值: %d", sessionNum)
	}

	return nil
}

// NormalizeURL 规范化URL,缺少协议时默认https
func NormalizeURL(urlStr string) (string, error) {
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}
