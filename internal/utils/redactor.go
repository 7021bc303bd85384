package utils

import (
	"net/http"
	"strings"
)

var (
	// SensitiveKeywords 敏感头部/Cookie名称关键字 (用于脱敏)
	SensitiveKeywords = []string{
		"authorization",
		"token",
		"key",
		"secret",
		"password",
		"credential",
		"session",
	}
)

// HeaderRedactor 脱敏器
// 日志输出前对敏感HTTP头部和会话Cookie做脱敏处理
type HeaderRedactor struct {
	sensitiveKeywords []string
}

// NewHeaderRedactor 创建脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitive 检查名称是否为敏感项
func (hr *HeaderRedactor) IsSensitive(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range hr.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// RedactValue 脱敏单个值
// 根据值的格式选择不同的脱敏策略
func (hr *HeaderRedactor) RedactValue(name, value string) string {
	if !hr.IsSensitive(name) {
		return value
	}

	// Bearer Token - 仅显示前缀
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}

	// 较长密钥 - 显示前4位+后4位
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}

	// 短密钥 - 完全隐藏
	return "***"
}

// Redact 脱敏整个http.Header,返回安全的字符串map (用于日志)
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string)
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		result[name] = hr.RedactValue(name, values[0])
	}
	return result
}

// RedactCookies 脱敏Cookie键值对 (用于下载认证日志)
func (hr *HeaderRedactor) RedactCookies(cookies map[string]string) map[string]string {
	result := make(map[string]string, len(cookies))
	for name, value := range cookies {
		result[name] = hr.RedactValue(name, value)
	}
	return result
}

// RedactToString 脱敏并返回格式化字符串 (用于日志输出)
// 格式: "Name1: value1, Name2: value2, ..."
func (hr *HeaderRedactor) RedactToString(headers http.Header) string {
	redacted := hr.Redact(headers)
	var parts []string
	for name, value := range redacted {
		parts = append(parts, name+": "+value)
	}
	return strings.Join(parts, ", ")
}
