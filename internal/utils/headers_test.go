package utils

import (
	"net/http"
	"strings"
	"testing"
)

func TestHeaderValidator_ValidateName(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		expectError bool
	}{
		{"合法名称-字母", "User-Agent", false},
		{"合法名称-数字", "X-Request-ID-123", false},
		{"合法名称-连字符", "Accept-Language", false},
		{"非法名称-空格", "User Agent", true},
		{"非法名称-下划线", "User_Agent", true},
		{"非法名称-特殊字符", "User@Agent", true},
		{"非法名称-空字符串", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateName(tt.headerName)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_ValidateValue(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法值-ASCII", "User-Agent", "Mozilla/5.0", false},
		{"合法值-空字符串", "X-Empty", "", false},
		{"合法值-长字符串", "X-Long", strings.Repeat(" ", 8000), false},
		{"非法值-超长", "X-TooLong", strings.Repeat("a", MaxHeaderValueLength+1), true},
		{"非法值-控制字符", "X-Bad", "value\x00with\x01null", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateValue(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_ForbiddenHeaders(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		expectError bool
	}{
		{"禁止头部-Host", "Host", true},
		{"禁止头部-Content-Length", "Content-Length", true},
		{"禁止头部-Cookie由会话管理", "Cookie", true},
		{"禁止头部-不区分大小写", "cookie", true},
		{"普通头部放行", "Referer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.headerName, "value")
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_Validate(t *testing.T) {
	validator := NewHeaderValidator()

	t.Run("合法头部集合", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("User-Agent", "Mozilla/5.0")
		headers.Set("Referer", "https://manage.shengtongedu.cn/")
		if err := validator.Validate(headers); err != nil {
			t.Errorf("合法头部集合不应报错: %v", err)
		}
	})

	t.Run("包含禁止头部", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("Cookie", "session_id=abc")
		if err := validator.Validate(headers); err == nil {
			t.Error("包含Cookie的头部集合应被拒绝")
		}
	})
}

func TestHeaderRedactor_IsSensitive(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name       string
		headerName string
		want       bool
	}{
		{"Authorization敏感", "Authorization", true},
		{"token敏感", "X-Auth-Token", true},
		{"session敏感", "session_id", true},
		{"密码敏感", "X-Password", true},
		{"User-Agent非敏感", "User-Agent", false},
		{"Referer非敏感", "Referer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.IsSensitive(tt.headerName); got != tt.want {
				t.Errorf("期望 %v, 实际 %v", tt.want, got)
			}
		})
	}
}

func TestHeaderRedactor_RedactValue(t *testing.T) {
	redactor := NewHeaderRedactor()

	tests := []struct {
		name       string
		headerName string
		value      string
		want       string
	}{
		{"Bearer只保留前缀", "Authorization", "Bearer abc123def456", "Bearer ***"},
		{"长密钥保留首尾", "X-Api-Token", "abcdefghijkl", "abcd***ijkl"},
		{"短密钥完全隐藏", "X-Token", "abc", "***"},
		{"非敏感值原样返回", "User-Agent", "Mozilla/5.0", "Mozilla/5.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactor.RedactValue(tt.headerName, tt.value); got != tt.want {
				t.Errorf("期望 %q, 实际 %q", tt.want, got)
			}
		})
	}
}

func TestHeaderRedactor_RedactCookies(t *testing.T) {
	redactor := NewHeaderRedactor()

	cookies := map[string]string{
		"session_id": "supersecretvalue",
		"theme":      "dark",
	}
	redacted := redactor.RedactCookies(cookies)

	if redacted["session_id"] == "supersecretvalue" {
		t.Error("会话Cookie值应被脱敏")
	}
	if redacted["theme"] != "dark" {
		t.Errorf("非敏感Cookie应原样保留, 实际 %q", redacted["theme"])
	}
}
