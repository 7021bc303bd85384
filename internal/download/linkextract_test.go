package download

import (
	"errors"
	"net/url"
	"testing"

	"github.com/RecoveryAshes/TabResFetch/internal/models"
)

func doubleEncode(s string) string {
	return url.QueryEscape(url.QueryEscape(s))
}

func TestExtractPDFURL(t *testing.T) {
	realPDF := "https://cdn.example.com/files/第3课讲义.pdf"

	tests := []struct {
		name       string
		previewURL string
		want       string
		wantErr    bool
	}{
		{
			"url参数双重编码",
			"https://manage.shengtongedu.cn/preview?url=" + doubleEncode(realPDF),
			realPDF,
			false,
		},
		{
			"url参数单层编码",
			"https://manage.shengtongedu.cn/preview?url=" + url.QueryEscape(realPDF),
			realPDF,
			false,
		},
		{
			"fragment中的查询参数",
			"https://manage.shengtongedu.cn/app#/viewer?url=" + doubleEncode(realPDF),
			realPDF,
			false,
		},
		{
			"OSS直链编码在任意参数里",
			"https://manage.shengtongedu.cn/go?target=" +
				url.QueryEscape("https://public-course-files.oss-cn-hangzhou.aliyuncs.com/lesson/03.pdf"),
			"https://public-course-files.oss-cn-hangzhou.aliyuncs.com/lesson/03.pdf",
			false,
		},
		{
			"url参数指向非PDF",
			"https://manage.shengtongedu.cn/preview?url=" + doubleEncode("https://cdn.example.com/a.mp4"),
			"",
			true,
		},
		{
			"url参数非https",
			"https://manage.shengtongedu.cn/preview?url=" + doubleEncode("http://cdn.example.com/a.pdf"),
			"",
			true,
		},
		{
			"没有任何线索",
			"https://manage.shengtongedu.cn/dashboard",
			"",
			true,
		},
		{
			"fragment没有查询参数",
			"https://manage.shengtongedu.cn/app#/viewer",
			"",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractPDFURL(tt.previewURL)
			if tt.wantErr {
				if !errors.Is(err, models.ErrLinkNotFound) {
					t.Fatalf("期望ErrLinkNotFound, 实际 %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("提取失败: %v", err)
			}
			if got != tt.want {
				t.Errorf("期望 %q, 实际 %q", tt.want, got)
			}
		})
	}
}

func TestExtractPDFURLFromHTML(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		want    string
		wantErr bool
	}{
		{
			"iframe的src",
			`<html><body><iframe src="https://cdn.example.com/files/lesson.pdf"></iframe></body></html>`,
			"https://cdn.example.com/files/lesson.pdf",
			false,
		},
		{
			"a标签的href",
			`<div><a href="https://cdn.example.com/讲义.pdf">打开</a></div>`,
			"https://cdn.example.com/讲义.pdf",
			false,
		},
		{
			"embed的src编码过",
			`<embed src="` + url.QueryEscape("https://cdn.example.com/a.pdf") + `">`,
			"https://cdn.example.com/a.pdf",
			false,
		},
		{
			"正文里的OSS直链",
			`<script>var u = "https://public-edu-res.oss-cn-beijing.aliyuncs.com/x/y.pdf";</script>`,
			"https://public-edu-res.oss-cn-beijing.aliyuncs.com/x/y.pdf",
			false,
		},
		{
			"页面里没有PDF",
			`<html><body><a href="https://example.com/page">链接</a></body></html>`,
			"",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractPDFURLFromHTML(tt.html)
			if tt.wantErr {
				if !errors.Is(err, models.ErrLinkNotFound) {
					t.Fatalf("期望ErrLinkNotFound, 实际 %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("提取失败: %v", err)
			}
			if got != tt.want {
				t.Errorf("期望 %q, 实际 %q", tt.want, got)
			}
		})
	}
}
