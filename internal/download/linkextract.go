package download

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// ossPDFPattern 对象存储直链,预览页有时把真实地址编码后塞进任意参数里
var ossPDFPattern = regexp.MustCompile(`(https://public-[a-zA-Z0-9-]+\.oss[^&"']+\.pdf)`)

// ExtractPDFURL 从预览页URL中提取真实PDF下载地址
// 依次尝试: url查询参数(双重URL解码) -> fragment中的查询参数 -> OSS直链正则。
// 都失败时返回ErrLinkNotFound
func ExtractPDFURL(previewURL string) (string, error) {
	parsed, err := url.Parse(previewURL)
	if err != nil {
		return "", models.ErrLinkNotFound
	}

	if raw := parsed.Query().Get("url"); raw != "" {
		if pdfURL, ok := decodePDFCandidate(raw); ok {
			return pdfURL, nil
		}
	}

	if pdfURL, ok := extractFromFragment(parsed.Fragment); ok {
		return pdfURL, nil
	}

	if pdfURL, ok := matchOSSLink(previewURL); ok {
		return pdfURL, nil
	}

	utils.Debugf("预览URL中未找到PDF链接: %s", previewURL)
	return "", models.ErrLinkNotFound
}

// extractFromFragment 前端路由的fragment里也可能携带查询参数
// 形如 #/preview?url=...
func extractFromFragment(fragment string) (string, bool) {
	if fragment == "" {
		return "", false
	}
	idx := strings.Index(fragment, "?")
	if idx < 0 {
		return "", false
	}
	values, err := url.ParseQuery(fragment[idx+1:])
	if err != nil {
		return "", false
	}
	raw := values.Get("url")
	if raw == "" {
		return "", false
	}
	return decodePDFCandidate(raw)
}

// decodePDFCandidate 双重URL解码并校验是否为PDF直链
// 平台对真实地址做了两次编码,解码失败时保留已有形态继续判断
func decodePDFCandidate(raw string) (string, bool) {
	candidate := raw
	for i := 0; i < 2; i++ {
		decoded, err := url.QueryUnescape(candidate)
		if err != nil {
			break
		}
		candidate = decoded
	}
	if isPDFLink(candidate) {
		return candidate, true
	}
	return "", false
}

// matchOSSLink 在(双重解码后的)字符串中匹配OSS直链
func matchOSSLink(s string) (string, bool) {
	candidate := s
	for i := 0; i < 2; i++ {
		decoded, err := url.QueryUnescape(candidate)
		if err != nil {
			break
		}
		candidate = decoded
	}
	if m := ossPDFPattern.FindString(candidate); m != "" {
		return m, true
	}
	return "", false
}

func isPDFLink(s string) bool {
	return strings.HasPrefix(s, "https://") && strings.Contains(strings.ToLower(s), ".pdf")
}

// ExtractPDFURLFromHTML 从预览页HTML中提取PDF地址
// URL提取失败时的兜底: 解析页面里a/iframe/embed/object等节点的链接属性,
// 再对整个文档做OSS直链正则
func ExtractPDFURLFromHTML(content string) (string, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err == nil {
		if pdfURL := findPDFInNode(doc); pdfURL != "" {
			return pdfURL, nil
		}
	}

	if pdfURL, ok := matchOSSLink(content); ok {
		return pdfURL, nil
	}

	return "", models.ErrLinkNotFound
}

// linkAttrs 可能携带文档地址的属性
var linkAttrs = map[string][]string{
	"a":      {"href"},
	"iframe": {"src"},
	"embed":  {"src"},
	"object": {"data"},
	"source": {"src"},
}

func findPDFInNode(n *html.Node) string {
	if n.Type == html.ElementNode {
		if attrs, ok := linkAttrs[n.Data]; ok {
			for _, attr := range n.Attr {
				for _, want := range attrs {
					if attr.Key != want {
						continue
					}
					if candidate, ok := decodePDFCandidate(attr.Val); ok {
						return candidate
					}
					if isPDFLink(attr.Val) {
						return attr.Val
					}
				}
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findPDFInNode(child); found != "" {
			return found
		}
	}
	return ""
}
