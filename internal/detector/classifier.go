package detector

import (
	"path"
	"strings"

	"github.com/RecoveryAshes/TabResFetch/internal/browser"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// keywordRule 关键词到资源类型的映射,顺序即匹配优先级
type keywordRule struct {
	keyword string
	rtype   models.ResourceType
}

// extensionTypeMapping 文件扩展名到资源类型
var extensionTypeMapping = map[string]models.ResourceType{
	".mp4":  models.ResourceVideo,
	".mp3":  models.ResourceAudio,
	".pdf":  models.ResourcePDF,
	".pptx": models.ResourcePPT,
	".ppt":  models.ResourcePPT,
	".sb3":  models.ResourceSB3,
	".zip":  models.ResourceZip,
	".rar":  models.ResourceArchive,
	".doc":  models.ResourceDocument,
	".docx": models.ResourceDocument,
	".xls":  models.ResourceSpreadsheet,
	".xlsx": models.ResourceSpreadsheet,
	".jpg":  models.ResourceImage,
	".jpeg": models.ResourceImage,
	".png":  models.ResourceImage,
	".gif":  models.ResourceImage,
}

// keywordTypeRules 业务关键词到资源类型,先匹配先生效
var keywordTypeRules = []keywordRule{
	{"视频", models.ResourceVideo},
	{"课件", models.ResourcePPT},
	{"PPT", models.ResourcePPT},
	{"资料", models.ResourcePDF},
	{"编程题", models.ResourcePDF},
	{"程序", models.ResourceZip},
	{"讲义", models.ResourcePDF},
	{"教辅", models.ResourceDownloadable},
	{"备课", models.ResourcePDF},
	{"项目文件", models.ResourceSB3},
	{"预置代码", models.ResourceSB3},
}

// iconTypeMapping 图标文件名到资源类型
var iconTypeMapping = map[string]models.ResourceType{
	"video.png": models.ResourceVideo,
	"ppt.png":   models.ResourcePPT,
	"sb3.png":   models.ResourceSB3,
	"zip.png":   models.ResourceZip,
	"pdf.png":   models.ResourcePDF,
	"doc.png":   models.ResourceDocument,
	"xls.png":   models.ResourceSpreadsheet,
	"jpg.png":   models.ResourceImage,
	"png.png":   models.ResourceImage,
}

// specialClasses 平台特有的资源容器class
var specialClasses = []string{"item_ppt", "resource_box", "tag_file", "video_item"}

// previewMethodByType 可流式预览的类型走专用预览策略
var previewMethodByType = map[models.ResourceType]models.DownloadMethod{
	models.ResourcePDF:   models.MethodPreviewPDF,
	models.ResourceVideo: models.MethodPreviewVideo,
	models.ResourcePPT:   models.MethodPreviewPPT,
	models.ResourceSB3:   models.MethodPreviewSB3,
}

// buttonKeywords 触发类按钮文本
var buttonKeywords = []string{"预览", "下载", "查看", "播放"}

// downloadKeywords 下载语义关键词
var downloadKeywords = []string{"下载", "导出", "保存", "获取"}

// Classify 按信号优先级判定资源类型
// 优先级: 扩展名 > 文本关键词 > 图标 > 上下文关键词 > 容器class
func Classify(text, className, iconSrc, contextText string) models.ResourceType {
	if rt, ok := classifyByExtension(text); ok {
		return rt
	}
	if rt, ok := classifyByKeyword(text); ok {
		return rt
	}
	if rt, ok := classifyByIcon(iconSrc); ok {
		return rt
	}
	if rt, ok := classifyByKeyword(contextText); ok {
		return rt
	}
	if rt, ok := classifyByClass(className, text, contextText); ok {
		return rt
	}
	return models.ResourceUnknown
}

func classifyByExtension(text string) (models.ResourceType, bool) {
	lower := strings.ToLower(text)
	for ext, rt := range extensionTypeMapping {
		if strings.Contains(lower, ext) {
			return rt, true
		}
	}
	return models.ResourceUnknown, false
}

func classifyByKeyword(text string) (models.ResourceType, bool) {
	if text == "" {
		return models.ResourceUnknown, false
	}
	for _, rule := range keywordTypeRules {
		if strings.Contains(text, rule.keyword) {
			return rule.rtype, true
		}
	}
	return models.ResourceUnknown, false
}

func classifyByIcon(iconSrc string) (models.ResourceType, bool) {
	if iconSrc == "" {
		return models.ResourceUnknown, false
	}
	base := strings.ToLower(path.Base(iconSrc))
	if rt, ok := iconTypeMapping[base]; ok {
		return rt, true
	}
	return models.ResourceUnknown, false
}

// classifyByClass 平台特有class兜底判定
// item_ppt容器里可能混放pdf和sb3,需要二次按文本区分
func classifyByClass(className, text, contextText string) (models.ResourceType, bool) {
	matched := ""
	for _, cls := range specialClasses {
		if strings.Contains(className, cls) {
			matched = cls
			break
		}
	}
	if matched == "" {
		return models.ResourceUnknown, false
	}

	switch matched {
	case "video_item":
		return models.ResourceVideo, true
	case "item_ppt":
		combined := strings.ToLower(text + " " + contextText)
		switch {
		case strings.Contains(combined, "pptx") || strings.Contains(combined, "ppt"):
			return models.ResourcePPT, true
		case strings.Contains(combined, "pdf"):
			return models.ResourcePDF, true
		case strings.Contains(combined, "sb3"):
			return models.ResourceSB3, true
		}
		return models.ResourcePPT, true
	default:
		// resource_box / tag_file 只说明"这是个资源",类型继续未知
		return models.ResourceDownloadable, true
	}
}

// IdentifyMethod 根据按钮文本和资源类型判定下载方式
func IdentifyMethod(text string, rtype models.ResourceType) models.DownloadMethod {
	if strings.Contains(text, "下载") {
		return models.MethodDirect
	}
	if strings.Contains(text, "预览") || strings.Contains(text, "查看") || strings.Contains(text, "播放") {
		if m, ok := previewMethodByType[rtype]; ok {
			return m
		}
		return models.MethodPreview
	}
	// 按钮文本没有动作语义时按类型兜底:打包类资源只能直接下载
	switch rtype {
	case models.ResourceZip, models.ResourceArchive, models.ResourceDownloadable:
		return models.MethodDirect
	}
	return models.MethodPreview
}

// ExtractFileName 从元素文本提取文件名
// 文本里带扩展名时截到扩展名为止,否则取第一行非按钮文本
func ExtractFileName(text string, rtype models.ResourceType) string {
	lower := strings.ToLower(text)
	for ext := range extensionTypeMapping {
		if idx := strings.Index(lower, ext); idx >= 0 {
			name := strings.TrimSpace(text[:idx+len(ext)])
			if name != "" {
				return name
			}
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isButtonText(line) {
			continue
		}
		return line
	}
	return string(rtype)
}

func isButtonText(text string) bool {
	for _, kw := range buttonKeywords {
		if text == kw {
			return true
		}
	}
	return false
}

// IsTargetResource 判断元素是否值得生成下载任务
// 分类未知且无任何下载语义的元素直接丢弃,避免误点导航链接
func IsTargetResource(info browser.ElementInfo, rtype models.ResourceType) bool {
	if rtype != models.ResourceUnknown {
		return true
	}
	for _, kw := range downloadKeywords {
		if strings.Contains(info.Text, kw) {
			return true
		}
	}
	return false
}

// BuildDescriptor 把元素快照转换为资源描述符,不是目标资源时返回nil
func BuildDescriptor(info browser.ElementInfo, tabPath models.TabPath) *models.ResourceDescriptor {
	rtype := Classify(info.Text, info.ClassName, info.IconSrc, info.ContextText)
	if !IsTargetResource(info, rtype) {
		return nil
	}

	method := IdentifyMethod(info.Text, rtype)
	nameSource := info.Text
	if nameSource == "" || isButtonText(nameSource) {
		nameSource = info.ContextText
	}

	attributes := map[string]string{
		"class":    info.ClassName,
		"icon_src": info.IconSrc,
		"context":  info.ContextText,
	}
	desc, err := models.NewResourceDescriptor(
		info.Text, info.Selector, attributes,
		rtype, method, ExtractFileName(nameSource, rtype), tabPath)
	if err != nil {
		utils.Warnf("构建资源描述符失败: %v", err)
		return nil
	}
	return desc
}

// Deduplicate 去重,保留首次出现的描述符
// 去重键是元素文本+选择器+Tab路径,同名资源出现在不同Tab下视为不同资源
func Deduplicate(descriptors []*models.ResourceDescriptor) []*models.ResourceDescriptor {
	seen := make(map[string]struct{}, len(descriptors))
	result := make([]*models.ResourceDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		key := d.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, d)
	}
	return result
}

// resourceElementSelector 资源容器与触发按钮的候选选择器
var resourceElementSelectors = []string{
	".item_ppt", ".resource_box", ".tag_file", ".video_item",
	"span.file_btn", "button", "a",
}

// DetectResourcesInTab 检测当前激活Tab下的全部可下载资源
// 调用前须保证目标Tab已激活且页面稳定
func DetectResourcesInTab(ctrl browser.Controller, tabPath models.TabPath) []*models.ResourceDescriptor {
	var found []*models.ResourceDescriptor

	for _, selector := range resourceElementSelectors {
		els, err := ctrl.Elements(selector)
		if err != nil {
			utils.Debugf("查询资源元素失败 selector=%s: %v", selector, err)
			continue
		}
		for _, el := range els {
			info := browser.Inspect(el)
			if info.Text == "" && info.IconSrc == "" {
				continue
			}
			if desc := BuildDescriptor(info, tabPath); desc != nil {
				found = append(found, desc)
			}
		}
	}

	deduped := Deduplicate(found)
	utils.Infof("Tab[%s] 检测到 %d 个资源(去重前 %d)", tabPath.Join(), len(deduped), len(found))
	return deduped
}
