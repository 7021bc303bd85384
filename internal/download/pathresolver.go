package download

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/RecoveryAshes/TabResFetch/internal/models"
)

// timestampLayout 文件名前缀时间戳格式
const timestampLayout = "20060102_150405"

// maxNameRunes 单级目录/文件名的长度上限,防止超出文件系统限制
const maxNameRunes = 100

// extensionByType 资源类型默认落盘扩展名
var extensionByType = map[models.ResourceType]string{
	models.ResourcePDF:          ".pdf",
	models.ResourcePPT:          ".pptx",
	models.ResourceVideo:        ".mp4",
	models.ResourceAudio:        ".mp3",
	models.ResourceSB3:          ".sb3",
	models.ResourceZip:          ".zip",
	models.ResourceArchive:      ".rar",
	models.ResourceDocument:     ".docx",
	models.ResourceSpreadsheet:  ".xlsx",
	models.ResourceImage:        ".jpg",
	models.ResourceDownloadable: ".dat",
	models.ResourceUnknown:      ".dat",
}

var (
	forbiddenChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// SanitizeName 清洗路径片段
// 替换文件系统禁用字符为下划线,压缩连续下划线,去除首尾空白和下划线,
// 超长时截断到100个字符
func SanitizeName(name string) string {
	cleaned := forbiddenChars.ReplaceAllString(name, "_")
	cleaned = underscoreRuns.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, " _")
	runes := []rune(cleaned)
	if len(runes) > maxNameRunes {
		cleaned = strings.Trim(string(runes[:maxNameRunes]), " _")
	}
	if cleaned == "" {
		cleaned = "未命名"
	}
	return cleaned
}

// PathResolver 落盘路径解析器
// 有课时上下文时: base/课程/序号_课时/Tab路径/类型/文件
// 没有课时上下文时: base/Tab路径/类型/文件
type PathResolver struct {
	baseDir string
	lesson  models.LessonContext
}

// NewPathResolver 创建路径解析器
func NewPathResolver(baseDir string, lesson models.LessonContext) *PathResolver {
	return &PathResolver{baseDir: baseDir, lesson: lesson}
}

// Resolve 解析任务的完整落盘路径
// 文件名带时间戳前缀,保证同名资源多次下载互不覆盖
func (r *PathResolver) Resolve(task *models.DownloadTask) string {
	return r.ResolveAt(task, time.Now())
}

// ResolveAt 按指定时间解析落盘路径
func (r *PathResolver) ResolveAt(task *models.DownloadTask, at time.Time) string {
	dir := r.ResolveDir(task.Resource)
	return filepath.Join(dir, r.fileName(task.Resource, at))
}

// ResolveDir 解析任务的落盘目录(不含文件名)
func (r *PathResolver) ResolveDir(resource *models.ResourceDescriptor) string {
	segments := []string{r.baseDir}
	if !r.lesson.IsZero() {
		segments = append(segments,
			SanitizeName(r.lesson.CourseName),
			SanitizeName(fmt.Sprintf("%02d_%s", r.lesson.SessionNum, r.lesson.SessionName)),
		)
	}
	segments = append(segments,
		SanitizeName(strings.Join(resource.TabPath, "_")),
		string(resource.ResourceType),
	)
	return filepath.Join(segments...)
}

// fileName 生成时间戳前缀的落盘文件名
// 资源名已自带已知扩展名时不再追加
func (r *PathResolver) fileName(resource *models.ResourceDescriptor, at time.Time) string {
	name := resource.FileName
	if name == "" {
		name = resource.ElementText
	}
	name = SanitizeName(name)

	stamped := at.Format(timestampLayout) + "_" + name
	if hasKnownExtension(name) {
		return stamped
	}
	ext, ok := extensionByType[resource.ResourceType]
	if !ok {
		ext = ".dat"
	}
	return stamped + ext
}

// knownExtensions 资源名中可能自带的扩展名
var knownExtensions = []string{
	".pdf", ".pptx", ".ppt", ".mp4", ".mp3", ".sb3", ".zip", ".rar",
	".docx", ".doc", ".xlsx", ".xls", ".jpg", ".jpeg", ".png", ".gif",
}

func hasKnownExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
