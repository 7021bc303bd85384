package core

import (
	"net/http"

	"github.com/RecoveryAshes/TabResFetch/internal/config"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent,与常见桌面Chrome保持一致
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"

	// DefaultReferer 平台校验Referer,直连下载必须携带
	DefaultReferer = "https://manage.shengtongedu.cn/"
)

// HeaderManager 管理HTTP直连下载的请求头生命周期
// 实现 HeaderProvider 接口。优先级: 默认 < 配置文件 < 命令行
type HeaderManager struct {
	configFile string

	// defaults 系统默认请求头
	defaults http.Header

	// config 配置文件加载的请求头
	config http.Header

	// cli 命令行参数解析的请求头
	cli http.Header

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.HeaderConfigLoader
	loaded       bool
}

// NewHeaderManager 创建请求头管理器
// configFile为空时使用默认路径,cliHeaders为"Name: Value"格式的命令行参数
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		configFile:   configFile,
		defaults:     getDefaultHeaders(),
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewHeaderConfigLoader(configFile),
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	} else {
		hm.cli = make(http.Header)
	}

	return hm, nil
}

// getDefaultHeaders 返回系统默认请求头
// Accept偏向PDF,目标资源大多是文档直链
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent": []string{DefaultUserAgent},
		"Accept":     []string{"application/pdf,application/x-pdf,*/*"},
		"Referer":    []string{DefaultReferer},
	}
}

// LoadConfig 加载配置文件,已加载则跳过
func (hm *HeaderManager) LoadConfig() error {
	if hm.loaded {
		return nil
	}

	headerConfig, err := hm.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载HTTP请求头配置失败: %v", err)
		return err
	}

	hm.config = make(http.Header)
	for name, value := range headerConfig.Headers {
		hm.config.Set(name, value)
	}
	hm.loaded = true

	if len(headerConfig.Headers) > 0 {
		safeHeaders := hm.redactor.Redact(hm.config)
		utils.Debugf("成功加载%d个HTTP请求头配置: %v", len(safeHeaders), safeHeaders)
	}
	return nil
}

// Validate 验证所有来源的请求头合法性
func (hm *HeaderManager) Validate() error {
	if err := hm.validator.Validate(hm.defaults); err != nil {
		utils.Errorf("默认请求头验证失败: %v", err)
		return err
	}
	if err := hm.validator.Validate(hm.config); err != nil {
		utils.Errorf("配置文件请求头验证失败: %v", err)
		return err
	}
	if err := hm.validator.Validate(hm.cli); err != nil {
		utils.Errorf("命令行请求头验证失败: %v", err)
		return err
	}
	return nil
}

// GetMergedHeaders 按优先级合并请求头 (default < config < cli)
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for name, values := range hm.defaults {
		result[name] = values
	}
	for name, values := range hm.config {
		result[name] = values
	}
	for name, values := range hm.cli {
		result[name] = values
	}
	return result
}

// GetSafeHeaders 返回脱敏后的请求头,用于日志输出
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.LoadConfig(); err != nil {
		return nil, err
	}
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	return hm.GetMergedHeaders(), nil
}
