package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/RecoveryAshes/TabResFetch/internal/detector"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
)

// Config 应用程序配置
type Config struct {
	Browser  BrowserConfig  `mapstructure:"browser"`
	Download DownloadConfig `mapstructure:"download"`
	Tabs     TabsConfig     `mapstructure:"tabs"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	ControlURL string `mapstructure:"control_url"` // 非空时接管外部浏览器
	Headless   bool   `mapstructure:"headless"`
	PageURL    string `mapstructure:"page_url"` // 课程页面URL,接管模式可为空
}

// DownloadConfig 下载配置
type DownloadConfig struct {
	Workers        int `mapstructure:"workers"`
	MaxRetries     int `mapstructure:"max_retries"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	BackoffSeconds int `mapstructure:"backoff_seconds"`
	ClickWaitMS    int `mapstructure:"click_wait_ms"`
}

// TabsConfig Tab遍历配置
type TabsConfig struct {
	Safe      bool     `mapstructure:"safe"`
	Whitelist []string `mapstructure:"whitelist"`
	Blacklist []string `mapstructure:"blacklist"`
	Landmark  string   `mapstructure:"landmark"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// LoadConfig 加载配置文件
// 指定路径不存在时报错,未指定时搜索默认位置,找不到就全用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tabresfetch"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return &config, nil
}

// setDefaults 设置默认配置值
// Tab名单默认值来自目标平台的实际页面结构
func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.control_url", "")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.page_url", "")

	v.SetDefault("download.workers", 3)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.timeout_seconds", 300)
	v.SetDefault("download.backoff_seconds", 1)
	v.SetDefault("download.click_wait_ms", 700)

	defaults := detector.DefaultExplorerConfig()
	v.SetDefault("tabs.safe", true)
	v.SetDefault("tabs.whitelist", defaults.Whitelist)
	v.SetDefault("tabs.blacklist", defaults.Blacklist)
	v.SetDefault("tabs.landmark", defaults.LandmarkSelector)

	v.SetDefault("output.base_dir", "downloads")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}

// DownloadModelConfig 转换为下载编排配置
func (c *Config) DownloadModelConfig() models.DownloadConfig {
	return models.DownloadConfig{
		Workers:         c.Download.Workers,
		MaxRetries:      c.Download.MaxRetries,
		DownloadTimeout: time.Duration(c.Download.TimeoutSeconds) * time.Second,
		BackoffBase:     time.Duration(c.Download.BackoffSeconds) * time.Second,
		ClickWait:       time.Duration(c.Download.ClickWaitMS) * time.Millisecond,
	}
}

// ExplorerConfig 转换为Tab遍历配置
func (c *Config) ExplorerConfig() detector.ExplorerConfig {
	return detector.ExplorerConfig{
		Whitelist:        c.Tabs.Whitelist,
		Blacklist:        c.Tabs.Blacklist,
		LandmarkSelector: c.Tabs.Landmark,
		Safe:             c.Tabs.Safe,
		ClickWait:        time.Duration(c.Download.ClickWaitMS) * time.Millisecond,
		SettleTimeout:    10 * time.Second,
	}
}

// MergeCLIFlags 合并命令行参数,命令行优先于配置文件
func (c *Config) MergeCLIFlags(workers, maxRetries, timeoutSeconds int, outputDir, controlURL, pageURL string, headless, safe bool) {
	if workers > 0 {
		c.Download.Workers = workers
	}
	if maxRetries > 0 {
		c.Download.MaxRetries = maxRetries
	}
	if timeoutSeconds > 0 {
		c.Download.TimeoutSeconds = timeoutSeconds
	}
	if outputDir != "" {
		c.Output.BaseDir = outputDir
	}
	if controlURL != "" {
		c.Browser.ControlURL = controlURL
	}
	if pageURL != "" {
		c.Browser.PageURL = pageURL
	}
	c.Browser.Headless = headless
	c.Tabs.Safe = safe
}
