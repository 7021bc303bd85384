package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器,InitLogger之前写入会落到zerolog默认输出
var Logger zerolog.Logger

// LogConfig 日志配置
type LogConfig struct {
	Level      string // 日志级别: trace, debug, info, warn, error, fatal, panic
	LogDir     string // 日志目录
	MaxSize    int    // 单个日志文件最大大小(MB)
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留天数
	Compress   bool   // 是否压缩旧日志
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// rotatedFile 在日志目录下创建一个带轮转的日志文件
func (c LogConfig) rotatedFile(name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(c.LogDir, name),
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// InitLogger 初始化日志系统
// 输出同时走三路: 彩色控制台、全量主日志文件、只收error及以上的错误日志文件。
// 级别字符串不合法时按info处理,不报错
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	sinks := io.MultiWriter(
		console,
		config.rotatedFile("res_fetch.log"),
		&minLevelWriter{w: config.rotatedFile("res_fetch_error.log"), min: zerolog.ErrorLevel},
	)

	Logger = zerolog.New(sinks).With().Timestamp().Caller().Logger()
	log.Logger = Logger

	Logger.Info().
		Str("level", config.Level).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")
	return nil
}

// minLevelWriter 只放行指定级别及以上日志的写入器
// zerolog通过WriteLevel拿到级别;没有级别信息的写入按放行处理
type minLevelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (w *minLevelWriter) Write(p []byte) (int, error) {
	return w.w.Write(p)
}

func (w *minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min {
		return len(p), nil
	}
	return w.w.Write(p)
}

// 各级别的快捷入口,省掉调用方每次链式构造事件

func Info(msg string)                   { Logger.Info().Msg(msg) }
func Infof(format string, args ...any)  { Logger.Info().Msgf(format, args...) }
func Warn(msg string)                   { Logger.Warn().Msg(msg) }
func Warnf(format string, args ...any)  { Logger.Warn().Msgf(format, args...) }
func Errorf(format string, args ...any) { Logger.Error().Msgf(format, args...) }
func Debugf(format string, args ...any) { Logger.Debug().Msgf(format, args...) }
