package download

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// Recorder 目录级下载记录维护者
// 每个落盘目录维护一份"下载记录.json",内容是只追加的记录数组。
// 多worker可能同时写同一个目录,读-改-写整体加锁
type Recorder struct {
	mu sync.Mutex
}

// NewRecorder 创建记录器
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Append 向目录的下载记录文件追加一条记录
// 记录文件损坏时重建(丢弃旧内容并告警),不阻断下载流程
func (r *Recorder) Append(dir string, record models.DownloadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := utils.EnsureDir(dir); err != nil {
		return err
	}

	recordPath := filepath.Join(dir, models.RecordFileName)
	var records []models.DownloadRecord
	if utils.FileExists(recordPath) {
		if err := utils.LoadJSON(recordPath, &records); err != nil {
			utils.Warnf("下载记录文件损坏,将重建: %s: %v", recordPath, err)
			records = nil
		}
	}

	records = append(records, record)
	if err := utils.SaveJSON(recordPath, records); err != nil {
		return fmt.Errorf("写入下载记录失败: %w", err)
	}
	return nil
}

// Load 读取目录的下载记录
func (r *Recorder) Load(dir string) ([]models.DownloadRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recordPath := filepath.Join(dir, models.RecordFileName)
	if !utils.FileExists(recordPath) {
		return nil, nil
	}
	var records []models.DownloadRecord
	if err := utils.LoadJSON(recordPath, &records); err != nil {
		return nil, fmt.Errorf("读取下载记录失败: %w", err)
	}
	return records, nil
}
