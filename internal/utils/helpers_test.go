package utils

import (
	"path/filepath"
	"testing"
)

func TestSaveJSONAndLoadJSON(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	path := filepath.Join(t.TempDir(), "nested", "dir", "data.json")
	in := payload{Name: "课件", Count: 3}

	if err := SaveJSON(path, in); err != nil {
		t.Fatalf("保存JSON失败: %v", err)
	}
	if !FileExists(path) {
		t.Fatal("保存后文件应存在")
	}

	var out payload
	if err := LoadJSON(path, &out); err != nil {
		t.Fatalf("读取JSON失败: %v", err)
	}
	if out != in {
		t.Errorf("期望 %+v, 实际 %+v", in, out)
	}
}

func TestLoadJSON_文件不存在(t *testing.T) {
	var out map[string]string
	if err := LoadJSON(filepath.Join(t.TempDir(), "missing.json"), &out); err == nil {
		t.Error("读取不存在的文件应报错")
	}
}

func TestFileExists_目录不算文件(t *testing.T) {
	dir := t.TempDir()
	if FileExists(dir) {
		t.Error("目录不应被判定为文件")
	}
}
