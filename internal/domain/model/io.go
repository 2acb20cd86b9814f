package model

import (
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
)

// Decode 从JSON读取并校验模型
func Decode(r io.Reader) (*Model, error) {
	var m Model
	if err := sonic.ConfigStd.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model %q: %w", m.Name, err)
	}
	return &m, nil
}

// Load 从文件加载模型
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Save 把模型写成JSON文件
func (m *Model) Save(path string) error {
	data, err := sonic.ConfigStd.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
