package service

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateResponder 已知意图的脚本回复，键为 "intent.product" 或 "intent"
type TemplateResponder struct {
	templates map[string]string
}

// NewTemplateResponder 创建脚本回复器
func NewTemplateResponder(templates map[string]string) *TemplateResponder {
	normalized := make(map[string]string, len(templates))
	for key, text := range templates {
		if text = strings.TrimSpace(text); text != "" {
			normalized[strings.ToLower(strings.TrimSpace(key))] = text
		}
	}
	return &TemplateResponder{templates: normalized}
}

// LoadTemplateResponder 从 YAML 文件加载脚本回复
func LoadTemplateResponder(path string) (*TemplateResponder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取模板文件失败: %w", err)
	}
	var templates map[string]string
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("解析模板文件失败: %w", err)
	}
	return NewTemplateResponder(templates), nil
}

// Respond 先查 intent.product，再查 intent
func (r *TemplateResponder) Respond(intent, product string) (string, bool) {
	if r == nil || intent == "" {
		return "", false
	}
	intent = strings.ToLower(intent)
	if product != "" {
		if text, ok := r.templates[intent+"."+product]; ok {
			return text, true
		}
	}
	text, ok := r.templates[intent]
	return text, ok
}

// Len 模板数量
func (r *TemplateResponder) Len() int {
	if r == nil {
		return 0
	}
	return len(r.templates)
}
