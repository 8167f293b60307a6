// Package knowledge 解析知识库文件。
package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
)

// LoadFile 读取 JSON 知识库文件，顶层可以是对象或数组
func LoadFile(path string) ([]model.RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取知识库文件失败: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("解析知识库文件 %s 失败: %w", path, err)
		}
		return FromList(filepath.Base(path), items)
	}

	var mapping map[string]json.RawMessage
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("解析知识库文件 %s 失败: %w", path, err)
	}
	return FromMapping(filepath.Base(path), mapping)
}

// LoadFiles 依次读取多个知识库文件，读取失败的文件记录日志后跳过。
// 只有全部文件都失败时才返回错误
func LoadFiles(paths []string, logger *zap.Logger) ([]model.RawDocument, error) {
	var (
		docs []model.RawDocument
		errs []error
	)
	for _, path := range paths {
		fileDocs, err := LoadFile(path)
		if err != nil {
			logger.Warn("跳过知识库文件", zap.String("file", path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logger.Info("知识库文件已读取", zap.String("file", path), zap.Int("documents", len(fileDocs)))
		docs = append(docs, fileDocs...)
	}
	if len(paths) > 0 && len(errs) == len(paths) {
		return nil, errors.Join(errs...)
	}
	return docs, nil
}

// FromList 顶层为数组的文件，每个元素一篇，ID 为 <文件名去扩展名>_<下标>
func FromList(fileName string, items []json.RawMessage) ([]model.RawDocument, error) {
	stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))

	docs := make([]model.RawDocument, 0, len(items))
	for i, item := range items {
		key := strconv.Itoa(i)
		doc, err := newDocument(fmt.Sprintf("%s_%d", stem, i), stem, key, item)
		if err != nil {
			return nil, err
		}
		if doc.Title == key {
			doc.Title = stem
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FromMapping 每个键生成一篇文档；值为数组时每个元素一篇。
// ID 为 <文件名去扩展名>_<键>[_<下标>]，内容为值的 JSON 文本
func FromMapping(fileName string, mapping map[string]json.RawMessage) ([]model.RawDocument, error) {
	stem := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))

	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var docs []model.RawDocument
	for _, key := range keys {
		value := bytes.TrimSpace(mapping[key])
		if len(value) > 0 && value[0] == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(value, &items); err != nil {
				return nil, fmt.Errorf("解析 %s 失败: %w", key, err)
			}
			for i, item := range items {
				doc, err := newDocument(fmt.Sprintf("%s_%s_%d", stem, key, i), stem, key, item)
				if err != nil {
					return nil, err
				}
				docs = append(docs, doc)
			}
			continue
		}

		doc, err := newDocument(fmt.Sprintf("%s_%s", stem, key), stem, key, value)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// entryMeta 条目中可选的来源字段
type entryMeta struct {
	Title      string `json:"title"`
	SourceURL  string `json:"source_url"`
	URL        string `json:"url"`
	SourceType string `json:"source_type"`
	Page       int    `json:"page"`
	Date       string `json:"date"`
}

func newDocument(id, stem, key string, value json.RawMessage) (model.RawDocument, error) {
	content, err := compactJSON(value)
	if err != nil {
		return model.RawDocument{}, fmt.Errorf("解析 %s 失败: %w", id, err)
	}

	doc := model.RawDocument{
		ID:         id,
		Content:    content,
		Title:      key,
		SourceType: model.SourceInternal,
		Metadata:   map[string]string{"file": stem, "key": key},
	}

	// 对象条目可以自带来源信息
	var meta entryMeta
	if len(value) > 0 && value[0] == '{' && json.Unmarshal(value, &meta) == nil {
		if meta.Title != "" {
			doc.Title = meta.Title
		}
		doc.SourceURL = meta.SourceURL
		if doc.SourceURL == "" {
			doc.SourceURL = meta.URL
		}
		if meta.SourceType != "" {
			doc.SourceType = model.ParseSourceType(meta.SourceType)
		}
		doc.Page = meta.Page
		doc.Date = meta.Date
	}
	return doc, nil
}

// compactJSON 字符串值直接返回文本，其他值返回紧凑 JSON
func compactJSON(value json.RawMessage) (string, error) {
	var s string
	if json.Unmarshal(value, &s) == nil {
		return s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return "", err
	}
	return buf.String(), nil
}
