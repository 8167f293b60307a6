package service

import (
	"errors"
	"fmt"
)

// ErrGenerationUnavailable 限流重试耗尽，生成服务暂不可用
var ErrGenerationUnavailable = errors.New("生成服务暂不可用")

// RetrievalError 检索失败（向量化或索引不可用），调用方按空结果处理
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("检索失败 (%s): %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
