package vehicle

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedReply 模型回复不是合法的JSON对象
	ErrMalformedReply = errors.New("malformed model reply")
	// ErrUnknownReply 模型回复既没有vehicle也没有error
	ErrUnknownReply = errors.New("model reply has neither vehicle nor error")
)

// ReplyKind 模型回复的类型
type ReplyKind int

const (
	ReplySuccess ReplyKind = iota + 1
	ReplyDomainError
)

func (k ReplyKind) String() string {
	switch k {
	case ReplySuccess:
		return "success"
	case ReplyDomainError:
		return "domain_error"
	default:
		return "unknown"
	}
}

// Reply 解析后的模型回复：Success(vehicle) 或 DomainError(message)
type Reply struct {
	Kind ReplyKind

	// Fields 回复对象的全部顶层字段，原样转发给调用方
	Fields map[string]json.RawMessage
	// Vehicle Kind为ReplySuccess时的车辆信息
	Vehicle Vehicle
	// Message Kind为ReplyDomainError时的错误信息
	Message string
}

// DecodeReply 解析已去除代码块标记的模型回复
// error字段为真值时优先视为DomainError，空字符串、0、false和null不算
func DecodeReply(text string) (*Reply, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if msg, ok := errorMessage(fields["error"]); ok {
		return &Reply{Kind: ReplyDomainError, Fields: fields, Message: msg}, nil
	}

	raw, ok := fields["vehicle"]
	if !ok || string(raw) == "null" {
		return nil, ErrUnknownReply
	}

	reply := &Reply{Kind: ReplySuccess, Fields: fields}
	// 车辆字段只是尽力解析，失败不影响转发
	_ = json.Unmarshal(raw, &reply.Vehicle)
	return reply, nil
}

// errorMessage 字符串原样返回，其他类型返回紧凑的JSON文本
func errorMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}

	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, v != ""
	case bool:
		return "true", v
	case float64:
		return string(raw), v != 0
	default:
		compact, err := json.Marshal(v)
		if err != nil {
			return string(raw), true
		}
		return string(compact), true
	}
}
