package client

import (
	"errors"
	"fmt"
)

// ErrNotConnected 会话已关闭或尚未建立
var ErrNotConnected = errors.New("not connected")

var errNullPayload = errors.New("null payload")

// ConnectionError 建立连接失败（拨号、握手或超时）
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError 连接建立后读写失败
type TransportError struct {
	Op  string // "read" / "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError 收到的帧无法解析为 Snapshot
type DecodeError struct {
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode snapshot (%d bytes): %v", e.Size, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ApplyError 更新代理角色时宿主接口调用失败
type ApplyError struct {
	Op  string
	Err error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s: %v", e.Op, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }
