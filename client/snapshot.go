package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Snapshot 某一时刻角色的位置、朝向、血量与移动意图（值类型，每帧新建）
// JSON 字段名即线上格式：{"X":..,"Y":..,"Z":..,"Heading":..,"Health":..,"IsJumping":..,"IsSprinting":..,"IsWalking":..}
type Snapshot struct {
	X           float32 `json:"X"`
	Y           float32 `json:"Y"`
	Z           float32 `json:"Z"`
	Heading     float32 `json:"Heading"`
	Health      int     `json:"Health"`
	IsJumping   bool    `json:"IsJumping"`
	IsSprinting bool    `json:"IsSprinting"`
	IsWalking   bool    `json:"IsWalking"`
}

// Position 返回坐标向量
func (s Snapshot) Position() mgl32.Vec3 {
	return mgl32.Vec3{s.X, s.Y, s.Z}
}

// WithPosition 返回替换坐标后的副本
func (s Snapshot) WithPosition(p mgl32.Vec3) Snapshot {
	s.X, s.Y, s.Z = p.X(), p.Y(), p.Z()
	return s
}

// Encode 序列化为一个 JSON 文本帧
func Encode(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// wireFields 线上格式的全部字段，键名区分大小写，缺一不可
var wireFields = [...]string{"X", "Y", "Z", "Heading", "Health", "IsJumping", "IsSprinting", "IsWalking"}

// Decode 解析一个文本帧；格式错误、null、缺字段或字段为 null 均返回 *DecodeError。多余字段忽略。
func Decode(b []byte) (Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return Snapshot{}, &DecodeError{Size: len(b), Err: err}
	}
	if fields == nil {
		return Snapshot{}, &DecodeError{Size: len(b), Err: errNullPayload}
	}

	var s Snapshot
	targets := [...]any{&s.X, &s.Y, &s.Z, &s.Heading, &s.Health, &s.IsJumping, &s.IsSprinting, &s.IsWalking}
	for i, key := range wireFields {
		raw, ok := fields[key]
		if !ok {
			return Snapshot{}, &DecodeError{Size: len(b), Err: fmt.Errorf("missing field %q", key)}
		}
		if bytes.Equal(bytes.TrimSpace(raw), nullPayload) {
			return Snapshot{}, &DecodeError{Size: len(b), Err: fmt.Errorf("field %q: %w", key, errNullPayload)}
		}
		if err := json.Unmarshal(raw, targets[i]); err != nil {
			return Snapshot{}, &DecodeError{Size: len(b), Err: fmt.Errorf("field %q: %w", key, err)}
		}
	}
	return s, nil
}

var nullPayload = []byte("null")
