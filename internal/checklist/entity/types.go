package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// JSONB JSONB类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan JSONB: %w", err)
	}
	return json.Unmarshal(bytes, j)
}

// StringList 字符串数组（jsonb）
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan StringList: %w", err)
	}
	return json.Unmarshal(bytes, (*[]string)(l))
}

// BoolMap 布尔映射（jsonb），用于按模板ID覆盖必填标记
type BoolMap map[string]bool

func (m BoolMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]bool(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *BoolMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan BoolMap: %w", err)
	}
	return json.Unmarshal(bytes, (*map[string]bool)(m))
}

// Coordinate 经纬度
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SentinelCoordinate GPS 放弃时使用的占位坐标
var SentinelCoordinate = Coordinate{Lat: 0, Lng: 0}

// IsSentinel 是否为占位坐标
func (c Coordinate) IsSentinel() bool {
	return c == SentinelCoordinate
}

func (c Coordinate) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *Coordinate) Scan(value interface{}) error {
	if value == nil {
		*c = Coordinate{}
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan Coordinate: %w", err)
	}
	return json.Unmarshal(bytes, c)
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

// IsNullJSON 判断原始JSON是否为空或null
func IsNullJSON(raw []byte) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
