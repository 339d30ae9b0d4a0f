package gorm

import (
	"database/sql/driver"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringList 以 JSON 数组存储的字符串列表
type StringList []string

// Scan 实现sql.Scanner接口
func (l *StringList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		*l = nil
		return nil
	}
	return sonic.Unmarshal(raw, l)
}

// Value 实现driver.Valuer接口
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return sonic.MarshalString([]string(l))
}

// JSONMap 以 JSON 对象存储的键值
type JSONMap map[string]any

// Scan 实现sql.Scanner接口
func (m *JSONMap) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		*m = nil
		return nil
	}
	return sonic.Unmarshal(raw, m)
}

// Value 实现driver.Valuer接口
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return sonic.MarshalString(map[string]any(m))
}

// LongText 可能超过 64KB 的文本列，mysql 用 longtext，其它数据库用 text
type LongText string

// GormDBDataType 按方言选择列类型
func (LongText) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "mysql" {
		return "longtext"
	}
	return "text"
}
