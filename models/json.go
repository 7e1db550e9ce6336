package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap is a helper for storing JSON objects in text columns
type JSONMap map[string]interface{}

func (j JSONMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = JSONMap{}
		return nil
	}
	bytes, err := columnBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

// JSONList stores JSON arrays (deadlines, recommended actions) in text columns
type JSONList []interface{}

func (l JSONList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *JSONList) Scan(value interface{}) error {
	if value == nil {
		*l = JSONList{}
		return nil
	}
	bytes, err := columnBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, l)
}

// sqlite hands text columns back as string, other drivers as []byte
func columnBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("type assertion to []byte failed")
	}
}
