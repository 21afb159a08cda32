package model

import (
	"math"
	"strings"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// ハイパーパラメータの値は Go コードからは int/float64/string/bool、
// YAML 設定からは int/float64/string/bool のいずれかで渡される。
// 以下のヘルパーはそれらを期待する型に変換し、変換できない場合は ConfigurationError を返す。

// ParamInt は整数パラメータを取り出す。整数値の float64 も受け付ける。
func ParamInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case int32:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), nil
		}
	}
	return 0, errors.NewConfigurationError(name, "must be an integer", v)
}

// ParamInt64 は乱数シード用の int64 パラメータを取り出す。
func ParamInt64(name string, v interface{}) (int64, error) {
	if x, ok := v.(int64); ok {
		return x, nil
	}
	i, err := ParamInt(name, v)
	return int64(i), err
}

// ParamFloat は実数パラメータを取り出す。整数も受け付ける。
func ParamFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		if !math.IsNaN(x) {
			return x, nil
		}
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewConfigurationError(name, "must be a number", v)
}

// ParamString は文字列パラメータを取り出す。
func ParamString(name string, v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.NewConfigurationError(name, "must be a string", v)
}

// ParamBool は真偽値パラメータを取り出す。
func ParamBool(name string, v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, errors.NewConfigurationError(name, "must be a boolean", v)
}

// UnknownParam は推定器が受け付けないパラメータ名のエラーを返す。
func UnknownParam(estimator, name string, v interface{}) error {
	return errors.NewConfigurationError(name, "unknown parameter for "+estimator, v)
}

// OneOf は s が allowed のいずれかであることを検証する。
func OneOf(name, s string, allowed ...string) error {
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return errors.NewConfigurationError(name, "must be one of \""+strings.Join(allowed, "\", \"")+"\"", s)
}

// CopyParams はパラメータマップの浅いコピーを返す。
func CopyParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
