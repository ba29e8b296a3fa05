package model

import (
	"math"

	"github.com/befresh/phmodel/pkg/errors"
)

// SKLearnCompatible はscikit-learn互換のインターフェース
//
// GridSearchCV はこのインターフェースを通してモデルを複製し、
// 候補ごとのハイパーパラメータを設定する。
type SKLearnCompatible interface {
	// GetParams はモデルのハイパーパラメータを取得
	GetParams(deep bool) map[string]interface{}

	// SetParams はモデルのハイパーパラメータを設定
	SetParams(params map[string]interface{}) error

	// Clone はモデルの新しい未学習インスタンスを同じパラメータで作成
	Clone() SKLearnCompatible
}

// RegressorMixin は回帰器のMixinインターフェース
type RegressorMixin interface {
	Regressor
	SKLearnCompatible
}

// ParamInt はSetParamsに渡された値を int に変換する
//
// グリッドの値は int で書かれることが多いが、JSON などから来た場合は
// float64 になるため、整数値であれば受け付ける。
func ParamInt(name string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), nil
		}
	case nil:
		// None
		return 0, nil
	}
	return 0, errors.NewValidationError(name, "must be an integer", value)
}

// ParamBool はSetParamsに渡された値を bool に変換する
func ParamBool(name string, value interface{}) (bool, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return false, errors.NewValidationError(name, "must be a boolean", value)
}
