package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "phmodel: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "phmodel: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 5, 4, 1)

	assert.Equal(t, "phmodel: Predict: dimension mismatch on axis 1 (features). Expected 5, got 4", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 5, dimErr.Expected)
	assert.Equal(t, 4, dimErr.Got)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForestRegressor", "Predict")

	want := "phmodel: RandomForestRegressor: this model is not fitted yet. Call Fit() before using Predict()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("min_samples_split", "must be at least 2", 1)

	assert.Equal(t, "phmodel: validation failed for parameter 'min_samples_split': must be at least 2 (got: 1)", err.Error())

	var valErr *ValidationError
	require.True(t, As(err, &valErr))
	assert.Equal(t, "min_samples_split", valErr.ParamName)
}

func TestNewValueError(t *testing.T) {
	err := NewValueError("TrainTestSplit", "test_size must be in (0, 1)")

	assert.Equal(t, "phmodel: TrainTestSplit: test_size must be in (0, 1)", err.Error())

	var valErr *ValueError
	assert.True(t, As(err, &valErr))
}

func TestInputShapeError(t *testing.T) {
	err := NewInputShapeError("prediction", []int{10, 5}, []int{10, 4})
	assert.Equal(t, "phmodel: input shape mismatch in prediction phase. Expected shape [10 5], got [10 4]", err.Error())

	withFeature := &InputShapeError{Phase: "loading", Expected: []int{1}, Got: []int{0}, Feature: "nh3"}
	assert.Contains(t, withFeature.Error(), "for feature 'nh3'")
}

func TestUndefinedMetricWarning(t *testing.T) {
	w := NewUndefinedMetricWarning("r2", "constant y_true", math.NaN())
	assert.True(t, strings.HasPrefix(w.Error(), "'r2' is ill-defined"))
	assert.Contains(t, w.Error(), "constant y_true")
}

func TestWarnRoutesToZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("r2", "constant y_true", 0))

	require.Len(t, got, 1)
	var w *UndefinedMetricWarning
	assert.True(t, As(got[0], &w))
}

func TestWarnFallsBackToHandler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(New("plain warning"))

	require.Len(t, got, 1)
	assert.Equal(t, "plain warning", got[0].Error())
}

func TestCheckNumericalStability(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("ok", []float64{1, 2, 3}))

	err := CheckNumericalStability("load_column", []float64{1, math.NaN(), 3, math.Inf(1)})
	require.Error(t, err)

	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 1, numErr.Index)
	assert.Len(t, numErr.Values, 2)
	assert.Contains(t, err.Error(), "load_column")

	assert.Error(t, CheckScalar("score", math.Inf(-1)))
	assert.NoError(t, CheckScalar("score", 0.5))
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 0.0, SafeDivide(1, 0))
	assert.Equal(t, 0.5, SafeDivide(1, 2))
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrMissingColumn, "ph_values")

	assert.True(t, Is(wrapped, ErrMissingColumn))
	assert.Contains(t, wrapped.Error(), "ph_values")
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows, got %d", "ReadCSV", 1, 0)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in ReadCSV: expected 1 rows, got 0")
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	assert.Contains(t, err3.Error(), "base error")
	assert.Contains(t, fmt.Sprintf("%+v", err3), "errors_test.go")
}
