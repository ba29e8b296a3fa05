package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/pkg/errors"
)

func vec(v ...float64) *mat.VecDense {
	return mat.NewVecDense(len(v), v)
}

type metricFunc func(yTrue, yPred *mat.VecDense) (float64, error)

func TestRegressionMetrics(t *testing.T) {
	tests := []struct {
		name    string
		metric  metricFunc
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{"MSE perfect prediction", MSE, vec(1, 2, 3, 4, 5), vec(1, 2, 3, 4, 5), 0, false},
		// ((0.5)^2 + (0.5)^2 + (-0.5)^2 + (-0.5)^2) / 4
		{"MSE simple case", MSE, vec(1, 2, 3, 4), vec(1.5, 2.5, 2.5, 3.5), 0.25, false},
		// (4 + 4 + 9) / 3
		{"MSE larger errors", MSE, vec(10, 20, 30), vec(12, 18, 33), 17.0 / 3.0, false},
		{"MSE dimension mismatch", MSE, vec(1, 2, 3), vec(1, 2), 0, true},
		{"MSE empty vectors", MSE, &mat.VecDense{}, &mat.VecDense{}, 0, true},

		{"RMSE perfect prediction", RMSE, vec(1, 2, 3), vec(1, 2, 3), 0, false},
		{"RMSE unit error", RMSE, vec(0, 0, 0, 0), vec(1, 1, 1, 1), 1, false},
		{"RMSE dimension mismatch", RMSE, vec(1, 2, 3), vec(1, 2), 0, true},

		{"MAE simple case", MAE, vec(1, 2, 3, 4), vec(1.5, 2.5, 2.5, 3.5), 0.5, false},
		{"MAE negative differences", MAE, vec(1, 2, 3, 4), vec(2, 1, 4, 3), 1, false},
		{"MAE dimension mismatch", MAE, vec(1, 2, 3), vec(1, 2), 0, true},

		{"R2 perfect prediction", R2Score, vec(1, 2, 3, 4, 5), vec(1, 2, 3, 4, 5), 1, false},
		// worse than the mean baseline
		{"R2 reversed", R2Score, vec(1, 2, 3, 4), vec(4, 3, 2, 1), -3, false},
		{"R2 dimension mismatch", R2Score, vec(1, 2, 3), vec(1, 2), 0, true},

		// (0.1 + 0.1) / 2 * 100
		{"MAPE", MAPE, vec(10, 20), vec(11, 18), 10, false},
		{"MAPE skips zeros", MAPE, vec(0, 10), vec(5, 11), 10, false},
		{"MAPE all zeros", MAPE, vec(0, 0), vec(1, 1), 0, true},

		{"explained variance perfect", ExplainedVarianceScore, vec(1, 2, 3), vec(1, 2, 3), 1, false},
		// a constant offset is fully explained
		{"explained variance offset", ExplainedVarianceScore, vec(1, 2, 3), vec(2, 3, 4), 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.metric(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestRMSEIsSqrtMSE(t *testing.T) {
	yTrue := vec(7.1, 6.9, 7.4, 7.0, 6.5)
	yPred := vec(7.0, 7.0, 7.2, 7.1, 6.8)

	mse, err := MSE(yTrue, yPred)
	require.NoError(t, err)
	rmse, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.Equal(t, math.Sqrt(mse), rmse)
}

func TestR2ScoreUndefined(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	got, err := R2Score(vec(3, 3, 3, 3), vec(2, 3, 4, 3))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))

	got, err = R2Score(vec(3), vec(2))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(got))

	require.Len(t, warnings, 2)
	var w *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warnings[0], &w))
}

func TestMatrixVariants(t *testing.T) {
	yTrue := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	yPred := mat.NewDense(4, 1, []float64{1.5, 2.5, 2.5, 3.5})

	mse, err := MSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, mse, 1e-12)

	rmse, err := RMSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rmse, 1e-12)

	mae, err := MAEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mae, 1e-12)

	r2, err := R2ScoreMatrix(yTrue, yPred)
	require.NoError(t, err)
	// 1 - 1.0/5.0
	assert.InDelta(t, 0.8, r2, 1e-12)

	_, err = MAPEMatrix(yTrue, yPred)
	assert.NoError(t, err)
	_, err = ExplainedVarianceScoreMatrix(yTrue, yPred)
	assert.NoError(t, err)
}

func TestMatrixVariantsValidation(t *testing.T) {
	wide := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	_, err := MSEMatrix(wide, wide)
	assert.Error(t, err)

	_, err = R2ScoreMatrix(mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

func BenchmarkMSE(b *testing.B) {
	size := 10000
	yTrue := mat.NewVecDense(size, nil)
	yPred := mat.NewVecDense(size, nil)
	for i := 0; i < size; i++ {
		yTrue.SetVec(i, float64(i))
		yPred.SetVec(i, float64(i)+0.1*float64(i%10))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MSE(yTrue, yPred)
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "1.0", FormatFloat(1))
	assert.Equal(t, "0.25", FormatFloat(0.25))
	assert.Equal(t, "1e-05", FormatFloat(0.00001))
	assert.Equal(t, "nan", FormatFloat(math.NaN()))
	assert.Equal(t, "inf", FormatFloat(math.Inf(1)))
	assert.Equal(t, "-inf", FormatFloat(math.Inf(-1)))
	assert.Equal(t, "1e+16", FormatFloat(1e16))
	assert.Equal(t, "1234567.0", FormatFloat(1234567))
	assert.Equal(t, "0.0001", FormatFloat(0.0001))
	assert.Equal(t, "0.0", FormatFloat(0))
	assert.Equal(t, "-3.0", FormatFloat(-3))
}
