package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/befresh/phmodel/pkg/errors"
)

// columnVectors は n×1 行列の組を VecDense に変換する
func columnVectors(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}

	t := mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue))
	p := mat.NewVecDense(rPred, mat.Col(nil, 0, yPred))
	return t, p, nil
}

// MSEMatrix は行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnVectors("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// RMSEMatrix は行列形式の入力に対してRMSEを計算する
func RMSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnVectors("RMSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return RMSE(t, p)
}

// MAEMatrix は行列形式の入力に対してMAEを計算する
func MAEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnVectors("MAEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MAE(t, p)
}

// R2ScoreMatrix は行列形式の入力に対してR²を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnVectors("R2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return R2Score(t, p)
}

// MAPEMatrix は行列形式の入力に対してMAPEを計算する
func MAPEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnVectors("MAPEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MAPE(t, p)
}

// ExplainedVarianceScoreMatrix は行列形式の入力に対して説明分散スコアを計算する
func ExplainedVarianceScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnVectors("ExplainedVarianceScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return ExplainedVarianceScore(t, p)
}
