// Package metrics は感受性モデルの評価指標を提供する。
// 入力はgonumのベクトルで、空入力・長さ不一致は構造化エラーとして返す。
package metrics

import (
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
//
// 感受性評価では、テストデータの陽性クラス確率と0/1ラベルの間で計算する。
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// vecLen は nil を長さ0として扱う
func vecLen(v *mat.VecDense) int {
	if v == nil || v.IsEmpty() {
		return 0
	}
	return v.Len()
}

// checkPair は2つのベクトルが空でなく同じ長さであることを検証する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := vecLen(yTrue)
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if m := vecLen(yPred); m != n {
		return 0, errors.NewDimensionError(op, n, m, 0)
	}
	return n, nil
}
