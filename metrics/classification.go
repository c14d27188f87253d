package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// logLossEpsilon は log(0) を避けるためのクリッピング幅
const logLossEpsilon = 1e-15

// AUC はROC曲線下面積を計算する
//
// 順位に基づくMann-Whitney統計量で計算し、同順位のスコアには平均順位を割り当てる。
// ラベルが単一クラスのみの場合は未定義となり、UndefinedMetricWarning を発生させて 0.5 を返す。
//
// パラメータ:
//   - yTrue: 0/1 の正解ラベル
//   - yPred: 陽性クラスのスコアまたは確率
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b])
	})

	// 同順位グループに平均順位（1始まり）を割り当てる
	var rankSumPos float64
	var nPos int
	for start := 0; start < n; {
		end := start + 1
		for end < n && yPred.AtVec(idx[end]) == yPred.AtVec(idx[start]) {
			end++
		}
		avgRank := float64(start+end+1) / 2
		for k := start; k < end; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSumPos += avgRank
				nPos++
			}
		}
		start = end
	}

	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	u := rankSumPos - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// BinaryLogLoss は二値交差エントロピーを計算する
//
// 予測確率は [eps, 1-eps] にクリップされる。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := errors.ClipValue(yPred.AtVec(i), logLossEpsilon, 1-logLossEpsilon)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.Wrapf(errors.ErrNotBinary, "%s: got label %v at index %d", op, v, i)
		}
	}
	return nil
}
