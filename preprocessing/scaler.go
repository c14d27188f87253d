// Package preprocessing provides feature scaling applied in front of the
// linear susceptibility classifier.
package preprocessing

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/YuminosukeSato/firehazard/core/model"
	"github.com/YuminosukeSato/firehazard/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// StandardScaler は特徴量を平均0、分散1に標準化するスケーラー
//
// scikit-learnのStandardScalerと同等。分散は母分散(ddof=0)で計算し、
// 分散がほぼ0の列はスケール1として扱う。
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// WithMean は平均を引くかどうか
	WithMean bool

	// WithStd は標準偏差で割るかどうか
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定(平均と標準偏差の両方を使用)で作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("StandardScaler.Fit", X); err != nil {
		return err
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		if s.WithMean {
			sum := 0.0
			for i := 0; i < r; i++ {
				sum += X.At(i, j)
			}
			s.Mean[j] = sum / float64(r)
		}

		s.Scale[j] = 1.0
		if s.WithStd {
			sumSquares := 0.0
			for i := 0; i < r; i++ {
				diff := X.At(i, j) - s.Mean[j]
				sumSquares += diff * diff
			}
			// 分散が0の場合はスケールを1にする（ゼロ除算を避ける）
			if std := math.Sqrt(sumSquares / float64(r)); std >= 1e-8 {
				s.Scale[j] = std
			}
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

func (s *StandardScaler) check(X mat.Matrix, method string) error {
	if err := s.state.RequireFitted("StandardScaler", method); err != nil {
		return err
	}
	_, c := X.Dims()
	return s.state.RequireFeatures("StandardScaler."+method, c)
}

// Transform は学習済みパラメータでデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.check(X, "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return result, nil
}

// FitTransform は学習と変換を同時に行う
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.check(X, "InverseTransform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return result, nil
}

// IsFitted はFit済みかどうかを返す
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.state.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

type scalerSnapshot struct {
	Mean      []float64
	Scale     []float64
	NFeatures int
	WithMean  bool
	WithStd   bool
	Fitted    bool
}

// GobEncode implements gob.GobEncoder.
func (s *StandardScaler) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(scalerSnapshot{
		Mean:      s.Mean,
		Scale:     s.Scale,
		NFeatures: s.NFeatures,
		WithMean:  s.WithMean,
		WithStd:   s.WithStd,
		Fitted:    s.state.IsFitted(),
	})
	return buf.Bytes(), errors.Wrap(err, "encode standard scaler")
}

// GobDecode implements gob.GobDecoder.
func (s *StandardScaler) GobDecode(data []byte) error {
	var snap scalerSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return errors.Wrap(err, "decode standard scaler")
	}
	*s = *NewStandardScaler(snap.WithMean, snap.WithStd)
	s.Mean = snap.Mean
	s.Scale = snap.Scale
	s.NFeatures = snap.NFeatures
	s.state.SetDimensions(snap.NFeatures, 0)
	if snap.Fitted {
		s.state.SetFitted()
	}
	return nil
}
