// Package errors はパイプライン全体のエラーハンドリングと警告システムを提供します。
// ラスタの位置合わせ、サンプリング、ハザード分類で発生する失敗を構造化された型として表現し、
// cockroachdb/errors によるスタックトレースと zerolog による構造化出力を備えます。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("firehazard-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
// UnmappedCodeWarning などの非致命的な警告の処理方法を制御できます。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// ConvergenceWarning は最適化アルゴリズムが収束しなかった場合に発生する警告です。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations", w.Algorithm, w.Iterations)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning は新しいConvergenceWarningを作成します。
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// DataConversionWarning はデータの型が暗黙的に変換された場合に発生する警告です。
// 例えば、カテゴリ値ラスタに小数が含まれていて整数に丸められた場合など。
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、AUCを計算する際にラベルが単一クラスしか含まない場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// UnmappedCodeWarning は土地被覆コードが燃料テーブルに存在しない場合の警告です。
// 該当セルには -1 が割り当てられ、処理は継続されます。
type UnmappedCodeWarning struct {
	Table string
	Code  int
	Cells int // このコードを持つセル数
}

func (w *UnmappedCodeWarning) Error() string {
	return fmt.Sprintf("code %d has no entry in %s lookup (%d cells set to -1)", w.Code, w.Table, w.Cells)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UnmappedCodeWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("table", w.Table).
		Int("code", w.Code).
		Int("cells", w.Cells).
		Str("type", "UnmappedCodeWarning")
}

// NewUnmappedCodeWarning は新しいUnmappedCodeWarningを作成します。
func NewUnmappedCodeWarning(table string, code, cells int) *UnmappedCodeWarning {
	return &UnmappedCodeWarning{Table: table, Code: code, Cells: cells}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Score` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("firehazard: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("firehazard: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// AlignmentError は同時に使われるラスタ層の形状・ジオトランスフォーム、
// または学習時と推論時の特徴量列が一致しない場合のエラーです。
type AlignmentError struct {
	Op       string
	Label    string // 不一致を起こした層または列
	Expected string
	Got      string
}

func (e *AlignmentError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("firehazard: %s: layer %q is not aligned: expected %s, got %s", e.Op, e.Label, e.Expected, e.Got)
	}
	return fmt.Sprintf("firehazard: %s: inputs are not aligned: expected %s, got %s", e.Op, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *AlignmentError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("label", e.Label).
		Str("expected", e.Expected).
		Str("got", e.Got).
		Str("type", "AlignmentError")
}

// NewAlignmentError は新しいAlignmentErrorを作成し、スタックトレースを付与します。
func NewAlignmentError(op, label, expected, got string) error {
	err := &AlignmentError{Op: op, Label: label, Expected: expected, Got: got}
	return errors.WithStack(err)
}

// NewShapeAlignmentError はグリッド形状の不一致からAlignmentErrorを作成します。
func NewShapeAlignmentError(op, label string, wantRows, wantCols, gotRows, gotCols int) error {
	return NewAlignmentError(op, label,
		fmt.Sprintf("%dx%d", wantRows, wantCols),
		fmt.Sprintf("%dx%d", gotRows, gotCols))
}

// InsufficientDataError はサンプリングや統計計算に必要なデータが不足している場合のエラーです。
// 例えば、火災発生ピクセルが0件の場合など。
type InsufficientDataError struct {
	Op    string
	Class string // "presence", "absence", "valid pixels" など
	Have  int
	Need  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("firehazard: %s: insufficient %s: have %d, need at least %d", e.Op, e.Class, e.Have, e.Need)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InsufficientDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("class", e.Class).
		Int("have", e.Have).
		Int("need", e.Need).
		Str("type", "InsufficientDataError")
}

// NewInsufficientDataError は新しいInsufficientDataErrorを作成し、スタックトレースを付与します。
func NewInsufficientDataError(op, class string, have, need int) error {
	err := &InsufficientDataError{Op: op, Class: class, Have: have, Need: need}
	return errors.WithStack(err)
}

// ClassificationRangeError は順序クラス値がルックアップ行列の範囲外にある場合のエラーです。
// 負のインデックスによる誤った行の参照を防ぎます。
type ClassificationRangeError struct {
	Op    string
	Axis  string // "susceptibility" または "fuel"
	Value int
	Min   int
	Max   int
}

func (e *ClassificationRangeError) Error() string {
	return fmt.Sprintf("firehazard: %s: %s class %d out of range [%d, %d]", e.Op, e.Axis, e.Value, e.Min, e.Max)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ClassificationRangeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("axis", e.Axis).
		Int("value", e.Value).
		Int("min", e.Min).
		Int("max", e.Max).
		Str("type", "ClassificationRangeError")
}

// NewClassificationRangeError は新しいClassificationRangeErrorを作成し、スタックトレースを付与します。
func NewClassificationRangeError(op, axis string, value, min, max int) error {
	err := &ClassificationRangeError{Op: op, Axis: axis, Value: value, Min: min, Max: max}
	return errors.WithStack(err)
}

// FormatError はラスタ・ベクタファイルの内容が期待される形式でない場合のエラーです。
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("firehazard: %s: %s", e.Path, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *FormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("reason", e.Reason).
		Str("type", "FormatError")
}

// NewFormatError は新しいFormatErrorを作成し、スタックトレースを付与します。
func NewFormatError(path, reason string) error {
	err := &FormatError{Path: path, Reason: reason}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
// `ValueError`よりも具体的なバリデーションロジックの失敗を示します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("firehazard: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("firehazard: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("firehazard: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("firehazard: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// 特徴量行列に NaN や Inf が含まれている場合などに検出されます。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("firehazard: numerical instability detected in %s at index %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrNotBinary は二値ラベル以外が渡された場合のエラーです。
	ErrNotBinary = New("labels must be binary (0 or 1)")
)
