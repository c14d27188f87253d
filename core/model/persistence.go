package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// 学習済みの感受性モデルを将来シナリオの推論で再利用するために使う。
//
// 使用例:
//
//	err := model.SaveModel(forest, "susceptibility.gob")
func SaveModel(m interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create model file %s", filename)
	}
	if err := SaveModelToWriter(m, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrapf(file.Close(), "close model file %s", filename)
}

// LoadModel はファイルからモデルを読み込む
//
// 使用例:
//
//	var forest ensemble.RandomForestClassifier
//	err := model.LoadModel(&forest, "susceptibility.gob")
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "open model file %s", filename)
	}
	defer file.Close()
	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "decode model")
	}
	return nil
}
