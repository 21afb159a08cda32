package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/pdbench/pkg/errors"
)

// SaveModel はモデル（または学習済みオブジェクトを含むアーティファクト）をgob形式でファイルに保存する。
// インターフェース型のフィールドに入る具象型は事前に gob.Register しておくこと。
//
// 使用例:
//
//	err := model.SaveModel(artifact, "SVM_model.gob")
func SaveModel(m interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	if err := SaveModelToWriter(m, file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む。m はポインタであること。
//
// 使用例:
//
//	var a pipeline.Artifact
//	err := model.LoadModel(&a, "SVM_model.gob")
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()
	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
