package storage

import (
	"time"

	"escena-studio/modules/common/model"
)

// 컬렉션 이름 (키는 "<prefix>-<name>")
const (
	CollectionGallery        = "gallery"
	CollectionClassification = "classification"
	CollectionPromptHistory  = "prompt-history"
)

// Store - 세 컬렉션 묶음
type Store struct {
	Gallery        *Collection[model.GalleryEntry]
	Classification *Collection[model.ClassificationEntry]
	PromptHistory  *Collection[model.PromptHistoryEntry]
}

// New - KV 위에 세 컬렉션 구성
func New(kv KV, prefix string, window time.Duration, opts ...Option) *Store {
	return &Store{
		Gallery: NewCollection[model.GalleryEntry](kv, Key(prefix, CollectionGallery), window, opts...).
			withNormalizer(NormalizeImageItems),
		Classification: NewCollection[model.ClassificationEntry](kv, Key(prefix, CollectionClassification), window, opts...).
			withNormalizer(NormalizeImageItems),
		PromptHistory: NewCollection[model.PromptHistoryEntry](kv, Key(prefix, CollectionPromptHistory), window, opts...),
	}
}

// Key - 컬렉션 키
func Key(prefix, collection string) string {
	if prefix == "" {
		return collection
	}
	return prefix + "-" + collection
}
