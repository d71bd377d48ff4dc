package animation

import "escena-studio/modules/engine"

// Request - 애니메이션 요청. GalleryID 또는 Image(data URI) 중 하나 필요
type Request struct {
	GalleryID string `json:"galleryId,omitempty"`
	Image     string `json:"image,omitempty"`
	Prompt    string `json:"prompt"`
}

// Job - KV에 저장되는 애니메이션 작업
type Job struct {
	ID         string           `json:"id"`
	Status     engine.TaskState `json:"status"`
	GalleryID  string           `json:"galleryId,omitempty"`
	Prompt     string           `json:"prompt"`
	SourceMIME string           `json:"sourceMimeType"`
	VideoMIME  string           `json:"videoMimeType,omitempty"`
	VideoURI   string           `json:"videoUri,omitempty"`
	HasVideo   bool             `json:"hasVideo"`
	Cancelled  bool             `json:"cancelled,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  engine.ErrorKind `json:"errorKind,omitempty"`
	CreatedAt  int64            `json:"createdAt"`
	UpdatedAt  int64            `json:"updatedAt"`
}
