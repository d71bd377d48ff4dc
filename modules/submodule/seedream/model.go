package seedream

// Name - ENGINE_ORDER에서 사용하는 이름
const Name = "seedream"

// Seedream 3.0 모델 ID (Runware - ByteDance)
const SeedreamModelID = "bytedance:seedream-3.0"

// RunwareRequest - Runware API 요청 구조체 (Seedream용)
// Seedream은 negativePrompt, steps, CFGScale을 사용하지 않음
type RunwareRequest struct {
	TaskType       string `json:"taskType"`
	TaskUUID       string `json:"taskUUID"`
	PositivePrompt string `json:"positivePrompt"`
	Model          string `json:"model"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	NumberResults  int    `json:"numberResults"`
	OutputFormat   string `json:"outputFormat"`
}

// RunwareResponse - Runware API 응답 구조체
type RunwareResponse struct {
	Data []struct {
		TaskType  string `json:"taskType"`
		TaskUUID  string `json:"taskUUID"`
		ImageURL  string `json:"imageURL"`
		ImageUUID string `json:"imageUUID"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
	Error string `json:"error,omitempty"`
}
