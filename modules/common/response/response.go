package response

import (
	"encoding/json"
	"net/http"
)

// Error codes
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeCoolingDown       = "COOLING_DOWN"
	ErrCodeUnsupported       = "UNSUPPORTED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// ErrorResponse - 실패 응답 공통 구조체
type ErrorResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    string `json:"errorCode,omitempty"`
}

// JSON - 상태 코드와 함께 JSON 응답
func JSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK - {"success":true, <key>: data}
func OK(w http.ResponseWriter, key string, data interface{}) {
	body := map[string]interface{}{"success": true}
	if key != "" {
		body[key] = data
	}
	JSON(w, http.StatusOK, body)
}

// Error - 실패 응답
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Success: false, ErrorMessage: message, ErrorCode: code})
}

// Decode - 요청 본문 JSON 파싱. 실패하면 400 응답 후 false
func Decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body")
		return false
	}
	return true
}
