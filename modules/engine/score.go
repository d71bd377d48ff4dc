package engine

import (
	"strconv"
	"strings"
)

// NeutralScore - 평가 응답을 해석할 수 없을 때 사용하는 점수
const NeutralScore = 50

// ParseScore - 정수 0..100 파싱. 앞쪽 정수만 읽음 ("85." → 85)
func ParseScore(engineName, text string) (int, error) {
	trimmed := strings.TrimSpace(text)
	end := 0
	for end < len(trimmed) && (trimmed[end] >= '0' && trimmed[end] <= '9' || (end == 0 && trimmed[end] == '-')) {
		end++
	}
	score, err := strconv.Atoi(trimmed[:end])
	if err != nil {
		return 0, Malformed(engineName, "rate", "unparseable score %q", text)
	}
	if score < 0 || score > 100 {
		return 0, Malformed(engineName, "rate", "score out of range: %d", score)
	}
	return score, nil
}

// ScoreOrNeutral - 파싱 실패(MalformedResponse)만 50으로 대체, 나머지 에러는 그대로
func ScoreOrNeutral(score int, err error) (int, error) {
	if err == nil {
		return score, nil
	}
	if KindOf(err) == KindMalformedResponse {
		return NeutralScore, nil
	}
	return 0, err
}
