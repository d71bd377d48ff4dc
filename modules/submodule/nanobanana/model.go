package nanobanana

// Name - ENGINE_ORDER에서 사용하는 이름
const Name = "nanobanana"

// 응답에 이미지가 없을 때 찾는 최대 후보 수
const maxCandidates = 4
