package storage

import (
	"encoding/json"
	"strconv"

	"escena-studio/modules/common/fallback"
	"escena-studio/modules/common/model"
)

// NormalizeImageItems - 이전 형식 이미지 레코드를 현재 형식으로 변환
//   - type 없음 → "image"
//   - imageUrl / src → mediaUrl
//   - image가 아닌 항목, URL이나 id가 없는 항목은 제외
func NormalizeImageItems(raw []byte) ([]byte, error) {
	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if normalized, ok := normalizeImageItem(m); ok {
			out = append(out, normalized)
		}
	}
	return json.Marshal(out)
}

func normalizeImageItem(m map[string]interface{}) (map[string]interface{}, bool) {
	itemType := fallback.SafeString(m["type"], model.AssetTypeImage)
	if itemType != model.AssetTypeImage {
		return nil, false
	}

	mediaURL := fallback.FirstString(m, "", "mediaUrl", "imageUrl", "src")
	if mediaURL == "" {
		return nil, false
	}

	id := fallback.SafeString(m["id"], "")
	if id == "" {
		if n := fallback.SafeTimestamp(m["id"], 0); n > 0 {
			id = strconv.FormatInt(n, 10)
		}
	}
	if id == "" {
		return nil, false
	}

	delete(m, "imageUrl")
	delete(m, "src")
	m["id"] = id
	m["type"] = itemType
	m["mediaUrl"] = mediaURL
	m["timestamp"] = fallback.SafeTimestamp(m["timestamp"], 0)
	m["aspectRatio"] = fallback.SafeAspectRatio(m["aspectRatio"])
	if _, ok := m["votes"]; ok {
		m["votes"] = fallback.SafeInt(m["votes"], 0)
	}
	return m, true
}
