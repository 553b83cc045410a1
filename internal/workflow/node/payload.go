package node

import (
	"encoding/json"
	"regexp"
	"strings"

	apperrors "z-novel-storygen/pkg/errors"
)

// fencedJSON 匹配 ```json 围栏；贪婪匹配到最后一个 ```，与多行内容一起捕获
var fencedJSON = regexp.MustCompile("(?s)```json(.*)```")

// ExtractFencedPayload 提取 ```json ... ``` 围栏内的文本；没有围栏时原样返回输入。
func ExtractFencedPayload(raw string) string {
	m := fencedJSON.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return m[1]
}

// DecodeChapterUnits 将载荷解码为章节单元数组，顺序与数组一致。
// 只接受字符串数组；null、对象、数字数组均视为格式错误。
func DecodeChapterUnits(payload string) ([]string, error) {
	var units []string
	if err := json.Unmarshal([]byte(payload), &units); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDecodeFailed, "chapter list is not a JSON array of strings").
			WithDetail(Preview(strings.TrimSpace(payload)))
	}
	if units == nil {
		return nil, apperrors.New(apperrors.CodeDecodeFailed, "chapter list is not a JSON array of strings").
			WithDetail(Preview(strings.TrimSpace(payload)))
	}
	return units, nil
}
