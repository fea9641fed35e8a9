package retry

import "strings"

// MinCredentialLength 以下的凭证被视为无效。
const MinCredentialLength = 10

// CredentialValid 判断凭证是否可用：空值、占位符字面量或长度不足 10 都视为无效。
// 无效凭证直接走本地合成，不会发起网络请求。
func CredentialValid(credential string, placeholders ...string) bool {
	trimmed := strings.TrimSpace(credential)
	if trimmed == "" {
		return false
	}
	for _, p := range placeholders {
		if trimmed == p {
			return false
		}
	}
	return len(trimmed) >= MinCredentialLength
}
