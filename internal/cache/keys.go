package cache

import "fmt"

func EvaluationKey(version int64, fpHash string) string {
	return fmt.Sprintf("kb:eval:v%d:%s", version, fpHash)
}

func BankVersionKey() string {
	return "kb:version"
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
