package httpx

import (
	"fmt"
	"strings"
)

// messageFields are the response fields scanned for failure keywords.
var messageFields = []string{"message", "msg", "error_msg", "errmsg", "error_message"}

// defaultFailureKeywords mark a decoded response as a business failure.
// The localized entries cover rate-limit phrasing returned by APIs that
// report errors in the message body instead of the HTTP status.
var defaultFailureKeywords = []string{
	"rate limit",
	"too many",
	"forbidden",
	"throttle",
	"slow down",
	"try again later",
	"频繁",
	"限流",
	"访问受限",
	"请稍后",
	"请求过快",
}

// FailureReason inspects a decoded body for the envelope conventions
// APIs use to report errors with a 200 status. It returns a non-empty
// reason when the response is a business failure; such responses are
// retried like transport errors.
func FailureReason(body any, keywords []string) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}

	if v, present := m["success"]; present && isFalsy(v) {
		return fmt.Sprintf("success=%v", v)
	}
	if v, present := m["code"]; present && !isSuccessCode(v) {
		return fmt.Sprintf("code=%v", v)
	}
	if v, present := m["status"]; present && isFailureStatus(v) {
		return fmt.Sprintf("status=%v", v)
	}
	if v, present := m["error"]; present && !isFalsy(v) {
		return fmt.Sprintf("error=%v", v)
	}

	for _, field := range messageFields {
		v, present := m[field]
		if !present {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(s)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return fmt.Sprintf("%s contains %q", field, kw)
			}
		}
	}
	return ""
}

// buildKeywords merges extra configured keywords into the defaults,
// lowercased for the case-insensitive scan.
func buildKeywords(extra []string) []string {
	keywords := make([]string, 0, len(defaultFailureKeywords)+len(extra))
	keywords = append(keywords, defaultFailureKeywords...)
	for _, kw := range extra {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// isFalsy mirrors loose envelope semantics: nil, false, zero and the
// empty string all count as "not set".
func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == ""
	case float64:
		return t == 0
	case int:
		return t == 0
	default:
		return false
	}
}

// isSuccessCode accepts the usual success spellings of a code field.
func isSuccessCode(v any) bool {
	switch t := v.(type) {
	case float64:
		return t == 0 || t == 200
	case int:
		return t == 0 || t == 200
	case string:
		return t == "0" || t == "200"
	default:
		return false
	}
}

// isFailureStatus matches the failure spellings of a status field.
func isFailureStatus(v any) bool {
	switch t := v.(type) {
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case string:
		return t == "false" || t == "error" || t == "0"
	default:
		return false
	}
}
