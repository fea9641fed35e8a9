package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CallFields 提供 service/call/target/attempt 字段，供 GitHub/LLM 调用日志复用。
func CallFields(service, call, target string, attempt int) logrus.Fields {
	return logrus.Fields{
		"service": service,
		"call":    call,
		"target":  target,
		"attempt": attempt,
	}
}

// CacheFields 提供缓存操作字段，key 为空时省略。
func CacheFields(op, key, backend string) logrus.Fields {
	fields := logrus.Fields{
		"action":  "cache",
		"op":      op,
		"backend": backend,
	}
	if key != "" {
		fields["key"] = key
	}
	return fields
}
