package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供命名空间/操作/命中状态字段，供缓存请求日志复用。
func RequestFields(namespace, op, key string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"namespace": namespace,
		"op":        op,
		"key":       key,
		"cache_hit": cacheHit,
	}
}
