package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Global.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.Global.StoragePath = absStorage

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", "./storage")
	v.SetDefault("ShutdownTimeout", "10s")
	v.SetDefault("Namespaces", []string{"default"})
}

func applyDefaults(cfg *Config) {
	if cfg.Global.ListenPort == 0 {
		cfg.Global.ListenPort = 5000
	}
	if cfg.Global.LogLevel == "" {
		cfg.Global.LogLevel = "info"
	}
	if cfg.Global.ShutdownTimeout.DurationValue() == 0 {
		cfg.Global.ShutdownTimeout = Duration(10 * time.Second)
	}
	if len(cfg.Namespaces) == 0 {
		cfg.Namespaces = []string{"default"}
	}
}

// durationDecodeHook 让 mapstructure 能将字符串/整数统一解码为 Duration。
func durationDecodeHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}

		var d Duration
		switch from.Kind() {
		case reflect.String:
			if err := d.UnmarshalText([]byte(data.(string))); err != nil {
				return nil, err
			}
			return d, nil
		case reflect.Int, reflect.Int32, reflect.Int64:
			seconds := reflect.ValueOf(data).Int()
			if err := d.UnmarshalText([]byte(fmt.Sprintf("%ds", seconds))); err != nil {
				return nil, err
			}
			return d, nil
		default:
			return data, nil
		}
	}
}
