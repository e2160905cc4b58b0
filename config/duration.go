package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Duration 可读写为 "30s" 形式的时长
//
// JSON 中也接受整数纳秒，便于旧配置直接写数字：
//
//	{"publisher_timeout": "30s"}
//	{"publisher_timeout": 30000000000}
//
// 同时实现 encoding.TextUnmarshaler 和 flag.Value，环境变量与命令行可共用解析。
type Duration time.Duration

// ParseDuration 解析 "5s" 或纯数字纳秒
func ParseDuration(s string) (Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return Duration(d), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Duration(n), nil
	}
	return 0, fmt.Errorf("invalid duration %q", s)
}

// UnmarshalJSON 实现 json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch raw := v.(type) {
	case string:
		return d.UnmarshalText([]byte(raw))
	case float64:
		*d = Duration(int64(raw))
		return nil
	default:
		return fmt.Errorf("duration must be a string or nanoseconds, got %s", data)
	}
}

// MarshalJSON 输出为字符串形式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Set 实现 flag.Value
func (d *Duration) Set(s string) error {
	return d.UnmarshalText([]byte(s))
}

// Duration 返回 time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
