package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Duration 配置文件中的时长
//
// JSON 与 TOML 中均写作 Go 时长字符串，也接受整数纳秒：
//
//	{"dispatcher": {"call_timeout": "30s"}, "transport": {"dial_timeout": 5000000000}}
//
//	[transport]
//	write_timeout = "10s"
type Duration time.Duration

// UnmarshalJSON 接受时长字符串或整数纳秒
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration %s: want a string like \"30s\" or integer nanoseconds", data)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON 输出时长字符串，与 Save 写出的文件保持可读
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalText 供 TOML 解码：时长字符串或十进制纳秒
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if v, err := time.ParseDuration(s); err == nil {
		*d = Duration(v)
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", s)
	}
	*d = Duration(n)
	return nil
}

// MarshalText 实现 encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Duration 返回 time.Duration
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }
