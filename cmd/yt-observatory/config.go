package main

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

// envKeys lists every config key so YT_OBSERVATORY_* variables reach
// viper.Unmarshal even when the config file does not mention them.
var envKeys = configKeys(reflect.TypeOf(types.ObservatoryConfig{}), "")

// envKeyReplacer maps nested keys to variable names:
// warehouse.project_id -> YT_OBSERVATORY_WAREHOUSE_PROJECT_ID.
var envKeyReplacer = strings.NewReplacer(".", "_")

var durationType = reflect.TypeOf(time.Duration(0))

// configKeys returns the dotted yaml key of every leaf field in t.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		key := prefix + name
		if f.Type.Kind() == reflect.Struct && f.Type != durationType {
			keys = append(keys, configKeys(f.Type, key+".")...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// secondsHook decodes bare numbers into durations as seconds, so
// poll_interval: 120 is two minutes. Values with a unit ("90s", "2m") are
// left to the string duration hook.
func secondsHook(f reflect.Type, t reflect.Type, data any) (any, error) {
	if t != durationType || f == durationType {
		return data, nil
	}
	v := reflect.ValueOf(data)
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(v.Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(v.Uint()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(v.Float() * float64(time.Second)), nil
	case reflect.String:
		if secs, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
	}
	return data, nil
}

// loadConfig decodes viper settings over the defaults using the yaml tag
// names of the config structs.
func loadConfig(v *viper.Viper) (types.ObservatoryConfig, error) {
	cfg := types.DefaultConfig()
	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncType(secondsHook),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
	}
	return cfg, nil
}
