package client

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/keboola/go-httpchain/pkg/request"
)

// defaultsFile is the file format of LoadDefaults.
type defaultsFile struct {
	BaseURL      string         `yaml:"baseURL"`
	Method       string         `yaml:"method"`
	Headers      map[string]any `yaml:"headers"`
	ResponseType string         `yaml:"responseType"`
	// Timeout is a duration string, e.g. "1m30s", or a number of milliseconds.
	Timeout    any            `yaml:"timeout"`
	Extensions map[string]any `yaml:"extensions"`
}

// LoadDefaults loads defaults of a Client from a YAML file, see ParseDefaults.
func LoadDefaults(path string) (request.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return request.Config{}, fmt.Errorf("failed to read defaults file: %w", err)
	}
	return ParseDefaults(data)
}

// ParseDefaults parses defaults of a Client, the format is YAML (or JSON).
// The result can be used with the WithDefaults option or with the Client.Create method.
//
//	baseURL: https://api.example.com
//	timeout: 30s
//	headers:
//	  common:
//	    X-App: my-app
//	  post:
//	    Content-Type: application/x-www-form-urlencoded
func ParseDefaults(data []byte) (request.Config, error) {
	var file defaultsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return request.Config{}, fmt.Errorf("failed to parse YAML defaults: %w", err)
	}

	timeout, err := parseTimeout(file.Timeout)
	if err != nil {
		return request.Config{}, err
	}

	cfg := request.Config{
		BaseURL:      file.BaseURL,
		Method:       file.Method,
		Headers:      file.Headers,
		ResponseType: file.ResponseType,
		Timeout:      timeout,
	}
	for k, v := range file.Extensions {
		cfg = cfg.WithExtension(k, v)
	}
	return cfg, nil
}

func parseTimeout(v any) (time.Duration, error) {
	switch value := v.(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf(`invalid timeout "%s": %w`, value, err)
		}
		return d, nil
	default:
		ms, err := cast.ToInt64E(value)
		if err != nil {
			return 0, fmt.Errorf(`invalid timeout "%v": %w`, value, err)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
}
