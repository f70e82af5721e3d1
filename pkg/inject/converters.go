package inject

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var listSeparator = regexp.MustCompile(`[, ]+`)

// SplitList splits raw on runs of commas and spaces. Trailing empty tokens
// are dropped, a leading separator produces one leading empty token, and a
// string without separators is returned as its only token.
func SplitList(raw string) []string {
	parts := listSeparator.Split(raw, -1)
	if len(parts) == 1 {
		return parts
	}
	end := len(parts)
	for end > 0 && parts[end-1] == "" {
		end--
	}
	return parts[:end]
}

// NewDefaultRegistry returns a registry with converters for the primitive
// and list types used by settings structs. Enumerations are registered by
// the package that owns them.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterFunc(r, parseInt32)
	RegisterFunc(r, func(raw string) (int, error) {
		v, err := parseInt32(raw)
		return int(v), err
	})
	RegisterFunc(r, parseFloat32)
	RegisterFunc(r, func(raw string) (float64, error) {
		return strconv.ParseFloat(raw, 64)
	})
	RegisterFunc(r, parseBool)
	RegisterFunc(r, func(raw string) (string, error) {
		return raw, nil
	})
	RegisterFunc(r, time.ParseDuration)
	RegisterList(r, func(raw string) (string, error) {
		return raw, nil
	})
	RegisterList(r, parseFloat32)
	return r
}

func parseInt32(raw string) (int32, error) {
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func parseFloat32(raw string) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}
