package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Ternary returns a if cond is true, else b.
func Ternary(cond bool, a, b any) any {
	if cond {
		return a
	}
	return b
}

// ForEach runs fn over all elements, stopping at the first error.
func ForEach[T any](elements []T, fn func(element T) error) error {
	for _, element := range elements {
		if err := fn(element); err != nil {
			return err
		}
	}
	return nil
}

// JoinInt64 renders ids as a comma-separated SQL id list.
func JoinInt64(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// SplitIDList parses a configured comma-separated id list ("2000,2001").
// Whitespace around entries is tolerated; empty input yields nil.
func SplitIDList(list string) ([]int64, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse id list entry %q: %s", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UnmarshalFile reads a JSON file into dest.
func UnmarshalFile(path string, dest any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %s", path, err)
	}
	if err := json.Unmarshal(content, dest); err != nil {
		return fmt.Errorf("failed to unmarshal file %s: %s", path, err)
	}
	return nil
}

// ToJSON renders v as compact JSON, for logging and batch emission.
func ToJSON(v any) string {
	content, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(content)
}
