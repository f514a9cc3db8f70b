package pg

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- JSON helpers ---

func jsonOrEmpty(data []byte, empty string) []byte {
	if data == nil || string(data) == "null" {
		return []byte(empty)
	}
	return data
}

func marshalJSON(v any, empty string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonOrEmpty(data, empty), nil
}

// --- Placeholder helpers ---

// placeholders returns "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func uuidArgs(ids []uuid.UUID) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
