package runnerapi

import "encoding/json"

func decodeJSON(raw string, v any) error {
	return json.Unmarshal([]byte(raw), v)
}
