package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Scalar field chains. Each chain tries sources in a fixed priority order and
// settles for the zero value; none of them ever fail.

// phoneNumber: sessions[].phone_numbers.to, then sessions[].to_number, then
// metadata.phone_number.
func phoneNumber(base map[string]any) string {
	for _, s := range asSlice(base["sessions"]) {
		session := asMap(s)
		if session == nil {
			continue
		}
		if numbers := asMap(session["phone_numbers"]); numbers != nil {
			if to := str(numbers["to"]); to != "" {
				return to
			}
		}
		if to := str(session["to_number"]); to != "" {
			return to
		}
	}
	if meta := asMap(base["metadata"]); meta != nil {
		if to := str(meta["phone_number"]); to != "" {
			return to
		}
	}
	return ""
}

// duration: explicit sessions[].duration, then sessions[].output.duration,
// then a session-type event's output.duration, finally derived from the
// completed/started pair when that difference is positive.
func duration(base map[string]any, started time.Time, completed *time.Time) *int {
	for _, s := range asSlice(base["sessions"]) {
		session := asMap(s)
		if session == nil {
			continue
		}
		if d, ok := seconds(session["duration"]); ok {
			return &d
		}
		if output := asMap(session["output"]); output != nil {
			if d, ok := seconds(output["duration"]); ok {
				return &d
			}
		}
	}
	for _, e := range asSlice(base["events"]) {
		event := asMap(e)
		if event == nil || str(event["type"]) != "session" {
			continue
		}
		if output := asMap(event["output"]); output != nil {
			if d, ok := seconds(output["duration"]); ok {
				return &d
			}
		}
	}
	if completed != nil && !started.IsZero() {
		if d := int(completed.Sub(started).Seconds()); d > 0 {
			return &d
		}
	}
	return nil
}

var (
	contactKeys = []string{"contact_name", "name", "nombre"}
	companyKeys = []string{"company_name", "company", "empresa"}
)

// contact: metadata, then trigger_data, then input_data, each probed with the
// usual key aliases (including the Spanish ones older triggers send).
func contact(base map[string]any) (contactName, companyName string) {
	for _, key := range []string{"metadata", "trigger_data", "input_data"} {
		src := asMap(base[key])
		if src == nil {
			continue
		}
		if contactName == "" {
			contactName = firstString(src, contactKeys...)
		}
		if companyName == "" {
			companyName = firstString(src, companyKeys...)
		}
		if contactName != "" && companyName != "" {
			break
		}
	}
	return contactName, companyName
}

// --- loosely-typed JSON access ---

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if sub := asMap(m[k]); sub != nil {
			return sub
		}
	}
	return nil
}

// seconds coerces the platform's assorted duration encodings (number, numeric
// string) into whole seconds.
func seconds(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return int(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil || f < 0 {
			return 0, false
		}
		return int(f), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || f < 0 {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

func parseTime(v any) time.Time {
	s := str(v)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func firstTime(m map[string]any, keys ...string) time.Time {
	for _, k := range keys {
		if t := parseTime(m[k]); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
