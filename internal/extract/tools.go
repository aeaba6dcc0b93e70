package extract

import "encoding/json"

// Tool extraction from the two detail generations.
//
// v2 details carry sessions[].messages (or .transcript) where tool calls are
// entries with type "tool_call" or role "tool". v1 details carry events[]:
// AI-integration events wrap the invocation inside a response object, either
// as flat tool_name/function_name fields or as a serialized function_call
// whose arguments is a JSON-encoded string. Events of type "tool_call" are a
// second, independent source.

func sessionTools(base map[string]any) []ToolInvocation {
	var out []ToolInvocation
	for _, s := range asSlice(base["sessions"]) {
		session := asMap(s)
		if session == nil {
			continue
		}
		entries := asSlice(session["messages"])
		if entries == nil {
			entries = asSlice(session["transcript"])
		}
		for _, e := range entries {
			entry := asMap(e)
			if entry == nil {
				continue
			}
			if str(entry["type"]) != "tool_call" && str(entry["role"]) != "tool" {
				continue
			}
			name := firstString(entry, "tool_name", "function", "name")
			if name == "" {
				continue
			}
			out = append(out, ToolInvocation{
				Name:     name,
				Params:   firstMap(entry, "input_parameters", "parameters", "arguments"),
				Response: firstMap(entry, "response", "output"),
			})
		}
	}
	return out
}

func eventTools(base map[string]any) []ToolInvocation {
	var out []ToolInvocation
	for _, e := range asSlice(base["events"]) {
		event := asMap(e)
		if event == nil {
			continue
		}
		switch str(event["type"]) {
		case "ai_integration":
			if inv, ok := integrationTool(event); ok {
				out = append(out, inv)
			}
		case "tool_call":
			name := firstString(event, "tool_name", "function", "name")
			if name == "" {
				continue
			}
			out = append(out, ToolInvocation{
				Name:     name,
				Params:   firstMap(event, "input_parameters", "parameters", "arguments"),
				Response: firstMap(event, "response", "output"),
			})
		}
	}
	return out
}

// integrationTool digs the invocation out of an AI-integration event. The
// response either names the tool directly or carries a function_call whose
// arguments field is itself a JSON-encoded string; a failed second decode
// drops the invocation rather than failing the extraction.
func integrationTool(event map[string]any) (ToolInvocation, bool) {
	resp := asMap(event["response"])
	if resp == nil {
		return ToolInvocation{}, false
	}

	if name := firstString(resp, "tool_name", "function_name"); name != "" {
		return ToolInvocation{
			Name:     name,
			Params:   firstMap(resp, "parameters", "arguments"),
			Response: asMap(resp["output"]),
		}, true
	}

	fc := asMap(resp["function_call"])
	if fc == nil {
		return ToolInvocation{}, false
	}
	name := str(fc["name"])
	if name == "" {
		return ToolInvocation{}, false
	}
	inv := ToolInvocation{Name: name}
	if encoded := str(fc["arguments"]); encoded != "" {
		var params map[string]any
		if err := json.Unmarshal([]byte(encoded), &params); err != nil {
			// Unparseable arguments: the invocation is unusable evidence.
			return ToolInvocation{}, false
		}
		inv.Params = params
	}
	return inv, true
}
