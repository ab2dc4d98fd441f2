package adapter

// Normalize strips the response envelopes workers wrap around their
// payloads. Services answer with anything from a bare list to
// {"status": "success", "result": {"result": {"results": [...]}}}
// depending on how many framework layers the call passed through, so
// callers would otherwise have to guess the nesting depth per service.
func Normalize(payload any) any {
	// Outermost wrapper from plain HTTP workers.
	if m, ok := payload.(map[string]any); ok {
		if status, ok := m["status"].(string); ok && status == "success" {
			if inner, ok := m["result"]; ok {
				payload = inner
			}
		}
	}
	// Peel at most two bare "result" wrappers.
	for range 2 {
		m, ok := payload.(map[string]any)
		if !ok || len(m) != 1 {
			break
		}
		inner, ok := m["result"]
		if !ok {
			break
		}
		payload = inner
	}
	if list, ok := resultList(payload); ok {
		return list
	}
	return payload
}

// resultList unwraps {"results": [...]} and {"data": [...]} envelopes.
func resultList(payload any) ([]any, bool) {
	m, ok := payload.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, false
	}
	for _, key := range []string{"results", "data"} {
		if inner, ok := m[key]; ok {
			if list, ok := inner.([]any); ok {
				return list, true
			}
		}
	}
	return nil, false
}
