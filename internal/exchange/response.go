package exchange

import "encoding/json"

// Response is a tagged variant: either the body decoded strictly into T
// (Parsed), or — when that decode fails — the raw bytes preserved for
// diagnostics (Fallback). This is the static, type-safe rendering of
// trade/broker/httpclient/response.py's BaseResponse/FallbackMixin
// reflection trick (spec.md §9 Design Note), since Go has no runtime
// attribute reflection equivalent worth reaching for here.
type Response[T any] struct {
	Parsed   *T
	Fallback json.RawMessage
}

// UnmarshalJSON tries a strict decode into T first; on failure it keeps
// the raw bytes so GetFallback can surface them for diagnosis instead of
// silently discarding an unexpected shape.
func (r *Response[T]) UnmarshalJSON(data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err == nil {
		r.Parsed = &v
		return nil
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	r.Fallback = raw
	return nil
}

// GetFallback returns the raw response body when Parsed is nil, mirroring
// FallbackMixin.get_fallback.
func (r *Response[T]) GetFallback() json.RawMessage {
	return r.Fallback
}

// IsParsed reports whether the response decoded cleanly into T.
func (r *Response[T]) IsParsed() bool {
	return r.Parsed != nil
}
