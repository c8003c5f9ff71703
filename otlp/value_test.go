package otlp

import (
	"encoding/json"
	"testing"
)

func decodeValue(t *testing.T, raw string) Value {
	t.Helper()
	var rv rawValue
	if err := json.Unmarshal([]byte(raw), &rv); err != nil {
		t.Fatalf("unmarshal raw value: %v", err)
	}
	return decode(rv)
}

func TestDecodeStringValue(t *testing.T) {
	v := decodeValue(t, `{"stringValue":"hello"}`)
	if v.Kind != KindString || v.AsString("") != "hello" {
		t.Fatalf("expected string value, got %+v", v)
	}
}

func TestDecodeIntValueAsString(t *testing.T) {
	v := decodeValue(t, `{"intValue":"12345"}`)
	if v.Kind != KindInt || v.AsInt(0) != 12345 {
		t.Fatalf("expected int 12345 decoded from string encoding, got %+v", v)
	}
}

func TestDecodeIntValueAsNumber(t *testing.T) {
	v := decodeValue(t, `{"intValue":42}`)
	if v.Kind != KindInt || v.AsInt(0) != 42 {
		t.Fatalf("expected int 42 decoded from bare number, got %+v", v)
	}
}

func TestDecodeMalformedIntFallsBackToZero(t *testing.T) {
	v := decodeValue(t, `{"intValue":"not-a-number"}`)
	if v.AsInt(-1) != 0 {
		t.Fatalf("expected malformed intValue to decode to 0, got %v", v.Int)
	}
}

func TestAsIntCoercesStringAttribute(t *testing.T) {
	v := decodeValue(t, `{"stringValue":"99"}`)
	if got := v.AsInt(0); got != 99 {
		t.Fatalf("expected AsInt to parse numeric string, got %d", got)
	}
}

func TestAsIntFallbackOnNonNumericString(t *testing.T) {
	v := decodeValue(t, `{"stringValue":"abc"}`)
	if got := v.AsInt(7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestNullValueFallbacks(t *testing.T) {
	v := Value{Kind: KindNull}
	if v.Present() {
		t.Fatal("expected null value to report not present")
	}
	if v.AsString("fallback") != "fallback" {
		t.Fatal("expected AsString fallback on null value")
	}
	if v.AsBool(true) != true {
		t.Fatal("expected AsBool fallback on null value")
	}
}

func TestDecodeBagLastWriteWins(t *testing.T) {
	kvs := []rawKeyValue{
		{Key: "model", Value: rawValue{StringValue: strPtr("claude-a")}},
		{Key: "model", Value: rawValue{StringValue: strPtr("claude-b")}},
	}
	bag := decodeBag(kvs)
	if got := bag.Get("model").AsString(""); got != "claude-b" {
		t.Fatalf("expected last write to win, got %q", got)
	}
}

func TestBagGetMissingKeyIsNull(t *testing.T) {
	bag := decodeBag(nil)
	if bag.Get("missing").Present() {
		t.Fatal("expected missing key to decode to a null value")
	}
}

func strPtr(s string) *string { return &s }
