package otlp

import "testing"

func TestValidateLogsEnvelopeAccepts(t *testing.T) {
	if err := ValidateLogsEnvelope([]byte(`{"resourceLogs":[]}`)); err != nil {
		t.Fatalf("expected valid envelope to pass, got %v", err)
	}
}

func TestValidateLogsEnvelopeRejectsMissingField(t *testing.T) {
	if err := ValidateLogsEnvelope([]byte(`{}`)); err == nil {
		t.Fatal("expected missing resourceLogs to fail validation")
	}
}

func TestValidateLogsEnvelopeRejectsMalformedJSON(t *testing.T) {
	if err := ValidateLogsEnvelope([]byte(`{`)); err == nil {
		t.Fatal("expected malformed JSON to fail validation")
	}
}

func TestValidateMetricsEnvelopeAccepts(t *testing.T) {
	if err := ValidateMetricsEnvelope([]byte(`{"resourceMetrics":[]}`)); err != nil {
		t.Fatalf("expected valid envelope to pass, got %v", err)
	}
}

func TestValidateMetricsEnvelopeRejectsWrongType(t *testing.T) {
	if err := ValidateMetricsEnvelope([]byte(`{"resourceMetrics":"not-an-array"}`)); err == nil {
		t.Fatal("expected wrong-typed resourceMetrics to fail validation")
	}
}
