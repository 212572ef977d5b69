package llamachat

import (
	"errors"
	"testing"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		in      string
		want    Model
		wantErr error
	}{
		{in: "1b", want: ModelLlama1B},
		{in: "3B", want: ModelLlama3B},
		{in: " 8b ", want: ModelLlama8B},
		{in: "70b", want: ModelLlama70B},
		{in: "meta-llama/llama-3.1-70b-instruct/fp-8", want: ModelLlama70B},
		{in: "my-org/custom", want: "my-org/custom"},
		{in: "", wantErr: ErrMissingModel},
		{in: "   ", wantErr: ErrMissingModel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseModel(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseModel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestKnownModels(t *testing.T) {
	models := KnownModels()
	if len(models) != 4 || models[0] != ModelLlama1B || models[3] != ModelLlama70B {
		t.Fatalf("KnownModels() = %v", models)
	}
	models[0] = "mutated"
	if KnownModels()[0] != ModelLlama1B {
		t.Error("KnownModels returned a shared slice")
	}

	if !DefaultModel.IsKnown() || Model("other").IsKnown() {
		t.Error("IsKnown misreports")
	}
	if ModelLlama8B.Alias() != "8b" || Model("other").Alias() != "" {
		t.Error("Alias misreports")
	}
}

func TestParseFunctionCalling(t *testing.T) {
	for _, mode := range []FunctionCalling{FunctionCallingAuto, FunctionCallingPrompt, FunctionCallingNative} {
		got, ok := ParseFunctionCalling(mode.String())
		if !ok || got != mode {
			t.Errorf("ParseFunctionCalling(%q) = %v, %v", mode.String(), got, ok)
		}
	}
	if _, ok := ParseFunctionCalling("sometimes"); ok {
		t.Error("unknown mode accepted")
	}
}
