package onnx

import (
	"strings"
	"testing"

	"aura-go/aura"
	"aura-go/internal/logger"
)

func TestNewDefaults(t *testing.T) {
	b := New(WithLogger(logger.Discard()))
	if b.inputName != DefaultInputName || b.outputName != DefaultOutputName {
		t.Errorf("unexpected tensor names %q/%q", b.inputName, b.outputName)
	}

	b = New(WithTensorNames("ids", "scores"), WithSharedLibraryPath("/opt/ort/libonnxruntime.so"), WithLogger(logger.Discard()))
	if b.inputName != "ids" || b.outputName != "scores" || b.libraryPath != "/opt/ort/libonnxruntime.so" {
		t.Errorf("options not applied: %+v", b)
	}
}

func TestOpenRejectsOptionsBeforeTouchingRuntime(t *testing.T) {
	b := New(WithLogger(logger.Discard()))

	_, err := b.Open("model.onnx", aura.BackendOptions{Threads: 4, Optimization: aura.OptimizationBasic, VocabSize: 10})
	if err == nil || !strings.Contains(err.Error(), "unsupported optimization level basic") {
		t.Fatalf("expected optimization level error, got %v", err)
	}

	_, err = b.Open("model.onnx", aura.BackendOptions{Threads: 4, Optimization: aura.OptimizationAll})
	if err == nil {
		t.Fatal("expected error for zero vocabulary size")
	}

	if b.initialized {
		t.Error("runtime should not be initialized by rejected opens")
	}
}

func TestCloseWithoutInit(t *testing.T) {
	if err := New(WithLogger(logger.Discard())).Close(); err != nil {
		t.Fatalf("Close = %v", err)
	}
}

func TestClosedHandle(t *testing.T) {
	h := &handle{vocabSize: 4}
	if _, err := h.Run([]int64{1}); err == nil {
		t.Fatal("expected error from closed handle")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close = %v", err)
	}
}

func TestTensorNamesKeepDefaultsForEmpty(t *testing.T) {
	b := New(WithTensorNames("", "scores"), WithLogger(logger.Discard()))
	in, out := b.TensorNames()
	if in != DefaultInputName || out != "scores" {
		t.Errorf("Expected %s/scores, got %s/%s", DefaultInputName, in, out)
	}
}
