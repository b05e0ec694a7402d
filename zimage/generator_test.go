package zimage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func testParams() GenerateParams {
	return GenerateParams{
		Prompt:        "a lighthouse at dusk",
		Width:         256,
		Height:        256,
		Steps:         9,
		GuidanceScale: 0.0,
		Seed:          42,
	}
}

func TestGenerator_Generate(t *testing.T) {
	gen, err := NewGenerator(1, "")
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	defer gen.Close()

	data, err := gen.Generate(context.Background(), testParams())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !IsPNG(data) {
		t.Error("output is not a PNG")
	}
	if err := ValidateImageData(data); err != nil {
		t.Errorf("output failed validation: %v", err)
	}
}

func TestGenerator_FixedSeedIsDeterministic(t *testing.T) {
	gen, err := NewGenerator(1, "")
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	defer gen.Close()

	ctx := context.Background()
	params := testParams()

	first, err := gen.Generate(ctx, params)
	if err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	second, err := gen.Generate(ctx, params)
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("same params and seed should produce byte-identical output")
	}

	params.Seed = 43
	third, err := gen.Generate(ctx, params)
	if err != nil {
		t.Fatalf("third Generate failed: %v", err)
	}
	if bytes.Equal(first, third) {
		t.Error("different seeds should produce different output")
	}
}

func TestGenerator_RandomSeedResolved(t *testing.T) {
	gen, err := NewGenerator(1, "")
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	defer gen.Close()

	params := testParams()
	params.Seed = -1

	result, err := gen.GenerateWithResult(context.Background(), params)
	if err != nil {
		t.Fatalf("GenerateWithResult failed: %v", err)
	}

	if result.Seed < 0 {
		t.Errorf("result seed should be the concrete seed used, got %d", result.Seed)
	}
	if result.Width != params.Width || result.Height != params.Height {
		t.Errorf("result dimensions %dx%d do not match request %dx%d",
			result.Width, result.Height, params.Width, params.Height)
	}
}

func TestGenerator_InvalidParams(t *testing.T) {
	gen, err := NewGenerator(1, "")
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	defer gen.Close()

	params := testParams()
	params.Width = 513

	if _, err := gen.Generate(context.Background(), params); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got: %v", err)
	}
}

func TestGenerator_Closed(t *testing.T) {
	gen, err := NewGenerator(1, "")
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	gen.Close()

	if !gen.IsClosed() {
		t.Error("generator should report closed")
	}
	if _, err := gen.Generate(context.Background(), testParams()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got: %v", err)
	}
}

func TestLoadPipeline_MissingModelPath(t *testing.T) {
	_, err := LoadPipeline("/nonexistent/model/weights")
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got: %v", err)
	}
}
