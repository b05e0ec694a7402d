//go:build zimage && cgo

// CGo backend linking the Z-Image inference library.
// Build with: CGO_ENABLED=1 go build -tags zimage
//
// Prerequisites:
//   1. libzimage compiled as a shared library
//   2. Set CGO_CFLAGS to include the header path
//   3. Set CGO_LDFLAGS to link the library
//
// Example:
//   CGO_CFLAGS="-I${ZIMAGE_CPP_PATH}" \
//   CGO_LDFLAGS="-L${ZIMAGE_CPP_PATH}/build -lzimage -Wl,-rpath,${ZIMAGE_CPP_PATH}/build" \
//   go build -tags zimage

package zimage

/*
#cgo CFLAGS: -I${SRCDIR}/../vendor/zimage.cpp
#cgo LDFLAGS: -L${SRCDIR}/../vendor/zimage.cpp/build -lzimage

#include <stdlib.h>
#include <stdint.h>

// Placeholder type definitions until the library headers land:
typedef void* zimage_ctx_t;

// extern zimage_ctx_t* zimage_ctx_create(const char* model_path, int n_threads);
// extern void zimage_ctx_free(zimage_ctx_t* ctx);
// extern uint8_t* zimage_txt2img(zimage_ctx_t* ctx, const char* prompt,
//                                int width, int height, int steps,
//                                float guidance_scale, int64_t seed);
// extern void zimage_free_image(uint8_t* img);
// extern const char* zimage_backend_info();
*/
import "C"

import (
	"fmt"
	"os"
	"sync"
	"unsafe"
)

// cudaPipeline holds the C context pointer alongside Go metadata.
type cudaPipeline struct {
	cCtx *C.zimage_ctx_t
}

var (
	pipelineMapMu sync.Mutex
	pipelineMap   = make(map[uint64]*cudaPipeline)
	pipelineNext  uint64
)

func loadPipelineImpl(modelPath string) (*Pipeline, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: ZIMAGE_MODEL_PATH is required for the CUDA backend", ErrModelNotFound)
	}
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	} else if err != nil {
		return nil, fmt.Errorf("%w: unable to access %s: %v", ErrModelLoadFailed, modelPath, err)
	}

	cModelPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cModelPath))

	// TODO: call zimage_ctx_create once the library headers land.
	return nil, fmt.Errorf("%w: zimage CGo bindings not yet wired to the library", ErrModelLoadFailed)
}

func runPipelineImpl(p *Pipeline, params GenerateParams) (*GenerateResult, error) {
	if p == nil || !p.valid {
		return nil, fmt.Errorf("%w: pipeline is nil or invalid", ErrGenerationFailed)
	}

	pipelineMapMu.Lock()
	cp, ok := pipelineMap[p.id]
	pipelineMapMu.Unlock()
	if !ok || cp == nil || cp.cCtx == nil {
		return nil, fmt.Errorf("%w: no valid C context found", ErrGenerationFailed)
	}

	cPrompt := C.CString(params.Prompt)
	defer C.free(unsafe.Pointer(cPrompt))

	// TODO: call zimage_txt2img, copy the RGBA buffer with C.GoBytes,
	// free it with zimage_free_image, then EncodeToPNG the pixels.
	return nil, fmt.Errorf("%w: zimage CGo bindings not yet wired to the library", ErrGenerationFailed)
}

func freePipelineImpl(p *Pipeline) {
	if p == nil {
		return
	}

	pipelineMapMu.Lock()
	cp, ok := pipelineMap[p.id]
	if ok && cp != nil && cp.cCtx != nil {
		// TODO: call zimage_ctx_free once the library headers land.
		delete(pipelineMap, p.id)
	}
	pipelineMapMu.Unlock()

	p.valid = false
}

func backendInfoImpl() string {
	return "zimage (CGo bindings, library integration pending)"
}
