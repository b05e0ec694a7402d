// Package handler implements the serverless job contract: a JSON job
// envelope in, a base64 PNG payload or an error envelope out. The
// handler never fails the transport; every failure is reported inside
// the output so the platform can mark the job FAILED.
package handler

// Job is the envelope delivered for each queued request.
type Job struct {
	ID    string   `json:"id"`
	Input JobInput `json:"input"`
}

// JobInput holds the generation request. Prompt is required; all
// other fields default when omitted. Pointers distinguish "absent"
// from zero values.
type JobInput struct {
	Prompt        string   `json:"prompt"`
	Height        *int     `json:"height,omitempty"`
	Width         *int     `json:"width,omitempty"`
	Steps         *int     `json:"num_inference_steps,omitempty"`
	GuidanceScale *float64 `json:"guidance_scale,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
}

// JobOutput is the success payload. Seed always carries the concrete
// seed used, so omitting it in the request still yields a reproducible
// result.
type JobOutput struct {
	Image  string `json:"image"`
	Format string `json:"format"`
	Prompt string `json:"prompt"`
	Seed   int64  `json:"seed"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// ImageFormat is the only encoding the handler emits.
const ImageFormat = "base64"

// JobError is the failure payload.
type JobError struct {
	Error     string `json:"error"`
	Traceback string `json:"traceback,omitempty"`
}
