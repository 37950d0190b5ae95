package reader

import (
	"errors"
	"io"

	"github.com/justapithecus/sphere2bin/ipc"
	"github.com/justapithecus/sphere2bin/types"
)

// ParseFrames reads frames from r until EOF or a framing error.
// Undecodable frames are counted and skipped. Block details are kept only
// when verbose is set.
func ParseFrames(r io.Reader, verbose bool) *IPCDebugResponse {
	resp := &IPCDebugResponse{Encoding: "msgpack"}
	dec := ipc.NewFrameDecoder(r)

	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return resp
		}
		if err != nil {
			// Framing is lost after a read error.
			resp.recordError(err)
			resp.Truncated = ipc.IsFatalFrameError(err)
			return resp
		}
		resp.Frames++

		frame, err := ipc.DecodeFrame(payload)
		if err != nil {
			resp.recordError(err)
			continue
		}

		switch f := frame.(type) {
		case *types.BlockFrame:
			resp.BlockFrames++
			if verbose {
				resp.Blocks = append(resp.Blocks, blockItem(f))
			}
		case *types.ScanResultFrame:
			resp.Result = scanResultItem(f)
		}
	}
}

func (r *IPCDebugResponse) recordError(err error) {
	r.Errors++
	msg := err.Error()
	r.LastError = &msg
}

func blockItem(f *types.BlockFrame) IPCBlockItem {
	return IPCBlockItem{
		ScanID:   f.ScanID,
		Ordinal:  f.Block.Ordinal,
		Name:     f.Block.Name,
		Length:   f.Block.Length,
		Kind:     f.Block.Kind,
		Error:    f.Block.Error,
		Location: f.Block.Location,
	}
}

func scanResultItem(f *types.ScanResultFrame) *IPCScanResult {
	return &IPCScanResult{
		ScanID:     f.ScanID,
		Source:     f.Source,
		Status:     f.Outcome.Status,
		Message:    f.Outcome.Message,
		BlockCount: f.BlockCount,
		ErrorCount: f.ErrorCount,
		BytesRead:  f.BytesRead,
	}
}
