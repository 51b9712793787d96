// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import "bytes"

// =============================================================================
// FRAME DECODER
// =============================================================================

var dataPrefix = []byte("data:")

// FrameDecoder reassembles SSE-style frames from an arbitrarily chunked byte
// stream.
//
// The wire format is line-oriented: payload lines start with "data:", frames
// are separated by blank lines. Network chunk boundaries fall anywhere - in
// the middle of a line, a tag, or a multi-byte rune - so the decoder buffers
// any unterminated trailing line and only ever emits fully received frames.
//
// Not safe for concurrent use; each stream gets its own decoder.
type FrameDecoder struct {
	pending []byte   // trailing bytes of an unterminated line
	lines   [][]byte // completed data lines of the frame in progress
}

// NewFrameDecoder returns a decoder ready to accept the first chunk.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed consumes the next chunk and returns every frame payload completed by
// it, in arrival order. An empty chunk is a no-op. Returned slices are copies
// and stay valid after subsequent calls.
func (d *FrameDecoder) Feed(chunk []byte) [][]byte {
	if len(chunk) == 0 {
		return nil
	}

	buf := append(d.pending, chunk...)
	d.pending = nil

	var frames [][]byte
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			// RELIABILITY: an unterminated line is re-buffered, never parsed.
			d.pending = append(d.pending, buf...)
			break
		}
		line := buf[:i]
		buf = buf[i+1:]
		if frame, ok := d.consumeLine(line); ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Close flushes the decoder at end of stream. A final frame that was not
// followed by a blank line is still emitted, matching backends that close the
// connection immediately after the last data line.
func (d *FrameDecoder) Close() [][]byte {
	var frames [][]byte
	if len(d.pending) > 0 {
		if frame, ok := d.consumeLine(d.pending); ok {
			frames = append(frames, frame)
		}
		d.pending = nil
	}
	if len(d.lines) > 0 {
		frames = append(frames, d.takeFrame())
	}
	return frames
}

// consumeLine processes one complete line. It returns a finished frame when
// the line is the blank separator ending one.
func (d *FrameDecoder) consumeLine(line []byte) ([]byte, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})

	if len(line) == 0 {
		if len(d.lines) == 0 {
			return nil, false
		}
		return d.takeFrame(), true
	}

	if bytes.HasPrefix(line, dataPrefix) {
		payload := bytes.TrimSpace(line[len(dataPrefix):])
		d.lines = append(d.lines, append([]byte(nil), payload...))
	}
	// Other line types (comments, event/id fields) are ignored.
	return nil, false
}

// takeFrame joins the buffered data lines into one payload and resets.
func (d *FrameDecoder) takeFrame() []byte {
	frame := bytes.Join(d.lines, []byte{'\n'})
	d.lines = nil
	return frame
}
