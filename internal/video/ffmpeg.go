package video

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/roz-data/motion.report/internal/motion"
)

// FFmpegDecoder decodes clips by piping 8-bit grayscale raw video out of an
// ffmpeg subprocess. ffprobe supplies the stream geometry and frame rate
// first, so each frame is a fixed-size read off the pipe.
type FFmpegDecoder struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegDecoder uses ffmpeg/ffprobe from PATH.
func NewFFmpegDecoder() *FFmpegDecoder {
	return &FFmpegDecoder{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// probe returns width, height and fps of the first video stream.
func (d *FFmpegDecoder) probe(ctx context.Context, path string) (int, int, float64, error) {
	cmd := exec.CommandContext(ctx, d.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// ffprobe ran but could not read the stream: bad data, not I/O.
			return 0, 0, 0, fmt.Errorf("%w: ffprobe rejected %s", ErrDecode, path)
		}
		return 0, 0, 0, &TransientError{Op: "probe", Err: err}
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil || len(probe.Streams) == 0 {
		return 0, 0, 0, fmt.Errorf("%w: no video stream in %s", ErrDecode, path)
	}

	s := probe.Streams[0]
	fps, err := parseFrameRate(s.AvgFrameRate)
	if err != nil || s.Width <= 0 || s.Height <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: bad stream geometry %dx%d@%q", ErrDecode, s.Width, s.Height, s.AvgFrameRate)
	}
	return s.Width, s.Height, fps, nil
}

// parseFrameRate handles ffprobe's rational frame rates ("15/1", "30000/1001").
func parseFrameRate(r string) (float64, error) {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		return strconv.ParseFloat(r, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid frame rate %q", r)
	}
	return n / d, nil
}

// Open probes the clip and starts the decode pipe.
func (d *FFmpegDecoder) Open(ctx context.Context, path, cameraID string, start time.Time) (FrameReader, error) {
	width, height, fps, err := d.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, d.FFmpegPath,
		"-v", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &TransientError{Op: "decode pipe", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &TransientError{Op: "decode start", Err: err}
	}

	return &ffmpegReader{
		info: SegmentInfo{
			CameraID: cameraID,
			Start:    start,
			FPS:      fps,
			Width:    width,
			Height:   height,
		},
		cmd:    cmd,
		stdout: stdout,
	}, nil
}

type ffmpegReader struct {
	info   SegmentInfo
	cmd    *exec.Cmd
	stdout io.ReadCloser
	closed bool
}

func (r *ffmpegReader) Info() SegmentInfo { return r.info }

// Next reads one gray8 frame off the pipe. A clean EOF on a frame boundary
// ends the stream; a short read mid-frame is a decode error.
func (r *ffmpegReader) Next() (motion.Frame, error) {
	pix := make([]uint8, r.info.Width*r.info.Height)
	n, err := io.ReadFull(r.stdout, pix)
	if err == io.EOF && n == 0 {
		if werr := r.wait(); werr != nil {
			return motion.Frame{}, werr
		}
		return motion.Frame{}, io.EOF
	}
	if err != nil {
		r.wait()
		return motion.Frame{}, fmt.Errorf("%w: truncated frame (%d of %d bytes)", ErrDecode, n, len(pix))
	}
	return motion.Frame{Width: r.info.Width, Height: r.info.Height, Pix: pix}, nil
}

func (r *ffmpegReader) wait() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: ffmpeg exited: %v", ErrDecode, err)
	}
	return nil
}

func (r *ffmpegReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.stdout.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.cmd.Wait()
	return nil
}
