package vision

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/thyrook/boardscribe/internal/frame"
)

// VideoSource provides frames from a video file. It implements frame.Source.
type VideoSource struct {
	mu         sync.Mutex
	video      *gocv.VideoCapture
	mat        gocv.Mat
	fps        float64
	frameCount int
	stride     int

	// next is the index of the next frame to decode
	next int64
}

// NewVideoSource opens a video file. stride > 1 decodes only every stride-th frame.
func NewVideoSource(videoPath string, stride int) (*VideoSource, error) {
	video, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file: %w", err)
	}

	if !video.IsOpened() {
		video.Close()
		return nil, fmt.Errorf("video file not opened: %s", videoPath)
	}

	fps := video.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = 30
	}
	if stride < 1 {
		stride = 1
	}

	return &VideoSource{
		video:      video,
		mat:        gocv.NewMat(),
		fps:        fps,
		frameCount: int(video.Get(gocv.VideoCaptureFrameCount)),
		stride:     stride,
	}, nil
}

// Next implements frame.Source. The returned image is a copy and stays
// valid after the following call.
func (vs *VideoSource) Next(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}

	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.video == nil {
		return frame.Frame{}, io.EOF
	}

	if !vs.video.Read(&vs.mat) || vs.mat.Empty() {
		return frame.Frame{}, io.EOF
	}
	index := vs.next
	vs.next++

	if vs.stride > 1 {
		vs.video.Grab(vs.stride - 1)
		vs.next += int64(vs.stride - 1)
	}

	img, err := vs.mat.ToImage()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("failed to convert frame %d: %w", index, err)
	}

	return frame.Frame{
		Image:     img,
		Timestamp: time.Duration(float64(index) / vs.fps * float64(time.Second)),
		Index:     index,
	}, nil
}

// FPS returns the video's frames per second
func (vs *VideoSource) FPS() float64 {
	return vs.fps
}

// FrameCount returns total number of frames as reported by the container
func (vs *VideoSource) FrameCount() int {
	return vs.frameCount
}

// Progress returns playback progress (0-1)
func (vs *VideoSource) Progress() float64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.frameCount == 0 {
		return 0
	}
	return min(1, float64(vs.next)/float64(vs.frameCount))
}

// Close releases video resources
func (vs *VideoSource) Close() error {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if vs.video == nil {
		return nil
	}
	err := vs.video.Close()
	vs.video = nil
	if cerr := vs.mat.Close(); err == nil {
		err = cerr
	}
	return err
}

// VideoInfo holds metadata about a video
type VideoInfo struct {
	FPS        float64
	FrameCount int
	Width      int
	Height     int
	Duration   time.Duration
}

// GetVideoInfo extracts metadata from a video file
func GetVideoInfo(videoPath string) (*VideoInfo, error) {
	video, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, err
	}
	defer video.Close()

	if !video.IsOpened() {
		return nil, fmt.Errorf("failed to open video")
	}

	fps := video.Get(gocv.VideoCaptureFPS)
	frameCount := int(video.Get(gocv.VideoCaptureFrameCount))

	var duration time.Duration
	if fps > 0 {
		duration = time.Duration(float64(frameCount) / fps * float64(time.Second))
	}

	return &VideoInfo{
		FPS:        fps,
		FrameCount: frameCount,
		Width:      int(video.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(video.Get(gocv.VideoCaptureFrameHeight)),
		Duration:   duration,
	}, nil
}

// String returns a formatted string of video info
func (vi *VideoInfo) String() string {
	return fmt.Sprintf("%dx%d @ %.2f fps, %d frames (%v)",
		vi.Width, vi.Height, vi.FPS, vi.FrameCount, vi.Duration.Truncate(time.Second))
}
