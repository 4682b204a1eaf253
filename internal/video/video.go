package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultFPS = 25.0

// ExtractFrames извлекает кадры из видео с помощью ffmpeg
func ExtractFrames(ctx context.Context, videoPath, framesDir string) ([]string, error) {
	framePattern := filepath.Join(framesDir, "frame_%05d.jpg")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-q:v", "2", // Качество JPEG
		framePattern,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, stderr.String())
	}

	files, err := filepath.Glob(filepath.Join(framesDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("failed to list frame files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no frames extracted from video %s", videoPath)
	}

	return files, nil
}

// ProbeFPS читает частоту кадров через ffprobe; при ошибке возвращает 25
func ProbeFPS(ctx context.Context, videoPath string) float64 {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)

	out, err := cmd.Output()
	if err != nil {
		return defaultFPS
	}

	return parseFrameRate(strings.TrimSpace(string(out)))
}

// parseFrameRate разбирает значение вида "30000/1001" или "25"
func parseFrameRate(value string) float64 {
	if value == "" {
		return defaultFPS
	}

	num, den := value, "1"
	if i := strings.IndexByte(value, '/'); i >= 0 {
		num, den = value[:i], value[i+1:]
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return defaultFPS
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return defaultFPS
	}

	fps := n / d
	if fps <= 0 {
		return defaultFPS
	}
	return fps
}

// MP4Writer кодирует поток JPEG-кадров в MP4 через ffmpeg
type MP4Writer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
}

// NewMP4Writer запускает ffmpeg, читающий кадры из stdin
func NewMP4Writer(ctx context.Context, outPath string, fps float64) (*MP4Writer, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outPath,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}

	w := &MP4Writer{cmd: cmd, stdin: stdin}
	cmd.Stderr = &w.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return w, nil
}

// WriteFrame отправляет один JPEG-кадр кодировщику
func (w *MP4Writer) WriteFrame(jpegData []byte) error {
	if _, err := w.stdin.Write(jpegData); err != nil {
		return fmt.Errorf("failed to write frame to ffmpeg: %w", err)
	}
	return nil
}

// Close завершает кодирование и дожидается ffmpeg
func (w *MP4Writer) Close() error {
	if err := w.stdin.Close(); err != nil {
		return fmt.Errorf("failed to close ffmpeg stdin: %w", err)
	}

	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, w.stderr.String())
	}

	return nil
}
