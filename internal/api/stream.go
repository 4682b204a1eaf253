package api

import (
	"fmt"
	"net/http"
)

// mjpegSink пишет кадры в HTTP-ответ как multipart/x-mixed-replace
type mjpegSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	wrote   bool
}

func newMJPEGSink(w http.ResponseWriter) (*mjpegSink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")

	return &mjpegSink{w: w, flusher: flusher}, nil
}

// WriteFrame отправляет один JPEG-кадр; ошибка означает обрыв клиента
func (s *mjpegSink) WriteFrame(jpegData []byte) error {
	// Первая запись фиксирует статус ответа
	s.wrote = true
	if _, err := fmt.Fprintf(s.w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
		return err
	}
	if _, err := s.w.Write(jpegData); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\r\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
