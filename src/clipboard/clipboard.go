package clipboard

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"golang.design/x/clipboard"

	"screen-grab/src/logutil"
)

var (
	writeMu sync.Mutex
	// write is swapped in tests.
	write = func(format clipboard.Format, data []byte) { clipboard.Write(format, data) }
)

func Init() error {
	return clipboard.Init()
}

// WriteImage copies img to the clipboard as PNG. Writes are mutex-guarded to
// prevent corruption under parallel writes.
func WriteImage(img image.Image) error {
	data, err := encodePNG(img)
	if err != nil {
		return err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	write(clipboard.FmtImage, data)
	logutil.WithComponent("clipboard").Debug().Int("bytes", len(data)).Msg("image copied")
	return nil
}

// WriteText copies text to the clipboard.
func WriteText(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	write(clipboard.FmtText, []byte(text))
	return nil
}

func encodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}
