// ABOUTME: Entry point for loading audio from files and URLs
// ABOUTME: Dispatches to the right decoder by extension
package source

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/audio"
)

// ErrUnsupported is returned for file extensions no decoder handles.
var ErrUnsupported = errors.New("unsupported audio format")

// Load reads an audio file into a planar float32 buffer. Local paths are
// dispatched by extension; http(s) URLs are fetched and decoded as MP3.
func Load(pathOrURL string) (*audio.SourceBuffer, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return loadURL(pathOrURL)
	}

	f, err := os.Open(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var buf *audio.SourceBuffer
	ext := strings.ToLower(filepath.Ext(pathOrURL))
	switch ext {
	case ".wav":
		buf, err = loadWAV(f)
	case ".mp3":
		buf, err = loadMP3(f)
	case ".flac":
		buf, err = loadFLAC(f)
	case ".opus":
		buf, err = loadOpus(f)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .wav, .mp3, .flac, .opus)", ErrUnsupported, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(pathOrURL), err)
	}

	log.Printf("Loaded %s: %v, %d channels at %d Hz",
		filepath.Base(pathOrURL), buf.Duration().Round(time.Millisecond),
		buf.NumChannels(), buf.SampleRate)

	return buf, nil
}

// loadURL fetches a remote stream and decodes it. Only MP3 decodes
// incrementally from a network body, so that is all we accept here.
func loadURL(url string) (*audio.SourceBuffer, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error fetching audio: %s", resp.Status)
	}

	buf, err := loadMP3(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode stream from %s: %w", url, err)
	}

	log.Printf("Loaded %s: %v, %d channels at %d Hz",
		url, buf.Duration().Round(time.Millisecond), buf.NumChannels(), buf.SampleRate)

	return buf, nil
}
