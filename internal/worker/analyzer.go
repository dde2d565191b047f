package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

const (
	// maxPreviewBytes caps a downloaded clip. Spotify previews are 30s at
	// 96-160 kbit/s, well below this.
	maxPreviewBytes = 4 << 20

	// RMS levels at or below floorDBFS map to energy 0; full scale maps to 1.
	floorDBFS = -40.0
)

// PreviewAnalyzer estimates a track's energy from the loudness of its MP3
// preview clip.
type PreviewAnalyzer struct {
	client *http.Client
}

// NewPreviewAnalyzer returns an analyzer downloading through client. A nil
// client gets a 15s timeout.
func NewPreviewAnalyzer(client *http.Client) *PreviewAnalyzer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PreviewAnalyzer{client: client}
}

// Energy downloads the clip at previewURL and returns its RMS loudness mapped
// onto [0,1].
func (a *PreviewAnalyzer) Energy(ctx context.Context, previewURL string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, previewURL, nil)
	if err != nil {
		return 0, fmt.Errorf("worker: preview request: %w", err)
	}
	// #nosec G107 -- preview URLs come from stored track metadata
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("worker: preview fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("worker: preview fetch status %d", resp.StatusCode)
	}

	decoder, err := mp3.NewDecoder(io.LimitReader(resp.Body, maxPreviewBytes))
	if err != nil {
		return 0, fmt.Errorf("worker: preview decode: %w", err)
	}
	rms, err := pcmRMS(decoder)
	if err != nil {
		return 0, fmt.Errorf("worker: preview read: %w", err)
	}
	return energyFromRMS(rms), nil
}

var errNoSamples = errors.New("preview contains no samples")

// pcmRMS reads signed 16-bit little-endian samples until EOF and returns
// their root mean square normalized to full scale.
func pcmRMS(r io.Reader) (float64, error) {
	buf := make([]byte, 4096)
	var sumSquares, count float64
	var carry []byte

	for {
		n, err := r.Read(buf)
		chunk := buf[:n]
		if len(carry) > 0 && n > 0 {
			chunk = append(carry, chunk...)
			carry = nil
		}
		i := 0
		for ; i+1 < len(chunk); i += 2 {
			v := float64(int16(uint16(chunk[i]) | uint16(chunk[i+1])<<8))
			sumSquares += v * v
			count++
		}
		if i < len(chunk) {
			carry = []byte{chunk[i]}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
	}

	if count == 0 {
		return 0, errNoSamples
	}
	return math.Sqrt(sumSquares/count) / 32768.0, nil
}

// energyFromRMS maps a normalized RMS level linearly in dBFS from floorDBFS
// to 0 dBFS onto [0,1].
func energyFromRMS(rms float64) float64 {
	if rms <= 0 {
		return 0
	}
	db := 20 * math.Log10(rms)
	e := (db - floorDBFS) / -floorDBFS
	return math.Max(0, math.Min(1, e))
}
