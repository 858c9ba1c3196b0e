// Package util holds small formatting and file helpers shared by the server
// and the command line tool.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Digest identifies the content of a file.
type Digest struct {
	SHA256 string
	Size   int64
}

// FileDigest reads a file once and returns its size and SHA-256 checksum.
func FileDigest(filePath string) (Digest, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Digest{}, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return Digest{}, errors.Wrap(err, "failed to calculate checksum")
	}

	return Digest{SHA256: hex.EncodeToString(hash.Sum(nil)), Size: size}, nil
}

// FormatBytes formats bytes into human readable format.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	const units = "KMGTPE"
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < len(units)-1; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), units[exp])
}

// FormatDuration formats a travel or tour duration, e.g. "45s", "12m0s" or
// "1h30m".
func FormatDuration(duration time.Duration) string {
	duration = duration.Round(time.Second)

	switch {
	case duration < time.Minute:
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	case duration < time.Hour:
		return fmt.Sprintf("%dm%ds", int(duration.Minutes()), int(duration.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(duration.Hours()), int(duration.Minutes())%60)
	}
}

// FormatClock formats a time of day the way schedules are printed, e.g.
// "08h05".
func FormatClock(t time.Time) string {
	return fmt.Sprintf("%02dh%02d", t.Hour(), t.Minute())
}
