package helper

import (
	"fmt"
	"time"
)

func FormatTTL(ttl time.Duration) string {
	if ttl.Hours() >= 1 {
		return fmt.Sprintf("%.1fh", ttl.Hours())
	}
	if ttl.Minutes() >= 1 {
		return fmt.Sprintf("%.1fm", ttl.Minutes())
	}
	if ttl.Seconds() >= 1 {
		return fmt.Sprintf("%.1fs", ttl.Seconds())
	}
	return fmt.Sprintf("%dns", ttl.Nanoseconds())
}
