package deps

import (
	"os"
	"runtime"
	"strings"
)

// DefaultEncoder is used when no encoder binary is configured.
const DefaultEncoder = "ffmpeg"

// EncoderRequirement describes the encoder binary the pipeline executes.
func EncoderRequirement(binary string) Requirement {
	name := strings.TrimSpace(binary)
	if name == "" {
		name = DefaultEncoder
	}
	return Requirement{
		Name:        "Encoder",
		Command:     name,
		Description: "Composes, filters and thumbnails rendered videos",
	}
}

// CheckEncoder reports whether the encoder binary can be executed.
func CheckEncoder(binary string) Status {
	return CheckBinaries([]Requirement{EncoderRequirement(binary)})[0]
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
