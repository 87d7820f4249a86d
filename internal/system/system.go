package system

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/typing2video/internal/errs"
)

// InitResourceLimits raises the open file limit: audio synthesis keeps one
// segment file per character event.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		logrus.WithError(err).Warn("[!] Не удалось получить лимит файлов")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		logrus.WithError(err).Warn("[!] Не удалось установить лимит файлов")
	} else {
		logrus.Debugf("[*] Системный лимит открытых файлов увеличен до %d", rLimit.Cur)
	}
}

// FindLatestFile returns the most recently modified file in dir with one of
// the given extensions.
func FindLatestFile(dir string, extensions ...string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExtension(f.Name(), extensions) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено файлов %s", dir, strings.Join(extensions, ", "))
	}

	return latestFile, nil
}

func FindLatestText(dir string) (string, error) {
	return FindLatestFile(dir, ".txt", ".md")
}

func hasExtension(name string, extensions []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// InstallHint is the platform specific way to get ffmpeg.
func InstallHint() string {
	switch runtime.GOOS {
	case "darwin":
		return "brew install ffmpeg"
	case "windows":
		return "choco install ffmpeg (или скачайте сборку с https://ffmpeg.org/download.html)"
	default:
		return "sudo apt install ffmpeg (или пакет ffmpeg вашего дистрибутива)"
	}
}

// RequireTools checks that every binary is on PATH.
func RequireTools(names ...string) error {
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			return fmt.Errorf("%w: %s не найден в PATH, установите: %s", errs.ErrToolMissing, name, InstallHint())
		}
	}
	return nil
}

// RequireFile fails with ErrAssetMissing when path is not a readable file.
func RequireFile(path, what string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", errs.ErrAssetMissing, what, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s %s является директорией", errs.ErrAssetMissing, what, path)
	}
	return nil
}

// MediaProbeTimeout bounds ffprobe on a finished output.
const MediaProbeTimeout = 10 * time.Second

type formatProbe struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetMediaDuration returns the container duration of a media file in seconds.
func GetMediaDuration(path string) (float64, error) {
	out, err := ffmpeg.ProbeWithTimeout(path, MediaProbeTimeout, ffmpeg.KwArgs{})
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe %s: %v", errs.ErrToolFailed, path, err)
	}
	return parseFormatDuration(out)
}

func parseFormatDuration(out string) (float64, error) {
	var p formatProbe
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		return 0, fmt.Errorf("ffprobe output: %w", err)
	}
	if p.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no format duration")
	}
	return strconv.ParseFloat(p.Format.Duration, 64)
}

// GetBestH264Encoder picks the first hardware encoder ffmpeg was built with,
// falling back to libx264.
func GetBestH264Encoder() string {
	// Приоритеты:
	// 1. MacOS (VideoToolbox)
	// 2. NVIDIA (NVENC), только если в системе есть драйвер
	// 3. Software (libx264)
	out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out), runtime.GOOS, hasNvidiaDriver())
}

func pickEncoder(encoders, goos string, nvidia bool) string {
	if goos == "darwin" && strings.Contains(encoders, "h264_videotoolbox") {
		return "h264_videotoolbox"
	}
	if nvidia && strings.Contains(encoders, "h264_nvenc") {
		return "h264_nvenc"
	}
	return "libx264"
}

func hasNvidiaDriver() bool {
	_, err := exec.LookPath("nvidia-smi")
	return err == nil
}

// DefaultQuality is the encoder specific quality value used when none is set.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // x100 кбит/с
	case "h264_nvenc":
		return 28
	default:
		return 23
	}
}
