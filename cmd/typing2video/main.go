package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ivlev/typing2video/internal/audio"
	"github.com/ivlev/typing2video/internal/cli/colours"
	"github.com/ivlev/typing2video/internal/config"
	"github.com/ivlev/typing2video/internal/engine"
	"github.com/ivlev/typing2video/internal/errs"
	"github.com/ivlev/typing2video/internal/frames"
	"github.com/ivlev/typing2video/internal/system"
	"github.com/ivlev/typing2video/internal/timeline"
	"github.com/ivlev/typing2video/internal/video"
)

// Задаётся при сборке: -ldflags "-X main.version=..."
var version = "dev"

const (
	inputDir          = "input/text"
	outputDir         = "output"
	defaultConfigFile = "typing2video.yaml"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	rootCmd := &cobra.Command{
		Use:           "typing2video",
		Short:         "Видео с эффектом набора текста и звуком клавиш",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Подробный лог")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Путь к YAML конфигурации (по умолчанию: встроенные значения)")

	generateCmd := &cobra.Command{
		Use:   "generate [input.txt]",
		Short: "Сгенерировать видео из текстового файла",
		Long:  "Без аргумента берётся самый свежий .txt/.md в " + inputDir + "/",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGenerate,
	}
	generateCmd.Flags().StringP("output", "o", "", "Путь к видео (если пусто, генерируется автоматически в "+outputDir+"/)")
	generateCmd.Flags().Bool("stats", false, "Показать отчёт о производительности и записать benchmark.log")

	planCmd := &cobra.Command{
		Use:   "plan [input.txt]",
		Short: "Вывести расписание событий в YAML без рендеринга",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPlan,
	}
	planCmd.Flags().String("out", "", "Файл для расписания (по умолчанию: stdout)")

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Записать конфигурацию по умолчанию",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInitConfig,
	}

	rootCmd.AddCommand(generateCmd, planCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Fprintf(os.Stderr, "[-] Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Проверки до начала работы: ffmpeg и звук обязательны, шрифт нет
	if err := system.RequireTools("ffmpeg"); err != nil {
		return err
	}
	if err := system.RequireFile(cfg.Audio.TypingSound, "звук клавиши"); err != nil {
		return err
	}

	for _, d := range []string{inputDir, outputDir} {
		os.MkdirAll(d, 0755)
	}

	inputPath, err := resolveInput(args)
	if err != nil {
		return err
	}
	text, err := readInput(inputPath)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = defaultOutput(inputPath, cfg.Video.Format)
	}
	showStats, _ := cmd.Flags().GetBool("stats")

	format := audio.NewProber().Format(cfg.Audio.TypingSound)
	logrus.WithFields(logrus.Fields{"sample_rate": format.SampleRate, "channels": format.Channels}).Debug("typing sound format")

	canvas, err := frames.NewCanvas(frames.CanvasOptions{
		Width:       cfg.Width(),
		Height:      cfg.Height(),
		Background:  cfg.Style.BackgroundColor,
		TextColor:   cfg.Style.TextColor,
		FontPath:    cfg.Style.FontPath,
		FontSize:    float64(cfg.Style.FontSize),
		X:           cfg.Style.TextPosition[0],
		Y:           cfg.Style.TextPosition[1],
		LineSpacing: cfg.Style.LineSpacing,
	})
	if err != nil {
		return err
	}
	if canvas.BuiltinFont() {
		colours.Warning.Printf("[!] Шрифт %q не загружен, используется встроенный\n", cfg.Style.FontPath)
	}

	asm := video.NewFFmpegAssembler(video.Params{
		Width:   cfg.Width(),
		Height:  cfg.Height(),
		FPS:     cfg.Video.FPS,
		Encoder: cfg.Video.Encoder,
		Quality: cfg.Video.Quality,
	})
	if asm.Params.Encoder != "libx264" {
		colours.Info.Printf("[*] Обнаружено аппаратное ускорение: %s\n", asm.Params.Encoder)
	}

	project := engine.NewProject(cfg, &audio.FFmpegSynthesizer{}, format, canvas, asm)
	project.InputPath = inputPath
	project.OutputVideo = output
	project.ShowStats = showStats
	project.BuildVersion = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := project.Run(ctx, text)
	if err != nil {
		return fmt.Errorf("ошибка проекта: %w", err)
	}

	colours.Success.Printf("[+++] Успех! Результат: %s\n", output)
	colours.Info.Printf("[*] Кадров: %d | Видео: %.2fs | Аудио: %.2fs | Расхождение: %+.1f мс\n",
		report.Frames, report.VideoMs/1000, report.AudioMs/1000, report.DriftMs)

	container, err := system.GetMediaDuration(output)
	if err != nil {
		logrus.WithError(err).Warn("[!] Не удалось проверить длительность результата")
		return nil
	}
	line, ok := containerCheck(container, report)
	if ok {
		colours.Info.Println(line)
	} else {
		colours.Warning.Println(line)
	}
	return nil
}

// containerTolerance covers encoder padding of the muxed audio stream.
const containerTolerance = 100.0

// containerCheck compares the muxed file's duration with the rendered audio.
func containerCheck(containerS float64, r *engine.Report) (string, bool) {
	diffMs := containerS*1000 - r.AudioMs
	limit := math.Max(r.FrameLimit, containerTolerance)
	line := fmt.Sprintf("[*] Файл: %.2fs | Аудио: %.2fs | Разница: %+.1f мс", containerS, r.AudioMs/1000, diffMs)
	if math.Abs(diffMs) > limit {
		return fmt.Sprintf("[!] Длительность файла %.2fs отличается от аудио %.2fs на %+.1f мс", containerS, r.AudioMs/1000, diffMs), false
	}
	return line, true
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	inputPath, err := resolveInput(args)
	if err != nil {
		return err
	}
	text, err := readInput(inputPath)
	if err != nil {
		return err
	}

	project := engine.NewProject(cfg, nil, audio.DefaultFormat, nil, nil)
	doc, err := project.Plan(text)
	if err != nil {
		return err
	}
	plan := doc.Export(cfg.Video.FPS)

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		return timeline.EncodePlan(os.Stdout, plan)
	}
	if err := timeline.WritePlan(plan, out); err != nil {
		return err
	}
	colours.Success.Printf("[+] Расписание сохранено: %s (%d предложений, %d кадров)\n", out, len(plan.Sentences), plan.Frames)
	return nil
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := defaultConfigFile
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	colours.Success.Printf("[+] Конфигурация записана: %s\n", path)
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		colours.Warning.Fprintf(os.Stderr, "[!] %s\n", w)
	}
	return cfg, nil
}

func resolveInput(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	latest, err := system.FindLatestText(inputDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v. Положите .txt в %s/", errs.ErrInputEmpty, err, inputDir)
	}
	colours.Info.Fprintf(os.Stderr, "[*] Выбран файл: %s\n", latest)
	return latest, nil
}

func readInput(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrAssetMissing, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%w: %s", errs.ErrInputEmpty, path)
	}
	return string(data), nil
}

func defaultOutput(inputPath, format string) string {
	if format == "" {
		format = "mp4"
	}
	baseName := filepath.Base(inputPath)
	nameOnly := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	cleanName := strings.ReplaceAll(nameOnly, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s.%s", cleanName, timestamp, format))
}
