package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/pdf2png/internal/canvas"
	"github.com/ivlev/pdf2png/internal/config"
	"github.com/ivlev/pdf2png/internal/engine"
	"github.com/ivlev/pdf2png/internal/objecturl"
	"github.com/ivlev/pdf2png/internal/pdflib"
	"github.com/ivlev/pdf2png/internal/planner"
	"github.com/ivlev/pdf2png/internal/server"
	"github.com/ivlev/pdf2png/internal/system"
)

// Подставляется через -ldflags "-X main.buildVersion=..."
var buildVersion = "dev"

func main() {
	configPtr := flag.String("config", "", "Путь к YAML-конфигу (необязательно)")
	inputPtr := flag.String("input", "", "Путь к PDF (по умолчанию: самый свежий файл в input/pdf/)")
	outputPtr := flag.String("output", "", "Путь к PNG (если пусто, генерируется автоматически в output/)")
	backendPtr := flag.String("backend", "", "Движок PDF: fitz (MuPDF) или pdfium (WebAssembly)")
	scalePtr := flag.Float64("scale", 0, "Базовый масштаб рендера (по умолчанию 2.0)")
	maxWidthPtr := flag.Int("max-width", -1, "Максимальная ширина PNG в пикселях (0 - без ограничения)")
	workersPtr := flag.Int("workers", 0, "Размер пула воркеров pdfium")
	servePtr := flag.Bool("serve", false, "Запустить HTTP-сервер вместо разовой конвертации")
	addrPtr := flag.String("addr", "", "Адрес HTTP-сервера (например, :8080)")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности")
	logLevelPtr := flag.String("log-level", "", "Уровень логов: debug, info, warn, error")

	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	cfg.BuildVersion = buildVersion

	// Флаги важнее файла и окружения
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputPath = *inputPtr
		case "output":
			cfg.OutputPath = *outputPtr
		case "backend":
			cfg.Backend = *backendPtr
		case "scale":
			cfg.BaseScale = *scalePtr
		case "max-width":
			cfg.MaxWidth = *maxWidthPtr
		case "workers":
			cfg.Workers = *workersPtr
		case "addr":
			cfg.ListenAddr = *addrPtr
		case "stats":
			cfg.ShowStats = *statsPtr
		case "log-level":
			cfg.LogLevel = *logLevelPtr
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[-] %v", err)
	}

	logger := config.SetupLogging(cfg.LogLevel, os.Stderr)

	if m, err := system.ReadMemory(); err == nil {
		fmt.Printf("[*] Память: %s\n", m)
		if err := m.CheckHeadroom(planner.PixelBudget, cfg.Workers); err != nil {
			log.Printf("[!] %v", err)
		}
	}

	loader := pdflib.Shared(cfg.PDFOptions())
	store := objecturl.NewStore(cfg.PreviewTTL)
	conv := engine.New(loader, canvas.Native(store),
		engine.WithBaseScale(cfg.BaseScale),
		engine.WithMaxWidth(cfg.MaxWidth),
		engine.WithLogger(logger),
	)

	if *servePtr {
		serve(cfg, conv, store, loader)
		return
	}

	if err := convertFile(cfg, conv, loader); err != nil {
		log.Fatalf("[-] %v", err)
	}
}

func serve(cfg *config.Config, conv *engine.Converter, store *objecturl.Store, loader *pdflib.Loader) {
	system.InitResourceLimits(2048)

	srv := server.New(server.Options{
		Converter:      conv,
		Store:          store,
		Loader:         loader,
		Backend:        cfg.Backend,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Version:        cfg.BuildVersion,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.ListenAddr) }()
	fmt.Printf("[*] Сервер запущен на %s (движок: %s)\n", cfg.ListenAddr, cfg.Backend)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("[-] Ошибка сервера: %v", err)
		}
	case <-ctx.Done():
		fmt.Println("[*] Остановка сервера...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[!] Ошибка остановки: %v", err)
		}
	}
}

func convertFile(cfg *config.Config, conv *engine.Converter, loader *pdflib.Loader) error {
	// Создаем нужные директории, если их нет
	for _, d := range []string{"input/pdf", "output"} {
		os.MkdirAll(d, 0755)
	}

	inputPath := cfg.InputPath
	if inputPath == "" {
		latest, err := system.FindLatestPDF("input/pdf")
		if err != nil {
			return fmt.Errorf("ошибка: %v. Положите PDF в input/pdf/", err)
		}
		inputPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", inputPath)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("ошибка чтения PDF: %w", err)
	}

	fmt.Println("--- [PDF -> PNG] ---")
	fmt.Printf("[*] Источник: %s | Размер: %d байт\n", inputPath, len(data))
	fmt.Printf("[*] Движок: %s | Масштаб: %.2f\n", cfg.Backend, cfg.BaseScale)
	fmt.Println("--------------------")

	startTime := time.Now()
	loadStart := time.Now()
	if _, err := loader.Acquire(context.Background()); err != nil {
		// Конвертер сам вернет LibraryLoadFailure, здесь только замер времени
		log.Printf("[!] Библиотека не загружена: %v", err)
	}
	loadTime := time.Since(loadStart)

	convertStart := time.Now()
	res := conv.Convert(context.Background(), engine.Request{Data: data, Name: filepath.Base(inputPath)})
	if !res.OK() {
		return fmt.Errorf("ошибка конвертации: %s", res.Failure.Message)
	}
	convertTime := time.Since(convertStart)
	out := res.Success
	defer conv.Revoke(out.DisplayURL)

	finalOutput := cfg.OutputPath
	if finalOutput == "" {
		cleanName := strings.ReplaceAll(out.Name, " ", "_")
		finalOutput = filepath.Join("output", cleanName)
	}
	if err := out.Image.WriteToFile(finalOutput, 0644); err != nil {
		return fmt.Errorf("ошибка записи PNG: %w", err)
	}

	if out.Fallback {
		fmt.Println("[!] PNG получен через запасной путь (data URL)")
	}
	if cfg.ShowStats {
		fmt.Printf(
			"--- [PERFORMANCE REPORT] ---\n"+
				"Build: %s\n"+
				"Total Time: %.2fs\n"+
				"Library Load: %.2fs\n"+
				"Convert: %.2fs\n"+
				"Plan: %s (%d px)\n"+
				"PNG Size: %d bytes\n"+
				"----------------------------\n",
			cfg.BuildVersion, time.Since(startTime).Seconds(), loadTime.Seconds(), convertTime.Seconds(),
			out.Plan, out.Plan.Pixels(), out.Image.Len())
	}

	fmt.Printf("[+++] Успех! Результат: %s\n", finalOutput)
	return nil
}
