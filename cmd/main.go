package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prashantji77/youtube-video-summarizer/internal/config"
	"github.com/prashantji77/youtube-video-summarizer/internal/db"
	"github.com/prashantji77/youtube-video-summarizer/internal/embedding"
	"github.com/prashantji77/youtube-video-summarizer/internal/handlers"
	"github.com/prashantji77/youtube-video-summarizer/internal/helper"
	"github.com/prashantji77/youtube-video-summarizer/internal/llmservice"
	"github.com/prashantji77/youtube-video-summarizer/internal/parser"
	"github.com/prashantji77/youtube-video-summarizer/internal/rag"
	"github.com/prashantji77/youtube-video-summarizer/internal/server"
	"github.com/prashantji77/youtube-video-summarizer/internal/youtube"
)

const (
	configFilePath  = "./configs/config.yaml"
	shutdownTimeout = 10 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
	zerolog.DefaultContextLogger = &log.Logger

	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	videoURL := flag.String("video", "", "YouTube video URL to ask about")
	question := flag.String("question", "", "Question to be answered")
	transcriptFile := flag.String("transcript-file", "", "Answer from a local transcript file (.txt, .srt or .vtt) instead of fetching captions")
	dryRun := flag.Bool("dry-run", false, "Print the transcript chunks without calling any model")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not load .env")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, keeping debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	oneShot := *videoURL != "" || *transcriptFile != ""
	switch {
	case *dryRun && oneShot:
		printChunks(ctx, cfg, *videoURL, *transcriptFile)
	case oneShot:
		if *question == "" {
			log.Fatal().Msg("Please provide a question using the -question flag")
		}
		askOnce(ctx, cfg, *videoURL, *transcriptFile, *question)
	case *dryRun || *question != "":
		log.Fatal().Msg("Please provide a video using the -video flag or a transcript using the -transcript-file flag")
	default:
		serve(ctx, cfg)
	}
}

func newPipeline(cfg *config.Config) *rag.Pipeline {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	llm, err := llmservice.NewLLM(&cfg.InferenceLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM")
	}
	pipeline, err := rag.NewPipeline(embedder, llm, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating pipeline")
	}
	log.Debug().
		Str("embedder", embedder.Model()).
		Str("llm", cfg.InferenceLLM.Provider+"/"+cfg.InferenceLLM.Model).
		Msg("Pipeline ready")
	return pipeline
}

func loadTranscript(ctx context.Context, cfg *config.Config, videoURL, transcriptFile string) string {
	if transcriptFile != "" {
		transcript, err := parser.ReadTranscriptFile(transcriptFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Error reading transcript file")
		}
		return transcript
	}

	videoID, ok := youtube.ExtractVideoID(videoURL)
	if !ok {
		log.Fatal().Str("video", videoURL).Msg(handlers.MsgBadVideoURL)
	}
	fetcher, err := youtube.NewFetcher(&cfg.Transcript)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating transcript fetcher")
	}
	transcript, err := fetcher.Fetch(ctx, videoID)
	if err != nil {
		log.Fatal().Err(err).Str("video_id", videoID).Msg("Error fetching transcript")
	}
	return transcript
}

func askOnce(ctx context.Context, cfg *config.Config, videoURL, transcriptFile, question string) {
	transcript := loadTranscript(ctx, cfg, videoURL, transcriptFile)
	pipeline := newPipeline(cfg)

	response, err := pipeline.Run(ctx, transcript, question)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering question")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", question)

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Source)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

func printChunks(ctx context.Context, cfg *config.Config, videoURL, transcriptFile string) {
	transcript := loadTranscript(ctx, cfg, videoURL, transcriptFile)

	chunks, err := parser.Split(transcript, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		log.Fatal().Err(err).Msg("Error chunking transcript")
	}
	log.Info().Int("chunks", len(chunks)).Msg("Chunked transcript")
	if err := helper.PrettyPrint(os.Stdout, chunks); err != nil {
		log.Fatal().Err(err).Msg("Error printing chunks")
	}
}

func serve(ctx context.Context, cfg *config.Config) {
	fetcher, err := youtube.NewFetcher(&cfg.Transcript)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating transcript fetcher")
	}
	pipeline := newPipeline(cfg)

	var (
		recorder handlers.HistoryRecorder
		routes   = server.Handlers{}
	)
	if cfg.Database.Enabled {
		history := openHistory(ctx, &cfg.Database)
		defer history.Close()
		recorder = history
		routes.History = handlers.NewHistoryHandler(history)
	}
	routes.Ask = handlers.NewAskHandler(fetcher, pipeline, recorder).
		WithRequestTimeout(cfg.Server.RequestTimeout())

	srv := server.New(&cfg.Server, routes)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down")
		}
	}
}

func openHistory(ctx context.Context, cfg *config.DatabaseConfig) *db.History {
	dbClient, err := db.ConnectDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	dbInstance := db.NewDB(dbClient, cfg.Debug)
	if err := db.InitDB(ctx, dbInstance); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}
	log.Info().Str("driver", cfg.Driver).Msg("Q&A history enabled")
	return db.NewHistory(dbInstance)
}
