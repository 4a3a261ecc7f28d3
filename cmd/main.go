package main

import (
	"flag"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/arne314/chatpack/internal/app"
	"github.com/arne314/chatpack/internal/chat"
	cfg "github.com/arne314/chatpack/internal/config"
	"github.com/arne314/chatpack/internal/decoder"
	"github.com/arne314/chatpack/internal/output"
)

var config *cfg.Config = cfg.Default()

func main() {
	flagPlatform := flag.String("platform", "", "Source platform: telegram, whatsapp, instagram or discord")
	flagIn := flag.String("in", "", "Path of the chat export to read")
	flagOut := flag.String("out", "", "Path of the output file to write")
	flagFormat := flag.String("format", "", "Output format: csv, json, jsonl or sqlite (default: by output extension)")
	flagDiscordFormat := flag.String("discord-format", "auto", "Discord export sub-format: auto, json, txt or csv")
	flagMerge := flag.Bool("merge", false, "Merge consecutive messages of the same sender")
	flagStream := flag.Bool("stream", false, "Decode with the bounded streaming path")
	flagFrom := flag.String("from", "", "Keep messages on or after this date (YYYY-MM-DD)")
	flagTo := flag.String("to", "", "Keep messages up to and including this date (YYYY-MM-DD)")
	flagSender := flag.String("sender", "", "Keep messages of this sender only (case-insensitive)")
	flagConfig := flag.String("config", "config/config.toml", "Path of the config file")
	flagVerbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	config.Load(*flagConfig)
	config.SetupLogger(*flagVerbose)

	if *flagPlatform == "" || *flagIn == "" || *flagOut == "" {
		flag.Usage()
		log.Fatalf("-platform, -in and -out are required")
	}

	platform, err := decoder.ParsePlatform(*flagPlatform)
	if err != nil {
		log.Fatalf("Invalid platform: %v", err)
	}
	discordFormat, err := decoder.ParseDiscordFormat(*flagDiscordFormat)
	if err != nil {
		log.Fatalf("Invalid Discord sub-format: %v", err)
	}

	converter := &app.Converter{Config: config}
	err = converter.Run(app.Options{
		Platform:      platform,
		DiscordFormat: discordFormat,
		InputPath:     *flagIn,
		OutputPath:    *flagOut,
		Format:        resolveFormat(*flagFormat, *flagOut),
		Merge:         *flagMerge,
		Stream:        *flagStream,
		Filter:        buildFilter(*flagFrom, *flagTo, *flagSender),
	})
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
}

// resolveFormat picks the output format: an explicit flag wins, then the
// output file extension, then the configured default.
func resolveFormat(name, outPath string) output.Format {
	if name != "" {
		format, err := output.ParseFormat(name)
		if err != nil {
			log.Fatalf("Invalid output format: %v", err)
		}
		return format
	}
	if format, ok := output.FormatFromPath(outPath); ok {
		return format
	}
	format, err := output.ParseFormat(config.Output.Format)
	if err != nil {
		log.Fatalf("Invalid output format in config: %v", err)
	}
	return format
}

func buildFilter(from, to, sender string) chat.Filter {
	filter := chat.Filter{Sender: sender}
	if from != "" {
		date, err := chat.ParseDate(from)
		if err != nil {
			log.Fatalf("Invalid -from date: %v", err)
		}
		filter.After = date
	}
	if to != "" {
		date, err := chat.ParseDate(to)
		if err != nil {
			log.Fatalf("Invalid -to date: %v", err)
		}
		// The upper bound is exclusive; midnight of the next day keeps
		// the whole named day.
		filter.Before = date.Add(24 * time.Hour)
	}
	return filter
}
