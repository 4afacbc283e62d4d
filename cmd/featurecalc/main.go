package main

import (
	"io"
	"os"
	"strings"

	"github.com/woozymasta/geoprops/internal/calc"
	"github.com/woozymasta/geoprops/internal/config"
	"github.com/woozymasta/geoprops/internal/logger"
	"github.com/woozymasta/geoprops/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file, built-in defaults when empty"`
	Out         string `short:"o" long:"out"         env:"OUT_DIR"     description:"Output directory for batch mode" default:"."`
	Format      string `short:"f" long:"format"      env:"FORMAT"      description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Indent      string `short:"i" long:"indent"                        description:"Indent string, compact output when empty" default:"  "`
	Minify      bool   `short:"m" long:"minify"                        description:"Minify JSON output"`
	Concurrency int    `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Concurrency" default:"8"`
	Force       bool   `short:"F" long:"force"                         description:"Force overwrite of existing files"`
	YAMLInput   bool   `short:"y" long:"yaml-input"                    description:"Treat stdin as YAML"`

	Args struct {
		Files []string `positional-arg-name:"FILE" description:"GeoJSON or YAML feature files, stdin when none"`
	} `positional-args:"yes"`
}

func main() {
	envErr := config.LoadEnv()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()
	if envErr != nil {
		log.Warn().Err(envErr).Msg("Failed to load .env file")
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	t, err := cfg.Transformer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build projection")
	}
	calculator, err := calc.New(t)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize calculator")
	}

	enc := processor.Encoding{Format: opts.Format, Indent: opts.Indent, Minify: opts.Minify}

	if len(opts.Args.Files) == 0 {
		os.Exit(runStream(calculator, enc, opts.YAMLInput))
	}

	results := processor.ProcessFiles(calculator, opts.Args.Files, processor.Options{
		Encoding:    enc,
		OutDir:      opts.Out,
		Concurrency: opts.Concurrency,
		Force:       opts.Force,
	})

	var failed, skipped int
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
		case res.Skipped:
			skipped++
		default:
			log.Info().
				Str("path", res.Path).
				Str("output", res.Output).
				Float64("area", res.Area).
				Str("centroid_geohash", res.Geohash).
				Msg("Feature written")
		}
	}

	log.Info().
		Int("total", len(results)).
		Int("failed", failed).
		Int("skipped", skipped).
		Msg("Batch finished")

	if failed > 0 {
		os.Exit(1)
	}
}

// runStream reads one feature from stdin and writes the result to stdout.
// It returns the process exit code: 1 for rejected input, 2 for internal faults.
func runStream(c *calc.Calculator, enc processor.Encoding, yamlInput bool) int {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read stdin")
		return 1
	}

	payload, err := processor.ToJSON(raw, yamlInput)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse input")
		return 1
	}

	out, err := c.Calculate(payload)
	if err != nil {
		if kind := calc.KindOf(err); kind != calc.KindUnknown {
			log.Error().Err(err).Stringer("kind", kind).Msg("Feature rejected")
			return 1
		}
		log.Error().Err(err).Msg("Feature processing failed")
		return 2
	}

	data, err := processor.Marshal(out, enc)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode feature")
		return 2
	}
	if !strings.HasSuffix(string(data), "\n") {
		data = append(data, '\n')
	}

	if _, err := os.Stdout.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write output")
		return 1
	}
	return 0
}
