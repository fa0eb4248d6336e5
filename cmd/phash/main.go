package main

import (
	"context"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"phash/config"
	"phash/internal/boundary"
	"phash/internal/imagehash"
	"phash/internal/logging"
)

// invocation is a parsed command line. Override fields are nil unless the
// flag was given, so explicit zero values still win over the config.
type invocation struct {
	configPath string
	mode       mode
	files      []string

	logLevel    *string
	logFormat   *string
	concurrency *int
	maxPixels   *int
	alpha       *float64
	level       *float64
}

func newApp() (*kingpin.Application, func(cmd string) *invocation) {
	cli := kingpin.New("phash", "Compute perceptual image hashes.")
	configPath := cli.Flag("config", "Path to a YAML configuration file.").Envar(config.EnvConfigPath).String()

	var levelSet, formatSet, concurrencySet, maxPixelsSet, alphaSet, mhLevelSet bool
	logLevel := cli.Flag("log-level", "Diagnostic log level (debug, info, warn, error).").IsSetByUser(&levelSet).String()
	logFormat := cli.Flag("log-format", "Diagnostic log format (json, console).").IsSetByUser(&formatSet).String()
	concurrency := cli.Flag("concurrency", "Number of files hashed in parallel.").IsSetByUser(&concurrencySet).Int()
	maxPixels := cli.Flag("max-pixels", "Largest width*height accepted.").IsSetByUser(&maxPixelsSet).Int()

	dctCmd := cli.Command("dct", "Print the 64-bit DCT hash of each image.")
	dctFiles := dctCmd.Arg("files", "Image files.").Required().Strings()

	mhCmd := cli.Command("mh", "Print the 72-byte Marr-Hildreth hash of each image.")
	mhAlpha := mhCmd.Flag("alpha", "Kernel scale base.").IsSetByUser(&alphaSet).Float64()
	mhLevel := mhCmd.Flag("level", "Kernel scale exponent.").IsSetByUser(&mhLevelSet).Float64()
	mhFiles := mhCmd.Arg("files", "Image files.").Required().Strings()

	build := func(cmd string) *invocation {
		inv := &invocation{configPath: *configPath}
		switch cmd {
		case mhCmd.FullCommand():
			inv.mode, inv.files = modeMH, *mhFiles
		default:
			inv.mode, inv.files = modeDCT, *dctFiles
		}
		if levelSet {
			inv.logLevel = logLevel
		}
		if formatSet {
			inv.logFormat = logFormat
		}
		if concurrencySet {
			inv.concurrency = concurrency
		}
		if maxPixelsSet {
			inv.maxPixels = maxPixels
		}
		if alphaSet {
			inv.alpha = mhAlpha
		}
		if mhLevelSet {
			inv.level = mhLevel
		}
		return inv
	}
	return cli, build
}

func parseArgs(args []string) (*invocation, error) {
	cli, build := newApp()
	cmd, err := cli.Parse(args)
	if err != nil {
		return nil, err
	}
	return build(cmd), nil
}

// apply copies the flags that were given onto cfg.
func (inv *invocation) apply(cfg *config.Config) {
	if inv.logLevel != nil {
		cfg.Log.Level = *inv.logLevel
	}
	if inv.logFormat != nil {
		cfg.Log.Format = *inv.logFormat
	}
	if inv.concurrency != nil {
		cfg.Concurrency = *inv.concurrency
	}
	if inv.maxPixels != nil {
		cfg.MaxPixels = *inv.maxPixels
	}
	if inv.alpha != nil {
		cfg.MH.Alpha = *inv.alpha
	}
	if inv.level != nil {
		cfg.MH.Level = *inv.level
	}
}

func main() {
	inv, err := parseArgs(os.Args[1:])
	kingpin.FatalIfError(err, "")

	cfg := config.DefaultConfig()
	if inv.configPath != "" {
		cfg, err = config.LoadConfig(inv.configPath)
		kingpin.FatalIfError(err, "")
	}
	kingpin.FatalIfError(config.ApplyEnv(cfg, os.LookupEnv), "")
	inv.apply(cfg)
	kingpin.FatalIfError(config.Validate(cfg), "")

	logger, err := logging.New("phash", cfg.Log, os.Stderr)
	kingpin.FatalIfError(err, "")
	defer logger.Sync()

	hasher := imagehash.NewHasher(imagehash.WithMaxPixels(cfg.MaxPixels))
	adapter := boundary.New(hasher, logger)
	params := imagehash.MHParams{Alpha: cfg.MH.Alpha, Level: cfg.MH.Level}
	results := hashFiles(context.Background(), adapter, inv.mode, inv.files, params, cfg.Concurrency)

	failed, err := writeResults(os.Stdout, results)
	if err != nil {
		logger.Error("write results", zap.Error(err))
		failed++
	}
	if failed > 0 {
		_ = logger.Sync()
		os.Exit(1)
	}
}
