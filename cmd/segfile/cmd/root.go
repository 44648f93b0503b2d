package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jpl-au/segfile"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:          "segfile",
	Short:        "Inspect, verify and build segment containers",
	Long:         "CLI for packing files into segment containers and checking their integrity.",
	SilenceUsage: true,
}

var logger = zerolog.Nop()

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ~/.config/segfile/config.yaml)")
	flags.String("hash", "sha1", "digest algorithm for assured segments (sha1, sha256, blake2b-256, blake3, xxh3)")
	flags.String("verify", "full", "verification mode when reading (full, hash, none)")
	flags.String("private-key", "", "PEM private key used to sign assured segments")
	flags.String("public-key", "", "PEM public key used to verify signatures")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	viper.BindPFlag("hash", flags.Lookup("hash"))
	viper.BindPFlag("verify", flags.Lookup("verify"))
	viper.BindPFlag("private_key", flags.Lookup("private-key"))
	viper.BindPFlag("public_key", flags.Lookup("public-key"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
}

func initConfig() {
	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SEGFILE")
	viper.AutomaticEnv()
	viper.SetDefault("codec", "deflate")
	viper.SetDefault("slots", segfile.DefaultSlots)
	viper.SetDefault("level", 0)
	viper.SetDefault("concurrency", 4)

	viper.ReadInConfig()

	logger = newLogger(viper.GetString("log_level"))
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "segfile")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "segfile")
	}
	return ".segfile"
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// settings is the resolved configuration shared by every subcommand.
type settings struct {
	Hash        string
	Codec       string
	Verify      string
	PrivateKey  string
	PublicKey   string
	Slots       int
	Level       int
	Concurrency int
}

func loadSettings() settings {
	return settings{
		Hash:        viper.GetString("hash"),
		Codec:       viper.GetString("codec"),
		Verify:      viper.GetString("verify"),
		PrivateKey:  viper.GetString("private_key"),
		PublicKey:   viper.GetString("public_key"),
		Slots:       viper.GetInt("slots"),
		Level:       viper.GetInt("level"),
		Concurrency: viper.GetInt("concurrency"),
	}
}

// options turns settings into container options. Writers sign with the
// private key; readers prefer the public key and fall back to the private
// key's public half.
func (s settings) options(log *zerolog.Logger) (segfile.Options, error) {
	opts := segfile.Options{
		Slots:            s.Slots,
		CompressionLevel: s.Level,
		Logger:           log,
	}
	alg, err := segfile.ParseHashAlgorithm(s.Hash)
	if err != nil {
		return opts, err
	}
	opts.Signing.Algorithm = alg
	if opts.Codec, err = segfile.ParseCodec(s.Codec); err != nil {
		return opts, err
	}
	if opts.Verify, err = segfile.ParseVerifyMode(s.Verify); err != nil {
		return opts, err
	}

	switch {
	case s.PublicKey != "":
		data, err := os.ReadFile(s.PublicKey)
		if err != nil {
			return opts, fmt.Errorf("reading public key: %w", err)
		}
		if opts.Signing.Key, err = segfile.ParsePublicKey(data); err != nil {
			return opts, err
		}
	case s.PrivateKey != "":
		data, err := os.ReadFile(s.PrivateKey)
		if err != nil {
			return opts, fmt.Errorf("reading private key: %w", err)
		}
		if opts.Signing.Key, err = segfile.ParsePrivateKey(data); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// writerOptions is options with the private key taking precedence, since
// only it can sign.
func (s settings) writerOptions(log *zerolog.Logger) (segfile.Options, error) {
	if s.PrivateKey != "" {
		s.PublicKey = ""
	}
	return s.options(log)
}
