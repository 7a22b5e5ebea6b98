package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"flight_assoc/internal/assoc"
	"flight_assoc/internal/hashassoc"
	"flight_assoc/internal/models"

	"github.com/spf13/viper"
)

// Association protocols
const (
	ProtocolKinematic = "kinematic"
	ProtocolHash      = "hash"
)

// Config holds all configuration of an association run
type Config struct {
	DBPath     string
	Migrations bool
	Protocol   string
	Workers    int
	Contents   []string
	ReportPath string
	Import     ImportConfig
	Log        LogConfig
	Assoc      assoc.Settings
	Hash       hashassoc.Settings
}

// ImportConfig lists report CSV files to load into empty content tables
type ImportConfig struct {
	Files     map[string][]string // content -> CSV paths
	BatchSize int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "flight_assoc.db")
	v.SetDefault("migrations", true)
	v.SetDefault("protocol", ProtocolKinematic)
	v.SetDefault("workers", 0)
	v.SetDefault("contents", models.Contents)
	v.SetDefault("report_path", "")
	v.SetDefault("import.files", map[string][]string{})
	v.SetDefault("import.batch_size", 5000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("write.chunk_size", 50000)

	a := assoc.DefaultSettings()
	v.SetDefault("assoc.associate_non_address", a.AssociateNonAddress)
	v.SetDefault("assoc.track_gap", a.TrackGap)
	v.SetDefault("assoc.continuation_max_time_diff", a.ContinuationMaxTimeDiff)
	v.SetDefault("assoc.continuation_max_distance", a.ContinuationMaxDistance)
	v.SetDefault("assoc.continuation_max_alt_diff", a.ContinuationMaxAltDiff)
	v.SetDefault("assoc.continuation_extrapolate", a.ContinuationExtrapolate)
	v.SetDefault("assoc.max_time_diff_tracker", a.MaxTimeDiffTracker)
	v.SetDefault("assoc.max_altitude_diff_tracker", a.MaxAltitudeDiffTracker)
	v.SetDefault("assoc.min_updates_tracker", a.MinUpdatesTracker)
	v.SetDefault("assoc.prob_min_time_overlap", a.ProbMinTimeOverlap)
	v.SetDefault("assoc.max_positions_dubious", a.MaxPositionsDubious)
	v.SetDefault("assoc.max_distance_quit", a.MaxDistanceQuit)
	v.SetDefault("assoc.max_distance_dubious", a.MaxDistanceDubious)
	v.SetDefault("assoc.max_distance_acceptable", a.MaxDistanceAcceptable)
	v.SetDefault("assoc.max_speed_knots", a.MaxSpeedKnots)
	v.SetDefault("assoc.clean_dubious_targets", a.CleanDubiousTargets)
	v.SetDefault("assoc.mark_dubious_unused", a.MarkDubiousUnused)
	v.SetDefault("assoc.comment_dubious_targets", a.CommentDubiousTargets)
	v.SetDefault("assoc.max_time_diff_sensor", a.MaxTimeDiffSensor)
	v.SetDefault("assoc.max_altitude_diff_sensor", a.MaxAltitudeDiffSensor)
	v.SetDefault("assoc.max_distance_acceptable_sensor", a.MaxDistanceAcceptableSensor)
	v.SetDefault("assoc.mode_a_conspicuity_codes", []string{"7000", "2000", "1200"})

	h := hashassoc.DefaultSettings()
	v.SetDefault("hash.parent_content", h.ParentContent)
	v.SetDefault("hash.end_track_time", h.EndTrackTime)
	v.SetDefault("hash.association_time_past", h.AssociationTimePast)
	v.SetDefault("hash.association_time_future", h.AssociationTimeFuture)
	v.SetDefault("hash.misses_acceptable_time", h.MissesAcceptableTime)
	v.SetDefault("hash.dubious_distant_time", h.DubiousDistantTime)
	v.SetDefault("hash.dubious_close_time_past", h.DubiousCloseTimePast)
	v.SetDefault("hash.dubious_close_time_future", h.DubiousCloseTimeFuture)
	v.SetDefault("hash.ignore_track_end", h.IgnoreTrackEnd)
	v.SetDefault("hash.ignore_track_coasting", h.IgnoreTrackCoasting)
	v.SetDefault("hash.save_with_issues", h.SaveWithIssues)
}

// Load loads configuration from config file and environment variables
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/flight_assoc")
	v.AddConfigPath(".")

	// set by the -config flag in main.go
	if configPath := os.Getenv("FLIGHT_ASSOC_CONFIG_PATH"); configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Defaults and env vars only. The logger is not initialized yet.
	}

	v.SetEnvPrefix("FLIGHT_ASSOC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := build(v)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DBPath:     v.GetString("db_path"),
		Migrations: v.GetBool("migrations"),
		Protocol:   strings.ToLower(v.GetString("protocol")),
		Workers:    v.GetInt("workers"),
		ReportPath: v.GetString("report_path"),
		Import: ImportConfig{
			Files:     make(map[string][]string),
			BatchSize: v.GetInt("import.batch_size"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	for _, name := range v.GetStringSlice("contents") {
		content, err := canonicalContent(name)
		if err != nil {
			return nil, fmt.Errorf("invalid contents: %w", err)
		}
		cfg.Contents = append(cfg.Contents, content)
	}

	// viper lower-cases map keys
	for name, paths := range v.GetStringMapStringSlice("import.files") {
		content, err := canonicalContent(name)
		if err != nil {
			return nil, fmt.Errorf("invalid import.files: %w", err)
		}
		cfg.Import.Files[content] = paths
	}

	codes, err := parseModeACodes(v.GetStringSlice("assoc.mode_a_conspicuity_codes"))
	if err != nil {
		return nil, err
	}

	chunkSize := v.GetInt("write.chunk_size")

	cfg.Assoc = assoc.Settings{
		AssociateNonAddress:         v.GetBool("assoc.associate_non_address"),
		TrackGap:                    v.GetDuration("assoc.track_gap"),
		ContinuationMaxTimeDiff:     v.GetDuration("assoc.continuation_max_time_diff"),
		ContinuationMaxDistance:     v.GetFloat64("assoc.continuation_max_distance"),
		ContinuationMaxAltDiff:      v.GetFloat64("assoc.continuation_max_alt_diff"),
		ContinuationExtrapolate:     v.GetBool("assoc.continuation_extrapolate"),
		MaxTimeDiffTracker:          v.GetDuration("assoc.max_time_diff_tracker"),
		MaxAltitudeDiffTracker:      v.GetFloat64("assoc.max_altitude_diff_tracker"),
		MinUpdatesTracker:           v.GetInt("assoc.min_updates_tracker"),
		ProbMinTimeOverlap:          v.GetFloat64("assoc.prob_min_time_overlap"),
		MaxPositionsDubious:         v.GetInt("assoc.max_positions_dubious"),
		MaxDistanceQuit:             v.GetFloat64("assoc.max_distance_quit"),
		MaxDistanceDubious:          v.GetFloat64("assoc.max_distance_dubious"),
		MaxDistanceAcceptable:       v.GetFloat64("assoc.max_distance_acceptable"),
		MaxSpeedKnots:               v.GetFloat64("assoc.max_speed_knots"),
		CleanDubiousTargets:         v.GetBool("assoc.clean_dubious_targets"),
		MarkDubiousUnused:           v.GetBool("assoc.mark_dubious_unused"),
		CommentDubiousTargets:       v.GetBool("assoc.comment_dubious_targets"),
		MaxTimeDiffSensor:           v.GetDuration("assoc.max_time_diff_sensor"),
		MaxAltitudeDiffSensor:       v.GetFloat64("assoc.max_altitude_diff_sensor"),
		MaxDistanceAcceptableSensor: v.GetFloat64("assoc.max_distance_acceptable_sensor"),
		ModeAConspicuityCodes:       codes,
		Workers:                     cfg.Workers,
		ChunkSize:                   chunkSize,
	}

	parent, err := canonicalContent(v.GetString("hash.parent_content"))
	if err != nil {
		return nil, fmt.Errorf("invalid hash.parent_content: %w", err)
	}

	cfg.Hash = hashassoc.Settings{
		ParentContent:          parent,
		EndTrackTime:           v.GetDuration("hash.end_track_time"),
		AssociationTimePast:    v.GetDuration("hash.association_time_past"),
		AssociationTimeFuture:  v.GetDuration("hash.association_time_future"),
		MissesAcceptableTime:   v.GetDuration("hash.misses_acceptable_time"),
		DubiousDistantTime:     v.GetDuration("hash.dubious_distant_time"),
		DubiousCloseTimePast:   v.GetDuration("hash.dubious_close_time_past"),
		DubiousCloseTimeFuture: v.GetDuration("hash.dubious_close_time_future"),
		IgnoreTrackEnd:         v.GetBool("hash.ignore_track_end"),
		IgnoreTrackCoasting:    v.GetBool("hash.ignore_track_coasting"),
		SaveWithIssues:         v.GetBool("hash.save_with_issues"),
		Workers:                cfg.Workers,
		ChunkSize:              chunkSize,
	}

	return cfg, nil
}

// canonicalContent matches a content name case-insensitively
func canonicalContent(name string) (string, error) {
	for _, c := range models.Contents {
		if strings.EqualFold(c, strings.TrimSpace(name)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown content %q", name)
}

// parseModeACodes parses octal mode A codes
func parseModeACodes(values []string) ([]uint32, error) {
	codes := make([]uint32, 0, len(values))
	for _, s := range values {
		c, err := strconv.ParseUint(strings.TrimSpace(s), 8, 12)
		if err != nil {
			return nil, fmt.Errorf("invalid mode A conspicuity code %q: %w", s, err)
		}
		codes = append(codes, uint32(c))
	}
	return codes, nil
}

// validate validates the configuration values
func validate(cfg *Config) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}

	if cfg.Protocol != ProtocolKinematic && cfg.Protocol != ProtocolHash {
		return fmt.Errorf("invalid protocol: %s (must be %s or %s)", cfg.Protocol, ProtocolKinematic, ProtocolHash)
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	if len(cfg.Contents) == 0 {
		return fmt.Errorf("contents must not be empty")
	}

	if cfg.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be greater than 0")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[strings.ToLower(cfg.Log.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", cfg.Log.Format)
	}

	if err := cfg.Assoc.Validate(); err != nil {
		return fmt.Errorf("assoc: %w", err)
	}
	if err := cfg.Hash.Validate(); err != nil {
		return fmt.Errorf("hash: %w", err)
	}

	return nil
}
