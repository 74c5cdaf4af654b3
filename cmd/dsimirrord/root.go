package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wxd9199/drmclone/internal/config"
	"github.com/wxd9199/drmclone/internal/daemon"
	"github.com/wxd9199/drmclone/internal/hotplug"
	"github.com/wxd9199/drmclone/internal/logging"
	"github.com/wxd9199/drmclone/internal/mirror"
	"github.com/wxd9199/drmclone/internal/sink"
	"github.com/wxd9199/drmclone/internal/syscheck"
	"github.com/wxd9199/drmclone/internal/topology"
)

// version is set at release build time via -ldflags; left at "dev" for
// ordinary builds.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "dsimirrord",
	Short:        "Mirror a DSI primary panel to HDMI/DisplayPort secondary outputs",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolP("version", "v", false, "print the version and exit")
	flags.String("device", "/dev/dri/card0", "KMS device node to open")
	flags.String("primary-match", "DSI-1", "substring a connector name must contain to be selected as primary")
	flags.String("scale-mode", "stretch", "scale mode: stretch or keep-aspect")
	flags.Int("rotation", 90, "rotation in degrees: 0, 90, 180, or 270")
	flags.String("quality", "good", "blit quality: fast or good")
	flags.Bool("debug", false, "set the debug flag (reported at startup; does not change mirror loop output)")
	flags.BoolP("daemon", "d", false, "detach from the controlling terminal")
	flags.Int("log-level", 2, "log level 0=trace .. 5=critical")
	flags.String("log-file", "./dsimirrord.log", "log file path")
	flags.Bool("no-console", false, "disable console log sink")
	flags.Bool("no-file-log", false, "disable file log sink")
	flags.Bool("refresh-on-hotplug", false, "re-enable an already-connected sink on every hot-plug event")
	flags.Int("target-fps", 0, "pin the mirror loop's pacing target; 0 derives it from the primary mode")

	viper.BindPFlag("device", flags.Lookup("device"))
	viper.BindPFlag("primary_match", flags.Lookup("primary-match"))
	viper.BindPFlag("scale_mode", flags.Lookup("scale-mode"))
	viper.BindPFlag("rotation", flags.Lookup("rotation"))
	viper.BindPFlag("quality", flags.Lookup("quality"))
	viper.BindPFlag("debug", flags.Lookup("debug"))
	viper.BindPFlag("daemon", flags.Lookup("daemon"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_file", flags.Lookup("log-file"))
	viper.BindPFlag("no_console", flags.Lookup("no-console"))
	viper.BindPFlag("no_file_log", flags.Lookup("no-file-log"))
	viper.BindPFlag("refresh_on_hotplug", flags.Lookup("refresh-on-hotplug"))
	viper.BindPFlag("target_fps", flags.Lookup("target-fps"))
}

func run(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetBool("version"); v {
		cmd.Println("dsimirrord " + version)
		return nil
	}

	device := viper.GetString("device")
	displayCfg := buildDisplayConfig()
	logCfg := buildLogConfig()

	if viper.GetBool("daemon") && !daemon.AlreadyDaemonized() {
		return daemon.Daemonize(logCfg.EnableConsole)
	}

	logging.Init(logCfg)
	log := logging.WithComponent("main")

	if err := syscheck.Check(); err != nil {
		log.Error().Err(err).Msg("startup preconditions not satisfied")
		os.Exit(1)
	}

	gw, err := topology.Open(device, displayCfg.PrimaryMatch)
	if err != nil {
		log.Error().Err(err).Str("device", device).Msg("failed to open KMS device")
		os.Exit(1)
	}
	defer gw.Close()

	if err := gw.Scan(); err != nil {
		log.Error().Err(err).Msg("initial topology scan failed")
		os.Exit(1)
	}

	pool := sink.New(gw.File())
	defer pool.Close()

	loop := mirror.New(gw, pool, displayCfg)

	reactor := hotplug.New(loop.OnHotplug)
	if err := reactor.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start hot-plug reactor")
		os.Exit(1)
	}
	defer reactor.Stop()

	loop.Start()
	defer loop.Stop()

	log.Info().
		Str("scale_mode", displayCfg.ScaleMode.String()).
		Int("rotation", int(displayCfg.Rotation)).
		Str("quality", displayCfg.Quality.String()).
		Bool("debug", displayCfg.EnableDebug).
		Msg("dsimirrord running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	return nil
}

func buildDisplayConfig() config.DisplayConfig {
	cfg := config.DefaultDisplayConfig()

	if sm, ok := config.ParseScaleMode(viper.GetString("scale_mode")); ok {
		cfg.ScaleMode = sm
	}
	if rot, ok := config.ParseRotation(viper.GetInt("rotation")); ok {
		cfg.Rotation = rot
	}
	if q, ok := config.ParseQuality(viper.GetString("quality")); ok {
		cfg.Quality = q
	}
	cfg.EnableDebug = viper.GetBool("debug")
	cfg.PrimaryMatch = viper.GetString("primary_match")
	cfg.RefreshOnHotplug = viper.GetBool("refresh_on_hotplug")
	cfg.TargetFPS = viper.GetInt("target_fps")
	return cfg
}

func buildLogConfig() config.LogConfig {
	cfg := config.DefaultLogConfig()
	cfg.Level = viper.GetInt("log_level")
	cfg.LogFilePath = viper.GetString("log_file")
	cfg.EnableConsole = !viper.GetBool("no_console")
	cfg.EnableFile = !viper.GetBool("no_file_log")
	return cfg
}
