// iqdecode-capture - RTL-SDR acquisition front end for iqdecode
// Captures I/Q samples from RTL-SDR hardware and writes them in the raw
// interchange format the iqdecode tool reads back.
package main

import (
	"context"
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"iqdecode/internal/capture"
	"iqdecode/internal/config"
	"iqdecode/internal/export"
	"iqdecode/internal/version"
)

// Command line flag variables
var (
	cfgFile     string
	frequency   float64
	sampleRate  uint32
	gain        float64
	gainMode    string
	deviceIndex int
	serial      string
	biasTee     bool
	correction  int
	duration    string
	outputFile  string
	showVersion bool
)

var rootCmd = &cobra.Command{
	Use:   "iqdecode-capture",
	Short: "RTL-SDR acquisition front end for iqdecode",
	Long: `iqdecode-capture tunes an RTL-SDR device, collects I/Q samples for a fixed
duration and stores them in the raw interchange format, ready for windowed
decoding and spectral analysis with iqdecode.`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("iqdecode-capture"))
			return
		}
		if err := runCapture(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// init initializes the CLI flags and configuration
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./iqdecode.yaml)")
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)

	rootCmd.Flags().Float64VarP(&frequency, "frequency", "f", 433.92e6, "center frequency (Hz)")
	rootCmd.Flags().Uint32Var(&sampleRate, "sample-rate", 2048000, "sample rate (Hz)")
	rootCmd.Flags().Float64VarP(&gain, "gain", "g", 20.7, "tuner gain (dB, manual mode)")
	rootCmd.Flags().StringVar(&gainMode, "gain-mode", "manual", "gain mode: auto or manual")
	rootCmd.Flags().IntVar(&deviceIndex, "device-index", 0, "RTL-SDR device index")
	rootCmd.Flags().StringVar(&serial, "serial", "", "RTL-SDR device serial number (preferred over device index)")
	rootCmd.Flags().BoolVar(&biasTee, "bias-tee", false, "enable bias tee")
	rootCmd.Flags().IntVar(&correction, "correction", 0, "frequency correction (PPM)")
	rootCmd.Flags().StringVarP(&duration, "duration", "d", "10s", "acquisition duration")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "capture.bin", "output file")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version information")

	viper.BindPFlag("capture.frequency", rootCmd.Flags().Lookup("frequency"))
	viper.BindPFlag("capture.sample_rate", rootCmd.Flags().Lookup("sample-rate"))
	viper.BindPFlag("capture.gain", rootCmd.Flags().Lookup("gain"))
	viper.BindPFlag("capture.gain_mode", rootCmd.Flags().Lookup("gain-mode"))
	viper.BindPFlag("capture.device_index", rootCmd.Flags().Lookup("device-index"))
	viper.BindPFlag("capture.serial_number", rootCmd.Flags().Lookup("serial"))
	viper.BindPFlag("capture.bias_tee", rootCmd.Flags().Lookup("bias-tee"))
	viper.BindPFlag("capture.frequency_correction", rootCmd.Flags().Lookup("correction"))
	viper.BindPFlag("capture.output_file", rootCmd.Flags().Lookup("output"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("iqdecode")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		glog.V(1).Infof("using config file %s", viper.ConfigFileUsed())
	}
}

// runCapture is the main application logic
func runCapture() error {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	dur, err := time.ParseDuration(duration)
	if err != nil {
		return fmt.Errorf("invalid duration format: %w", err)
	}
	cfg.Capture.Duration = dur

	fmt.Printf("iqdecode-capture starting...\n")
	fmt.Printf("Frequency: %.3f MHz\n", cfg.Capture.Frequency/1e6)
	fmt.Printf("Sample rate: %.3f MSps\n", float64(cfg.Capture.SampleRate)/1e6)
	fmt.Printf("Duration: %v\n", cfg.Capture.Duration)
	fmt.Printf("Output: %s\n", cfg.Capture.OutputFile)

	dev, err := capture.Open(cfg.Capture)
	if err != nil {
		return fmt.Errorf("failed to open device: %w", err)
	}
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Printf("\nReceived interrupt signal, stopping acquisition...\n")
		cancel()
	}()

	res, err := dev.Collect(ctx, cfg.Capture.Frequency, cfg.Capture.Duration)
	if err != nil && len(res.Data) == 0 {
		return fmt.Errorf("acquisition failed: %w", err)
	}

	data := make([]complex128, len(res.Data))
	for k, v := range res.Data {
		data[k] = complex128(v)
	}
	if err := export.WriteRawBin(cfg.Capture.OutputFile, data, res.SampleRate, res.Center); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.Capture.OutputFile, err)
	}

	fmt.Printf("Wrote %d samples captured at %s.\n", len(data), res.Timestamp.Format(time.RFC3339))
	return nil
}

// main is the entry point of the application
func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
