// iqdecode - multi-format I/Q capture file decoder
// This program reads sampled data files produced by several instrument
// families, extracts arbitrary frame windows without loading whole files and
// writes spectra and interchange formats derived from them.
package main

import (
	goflag "flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"iqdecode/internal/config"
	"iqdecode/internal/export"
	"iqdecode/internal/iqdata"
	"iqdecode/internal/spectral"
	"iqdecode/internal/version"
)

// Command line flag variables
var (
	cfgFile     string // configuration file path
	lframes     int    // samples per frame
	nframes     int    // number of frames
	sframes     int    // 1-based start frame
	method      string // spectrogram method
	outputDir   string // output directory, empty keeps outputs beside the input
	writeFFT    bool   // write FFT spectrum CSV
	writePSD    bool   // write Welch PSD CSV
	writeSpec   bool   // write spectrogram CSV
	writeNPY    bool   // write numpy array with YAML sidecar
	writeRaw    bool   // write raw-bin interchange file
	writeAudio  bool   // write audio envelope
	writeHeader bool   // dump the verbatim format header
	printDic    bool   // print the metadata dictionary
	showVersion bool   // print version information
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "iqdecode [file]",
	Short: "multi-format I/Q capture file decoder",
	Long: `iqdecode reads I/Q capture files written by several instrument families
(segmented, fixed-frame, XML-prefixed, block-grid and raw interchange
layouts), extracts a window of frames with minimal I/O and derives spectra
and interchange outputs from it.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("iqdecode"))
			return
		}
		if len(args) != 1 {
			cmd.Usage()
			os.Exit(1)
		}
		if err := runDecode(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// init initializes the CLI flags and configuration
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./iqdecode.yaml)")
	// glog registers its flags (-v, -logtostderr, ...) on the standard set.
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)

	rootCmd.Flags().IntVarP(&lframes, "lframes", "l", 1024, "length of frames")
	rootCmd.Flags().IntVarP(&nframes, "nframes", "n", 10, "number of frames")
	rootCmd.Flags().IntVarP(&sframes, "sframes", "s", 1, "starting frame, 1-based")
	rootCmd.Flags().StringVarP(&method, "method", "m", "fft", "spectrogram method: fft or welch")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default is beside the input file)")

	rootCmd.Flags().BoolVarP(&writeFFT, "fft", "f", false, "write FFT spectrum to CSV")
	rootCmd.Flags().BoolVarP(&writePSD, "psd", "p", false, "write Welch PSD to CSV")
	rootCmd.Flags().BoolVarP(&writeSpec, "spec", "g", false, "write spectrogram to CSV")
	rootCmd.Flags().BoolVarP(&writeNPY, "npy", "y", false, "write window to a numpy file with YAML sidecar")
	rootCmd.Flags().BoolVarP(&writeRaw, "raw", "r", false, "write window to a raw interchange file")
	rootCmd.Flags().BoolVarP(&writeAudio, "audio", "a", false, "write magnitude envelope to a sound file")
	rootCmd.Flags().BoolVar(&writeHeader, "header", false, "dump the verbatim format header")
	rootCmd.Flags().BoolVarP(&printDic, "dic", "d", false, "print the metadata dictionary")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version information")

	viper.BindPFlag("processing.lframes", rootCmd.Flags().Lookup("lframes"))
	viper.BindPFlag("processing.nframes", rootCmd.Flags().Lookup("nframes"))
	viper.BindPFlag("processing.sframes", rootCmd.Flags().Lookup("sframes"))
	viper.BindPFlag("processing.method", rootCmd.Flags().Lookup("method"))
	viper.BindPFlag("export.output_dir", rootCmd.Flags().Lookup("output"))
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

// runDecode is the main application logic
func runDecode(filename string) error {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	p := cfg.Processing

	glog.Infof("decoding %s, window l=%d n=%d s=%d", filename, p.LFrames, p.NFrames, p.SFrames)

	reader, err := iqdata.Open(filename)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := reader.Probe(); err != nil {
		return err
	}
	meta := reader.Metadata()

	data, err := reader.Read(p.LFrames, p.NFrames, p.SFrames)
	if err != nil {
		return err
	}

	base := outputBase(filename, cfg.Export.OutputDir)
	dic := export.NewDictionary(filename, meta, p.LFrames, p.NFrames, p.SFrames)

	if printDic {
		out, err := yaml.Marshal(dic)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	}

	if writeHeader {
		hd, ok := reader.(iqdata.HeaderDumper)
		if !ok {
			return fmt.Errorf("%s: this format carries no dumpable header", filename)
		}
		if err := export.WriteHeader(base+".xml", hd.RawHeader()); err != nil {
			return err
		}
		glog.Infof("header saved to %s.xml", base)
	}

	if writeFFT {
		f, pw, _ := spectral.FFT(data, meta.SampleRate)
		if err := export.WriteSpectrumCSV(base+"_fft.csv", f, pw); err != nil {
			return err
		}
		glog.Infof("FFT spectrum saved to %s_fft.csv", base)
	}

	if writePSD {
		f, pw := spectral.Welch(data, meta.SampleRate, len(data))
		if err := export.WriteSpectrumCSV(base+"_psd_welch.csv", f, pw); err != nil {
			return err
		}
		glog.Infof("Welch PSD saved to %s_psd_welch.csv", base)
	}

	if writeSpec {
		f, times, power, err := spectral.Spectrogram(data, meta.SampleRate, p.LFrames, p.NFrames, spectral.Method(p.Method))
		if err != nil {
			return err
		}
		if err := export.WriteSpectrogramCSV(base+"_spectrogram.csv", f, times, power); err != nil {
			return err
		}
		glog.Infof("spectrogram saved to %s_spectrogram.csv", base)
	}

	if writeNPY {
		if err := export.WriteNPY(base+".npy", data, dic); err != nil {
			return err
		}
		glog.Infof("window saved to %s.npy", base)
	}

	if writeRaw {
		out := base + ".bin"
		if sameFile(out, filename) {
			return fmt.Errorf("raw output %s would overwrite the input", out)
		}
		if err := export.WriteRawBin(out, data, meta.SampleRate, meta.Center); err != nil {
			return err
		}
		glog.Infof("raw interchange file saved to %s, fs=%g Hz", out, meta.SampleRate)
	}

	if writeAudio {
		out := base + ".wav"
		if sameFile(out, filename) {
			return fmt.Errorf("audio output %s would overwrite the input", out)
		}
		if err := export.WriteAudio(out, data, cfg.Export.AudioRate); err != nil {
			return err
		}
		glog.Infof("audio envelope saved to %s", out)
	}

	return nil
}

// outputBase strips the input extension and moves the result into dir when
// one is configured.
func outputBase(filename, dir string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	if dir == "" {
		return base
	}
	return filepath.Join(dir, filepath.Base(base))
}

func sameFile(a, b string) bool {
	ra, err := filepath.Abs(a)
	if err != nil {
		return a == b
	}
	rb, err := filepath.Abs(b)
	if err != nil {
		return a == b
	}
	return ra == rb
}

// main is the entry point of the application
func main() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
