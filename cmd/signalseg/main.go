package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"signalseg/internal/models"
	"signalseg/pkg/config"
	"signalseg/pkg/dataset"
	"signalseg/pkg/imageio"
	"signalseg/pkg/logging"
	"signalseg/pkg/records"
	"signalseg/pkg/synthetic"
	"signalseg/pkg/visualization"
)

const usage = `Usage: signalseg <command> [flags]

Commands:
  generate     Generate a synthetic 1D integration test dataset
  convert      Convert annotated JSON records into a dataset
  inspect      Read .npy files through the image adapter and print their shape
  preview      Plot the training cases of a dataset
  verify       Check that every training case of a dataset can be read back
  init-config  Write a default configuration file
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "generate":
		err = runGenerate(args)
	case "convert":
		err = runConvert(args)
	case "inspect":
		err = runInspect(args)
	case "preview":
		err = runPreview(args)
	case "verify":
		err = runVerify(args)
	case "init-config":
		err = runInitConfig(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

// commonFlags registers the flags shared by every command and returns a
// loader that applies them on top of the YAML configuration.
func commonFlags(fs *flag.FlagSet) func() (*config.Config, error) {
	configPath := fs.String("config", "signalseg.yaml", "YAML configuration file")
	rawDir := fs.String("raw", "", "Root folder of raw datasets (overrides paths.rawDir)")
	numCores := fs.Int("cores", 0, "Number of cases written concurrently (overrides processing.numCores)")
	logFile := fs.String("log", "", "Log file (overrides logging.file)")
	verbose := fs.Bool("v", false, "Verbose logging")

	return func() (*config.Config, error) {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		if *rawDir != "" {
			cfg.Paths.RawDir = *rawDir
		}
		if *numCores > 0 {
			cfg.Processing.NumCores = *numCores
		}
		if *logFile != "" {
			cfg.Logging.File = *logFile
		}
		if *verbose {
			cfg.Logging.Verbose = true
		}
		return cfg, nil
	}
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	load := commonFlags(fs)
	id := fs.Int("id", 995, "Dataset id used in the folder name")
	name := fs.String("name", "IntegrationTest_1d", "Dataset name used in the folder name")
	numTrain := fs.Int("train", -1, "Number of training cases (overrides generation.numTraining)")
	numTest := fs.Int("test", -1, "Number of test cases (overrides generation.numTest)")
	length := fs.Int("length", 0, "Samples per signal (overrides generation.length)")
	seed := fs.Uint64("seed", 0, "Random seed (overrides generation.seed)")
	keep := fs.Bool("keep", false, "Keep an existing dataset folder instead of replacing it")
	fs.Parse(args)

	cfg, err := load()
	if err != nil {
		return err
	}
	if *numTrain >= 0 {
		cfg.Generation.NumTraining = *numTrain
	}
	if *numTest >= 0 {
		cfg.Generation.NumTest = *numTest
	}
	if *length > 0 {
		cfg.Generation.Length = *length
	}
	if *seed != 0 {
		cfg.Generation.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	defer logging.Setup(cfg.Logging).Close()

	layout, err := dataset.NewLayout(cfg.Paths.RawDir, dataset.DatasetName(*id, *name))
	if err != nil {
		return err
	}
	if !*keep {
		if err := layout.Reset(); err != nil {
			return err
		}
	}

	gen, err := synthetic.NewGenerator(synthetic.Params{
		Length:      cfg.Generation.Length,
		NumTraining: cfg.Generation.NumTraining,
		NumTest:     cfg.Generation.NumTest,
		Segments:    cfg.Generation.Segments,
		NoiseStdDev: cfg.Generation.NoiseStdDev,
		Seed:        cfg.Generation.Seed,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	w := dataset.NewWriter(layout, cfg.Processing.NumCores)
	sum, err := w.WriteCases(context.Background(), gen.Cases())
	if err != nil {
		return err
	}
	if err := w.Finalize(gen.Descriptor()); err != nil {
		return err
	}

	fmt.Printf("Generated %s: %d training, %d test cases (%s) in %.2f seconds\n",
		layout.Root(), sum.NumTraining, sum.NumTest, humanize.Bytes(sum.Bytes), time.Since(start).Seconds())
	return nil
}

func runConvert(args []string) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	load := commonFlags(fs)
	folder := fs.String("folder", "", "Dataset folder name below the raw root (required)")
	exclude := fs.String("exclude", "", "Comma separated databases to skip (overrides conversion.excludedDatabases)")
	fs.Parse(args)

	if *folder == "" || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: signalseg convert -folder DatasetXXX_Name records.json [more.json ...]")
		fs.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := load()
	if err != nil {
		return err
	}
	if *exclude != "" {
		cfg.Conversion.ExcludedDatabases = strings.Split(*exclude, ",")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	defer logging.Setup(cfg.Logging).Close()

	layout, err := dataset.NewLayout(cfg.Paths.RawDir, *folder)
	if err != nil {
		return err
	}

	recs, err := records.Load(fs.Args()...)
	if err != nil {
		return err
	}
	opts := records.Options{
		ExcludedDatabases: cfg.Conversion.ExcludedDatabases,
		ChannelName:       cfg.Conversion.ChannelName,
	}
	cases, err := records.ToCases(recs, opts)
	if err != nil {
		return err
	}

	w := dataset.NewWriter(layout, cfg.Processing.NumCores)
	sum, err := w.WriteCases(context.Background(), cases)
	if err != nil {
		return err
	}
	if err := w.Finalize(records.Descriptor(sum.NumTraining, opts)); err != nil {
		return err
	}

	fmt.Printf("Converted %d of %d records into %s (%s)\n",
		sum.NumTraining, len(recs), layout.Root(), humanize.Bytes(sum.Bytes))
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	seg := fs.Bool("seg", false, "Read a single file as a segmentation")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: signalseg inspect [-seg] file.npy [file.npy ...]")
		os.Exit(1)
	}

	rw, err := imageio.ForFile(fs.Arg(0))
	if err != nil {
		return err
	}

	var (
		img   *models.Image
		props models.Properties
	)
	if *seg {
		if fs.NArg() != 1 {
			return fmt.Errorf("-seg takes exactly one file")
		}
		img, props, err = rw.ReadSeg(fs.Arg(0))
	} else {
		img, props, err = rw.ReadImages(fs.Args())
	}
	if err != nil {
		return err
	}
	printChannels(img)
	fmt.Printf("shape: %s\nspacing: %v\n", img.Shape, props.Spacing)
	return nil
}

func printChannels(img *models.Image) {
	for c := 0; c < img.Shape.Channels(); c++ {
		src := img.Channel(c)
		if len(src) == 0 {
			fmt.Printf("channel %d: empty\n", c)
			continue
		}
		ch := make([]float64, len(src))
		for i, v := range src {
			ch[i] = float64(v)
		}
		mean, std := stat.MeanStdDev(ch, nil)
		fmt.Printf("channel %d: min %.4g max %.4g mean %.4g std %.4g\n",
			c, floats.Min(ch), floats.Max(ch), mean, std)
	}
}

func runPreview(args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	load := commonFlags(fs)
	folder := fs.String("folder", "", "Dataset folder name below the raw root (required)")
	outDir := fs.String("out", "previews", "Directory to write plots to")
	limit := fs.Int("limit", 10, "Maximum number of cases to plot (0 = all)")
	fs.Parse(args)

	cfg, err := load()
	if err != nil {
		return err
	}
	defer logging.Setup(cfg.Logging).Close()

	layout, err := dataset.NewLayout(cfg.Paths.RawDir, *folder)
	if err != nil {
		return err
	}
	n, err := visualization.SaveCaseSequence(layout.ImagesTr(), layout.LabelsTr(), *outDir, *limit)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d plots to %s\n", n, *outDir)
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	load := commonFlags(fs)
	folder := fs.String("folder", "", "Dataset folder name below the raw root (required)")
	fs.Parse(args)

	cfg, err := load()
	if err != nil {
		return err
	}
	defer logging.Setup(cfg.Logging).Close()

	layout, err := dataset.NewLayout(cfg.Paths.RawDir, *folder)
	if err != nil {
		return err
	}
	n, err := dataset.Verify(layout)
	if err != nil {
		return err
	}
	fmt.Printf("Verified %d training cases in %s\n", n, layout.Root())
	return nil
}

func runInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	path := fs.String("config", "signalseg.yaml", "Configuration file to create")
	fs.Parse(args)

	if err := config.CreateDefaultConfigFile(*path); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to %s\n", *path)
	return nil
}
