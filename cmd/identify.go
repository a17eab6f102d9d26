package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/matcher"
	"github.com/kozaktomas/fingerprint-matcher/internal/scanner"
	"github.com/kozaktomas/fingerprint-matcher/internal/sensor"
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Capture a fingerprint and identify the person",
	Long: `Run one identification: capture a template from the configured sensor
(or read it from --template), search every enrolled identity and print the match.
The attempt is recorded in the scan log.`,
	RunE: runIdentify,
}

var identifyBatchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Identify every template file in a directory",
	Long: `Identify each template file (.bin, .tpl, .hex, .b64) in a directory and print
a summary table. Each file gets a single attempt; nothing is written to the scan log.`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentifyBatch,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	identifyCmd.AddCommand(identifyBatchCmd)

	identifyCmd.Flags().String("template", "", "Read the probe template from this file instead of the sensor")
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
	identifyCmd.Flags().Float64("threshold", 0, "Override the similarity threshold (0 keeps the configured value)")

	identifyBatchCmd.Flags().Bool("json", false, "Output as JSON")
	identifyBatchCmd.Flags().Float64("threshold", 0, "Override the similarity threshold (0 keeps the configured value)")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	params := a.params
	if threshold := mustGetFloat64(cmd, "threshold"); threshold > 0 {
		params.Threshold = threshold
		if err := params.Validate(); err != nil {
			return err
		}
	}

	var capture matcher.CaptureSource
	if path := mustGetString(cmd, "template"); path != "" {
		capture, err = sensor.NewFileSource(path)
	} else {
		capture, err = sensor.Open(&cfg.Sensor, logger)
	}
	if err != nil {
		return fmt.Errorf("capture source: %w", err)
	}

	host, _ := os.Hostname()
	svc := scanner.NewService(capture, func(c matcher.CaptureSource) scanner.Runner {
		return a.engine(c, params)
	}, a.store, logger)

	if !mustGetBool(cmd, "json") {
		fmt.Println("Place a finger on the reader...")
	}

	result, scanErr := svc.Scan(ctx, scanner.Request{DeviceInfo: "cli@" + host})
	if mustGetBool(cmd, "json") {
		if err := outputJSON(result); err != nil {
			return err
		}
		return scanErr
	}

	printResult(result)
	return scanErr
}

func printResult(r scanner.Result) {
	fmt.Printf("\n%s\n", r.Message)
	if r.Identity != nil {
		fmt.Printf("  Name:       %s\n", r.Identity.FullName)
		fmt.Printf("  Born:       %s\n", r.Identity.BirthDate)
		fmt.Printf("  Passport:   %s\n", r.Identity.Passport)
		fmt.Printf("  Address:    %s\n", r.Identity.Address)
		fmt.Printf("  Phone:      %s\n", r.Identity.Phone)
	}
	if r.Status != matcher.StatusError {
		fmt.Printf("  Similarity: %.2f%%\n", r.Similarity)
	}
	fmt.Printf("  Attempts:   %d\n", r.Attempts)
	fmt.Printf("  Scan ID:    %s\n", r.ScanID)
}

// batchEntry is one row of the batch summary.
type batchEntry struct {
	File       string  `json:"file"`
	Status     string  `json:"status"`
	IdentityID int64   `json:"identity_id,omitempty"`
	FullName   string  `json:"full_name,omitempty"`
	Similarity float64 `json:"similarity"`
	Error      string  `json:"error,omitempty"`
}

func runIdentifyBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := args[0]

	files, err := templateFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No template files found in %s\n", dir)
		return nil
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	params := a.params
	params.MaxAttempts = 1 // a file never changes between attempts
	if threshold := mustGetFloat64(cmd, "threshold"); threshold > 0 {
		params.Threshold = threshold
	}
	if err := params.Validate(); err != nil {
		return err
	}

	jsonOutput := mustGetBool(cmd, "json")
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Identifying"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("templates"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	entries := make([]batchEntry, 0, len(files))
	for _, path := range files {
		entries = append(entries, identifyFile(cmd, a, params, path))
		if bar != nil {
			bar.Add(1)
		}
	}

	if jsonOutput {
		return outputJSON(entries)
	}

	fmt.Println()
	rows := make([][]string, 0, len(entries))
	var matched int
	for _, e := range entries {
		identity := ""
		if e.IdentityID != 0 {
			identity = fmt.Sprintf("#%d %s", e.IdentityID, e.FullName)
			matched++
		}
		status := e.Status
		if e.Error != "" {
			status = e.Status + ": " + e.Error
		}
		rows = append(rows, []string{e.File, status, identity, strconv.FormatFloat(e.Similarity, 'f', 2, 64) + "%"})
	}
	fmt.Println(renderTable([]string{"File", "Status", "Identity", "Similarity"}, rows, 3))
	fmt.Printf("Matched %d of %d templates\n", matched, len(entries))
	return nil
}

func identifyFile(cmd *cobra.Command, a *app, params matcher.Params, path string) batchEntry {
	entry := batchEntry{File: filepath.Base(path)}

	source, err := sensor.NewFileSource(path)
	if err != nil {
		entry.Status = matcher.StatusError
		entry.Error = err.Error()
		return entry
	}

	outcome := a.engine(source, params).Run(cmd.Context())
	entry.Status = outcome.Status()
	switch out := outcome.(type) {
	case matcher.Matched:
		entry.IdentityID = out.Identity.ID
		entry.FullName = out.Identity.FullName
		entry.Similarity = scanner.Percent(out.Similarity)
	case matcher.NoMatch:
		entry.Similarity = scanner.Percent(out.BestSimilarity)
	case matcher.Failed:
		entry.Error = out.Error()
	}
	return entry
}

// templateFiles lists the template files in dir, sorted by name.
func templateFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && fingerprint.IsTemplateFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}
