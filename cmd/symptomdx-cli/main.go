package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"symptomdx/dataset"
	"symptomdx/db"
	"symptomdx/ml"
	"symptomdx/predict"
	"symptomdx/symptom"
)

var rootCmd = &cobra.Command{
	Use:   "symptomdx-cli",
	Short: "Train and query symptom-to-disease models",
	Long:  "symptomdx-cli runs offline training over labeled symptom records and queries a trained artifact set from the command line.",
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train candidate models and persist the best artifact set",
	RunE:  runTrain,
}

var predictCmd = &cobra.Command{
	Use:   "predict [symptoms]",
	Short: "Predict diseases from a comma-separated symptom list",
	Args:  cobra.ExactArgs(1),
	RunE:  runPredict,
}

var symptomsCmd = &cobra.Command{
	Use:   "symptoms",
	Short: "List the symptoms the loaded model understands",
	RunE:  runSymptoms,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show metadata of the persisted artifact set",
	RunE:  runInfo,
}

func init() {
	rootCmd.PersistentFlags().String("models-dir", "models", "artifact set directory")
	rootCmd.PersistentFlags().String("severity", "data/Symptom-severity.csv", "symptom severity CSV")

	trainCmd.Flags().String("data", "data/dataset.csv", "labeled records CSV")
	trainCmd.Flags().Float64("test-fraction", 0.2, "holdout fraction for the final accuracy check")
	trainCmd.Flags().Int("cv-folds", 5, "stratified cross-validation folds")
	trainCmd.Flags().Int64("seed", 42, "random seed for splits and resampling")
	trainCmd.Flags().Bool("grid-search", false, "grid-search hyperparameters of the best family")
	trainCmd.Flags().Int("synthetic", 0, "synthetic samples per disease to add on top of the source records")
	trainCmd.Flags().String("db", "", "SQLite path to record the run in (optional)")

	predictCmd.Flags().Int("top", predict.DefaultTopN, "number of ranked candidates")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(symptomsCmd)
	rootCmd.AddCommand(infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	dataPath, _ := cmd.Flags().GetString("data")
	severityPath, _ := cmd.Flags().GetString("severity")
	modelsDir, _ := cmd.Flags().GetString("models-dir")
	synthetic, _ := cmd.Flags().GetInt("synthetic")
	dbPath, _ := cmd.Flags().GetString("db")
	seed, _ := cmd.Flags().GetInt64("seed")

	table, err := dataset.Build(dataPath, severityPath, logger)
	if err != nil {
		return fmt.Errorf("build dataset: %w", err)
	}

	features, labels := table.Features, table.Labels
	if synthetic > 0 {
		extra, err := dataset.Synthesize(table, synthetic, seed)
		if err != nil {
			return fmt.Errorf("synthesize: %w", err)
		}
		exFeatures, exLabels, err := encodeRecords(table.Vocab, extra)
		if err != nil {
			return fmt.Errorf("encode synthetic records: %w", err)
		}
		features = append(append([][]float64{}, features...), exFeatures...)
		labels = append(append([]string{}, labels...), exLabels...)
		logger.Info("synthetic samples added", zap.Int("count", len(extra)))
	}

	cfg := ml.DefaultTrainerConfig()
	cfg.ModelsDir = modelsDir
	cfg.Seed = seed
	cfg.TestFraction, _ = cmd.Flags().GetFloat64("test-fraction")
	cfg.Folds, _ = cmd.Flags().GetInt("cv-folds")
	cfg.GridSearch, _ = cmd.Flags().GetBool("grid-search")

	report, err := ml.NewTrainer(cfg, logger).Train(features, labels, table.Vocab.Symptoms())
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}

	if dbPath != "" {
		store, err := db.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open run registry: %w", err)
		}
		defer store.Close()
		if _, err := store.RecordRun(report); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}

	fmt.Printf("best model: %s (cv accuracy %.4f)\n", report.Meta.BestModel, report.Meta.BestScore)
	for family, score := range report.Meta.Models {
		fmt.Printf("  %-20s cv %.4f ± %.4f, test %.4f\n", family, score.CVMean, score.CVStd, score.TestAccuracy)
	}
	if len(report.DroppedClasses) > 0 {
		fmt.Printf("dropped classes (fewer than %d samples): %s\n", ml.MinClassSamples, strings.Join(report.DroppedClasses, ", "))
	}
	fmt.Printf("artifacts written to %s\n", modelsDir)
	return nil
}

// encodeRecords builds the weighted feature matrix for records that were not
// part of the loaded table.
func encodeRecords(vocab *symptom.Vocabulary, records []dataset.Record) ([][]float64, []string, error) {
	encoder, err := symptom.NewEncoder(vocab, nil)
	if err != nil {
		return nil, nil, err
	}
	features := make([][]float64, 0, len(records))
	labels := make([]string, 0, len(records))
	for _, rec := range records {
		vec, err := encoder.Encode(rec.Symptoms)
		if err != nil {
			return nil, nil, err
		}
		features = append(features, vec)
		labels = append(labels, rec.Disease)
	}
	return features, labels, nil
}

func loadPredictor(cmd *cobra.Command, logger *zap.Logger) (*predict.Predictor, error) {
	modelsDir, _ := cmd.Flags().GetString("models-dir")
	severityPath, _ := cmd.Flags().GetString("severity")

	p := predict.New(predict.Config{
		ModelsDir:    modelsDir,
		SeverityPath: severityPath,
		Confidence:   predict.DefaultConfidenceLevels(),
	}, logger)
	if err := p.Load(); err != nil {
		return nil, fmt.Errorf("load artifact set: %w", err)
	}
	return p, nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := loadPredictor(cmd, logger)
	if err != nil {
		return err
	}

	top, _ := cmd.Flags().GetInt("top")
	symptoms := strings.Split(args[0], ",")

	result, err := p.Predict(symptoms, top)
	if err != nil {
		var noMatch *predict.NoMatchError
		if errors.As(err, &noMatch) {
			fmt.Printf("no usable symptoms: %s\n", strings.Join(noMatch.InvalidSymptoms, ", "))
			for _, s := range noMatch.Suggestions {
				fmt.Printf("  %s\n", s)
			}
			return nil
		}
		return err
	}

	return printJSON(result)
}

func runSymptoms(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	p, err := loadPredictor(cmd, logger)
	if err != nil {
		return err
	}
	for _, s := range p.GetAvailableSymptoms() {
		fmt.Println(s)
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	modelsDir, _ := cmd.Flags().GetString("models-dir")
	meta, err := ml.LoadMetadata(filepath.Join(modelsDir, ml.MetadataFile))
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}
	return printJSON(meta)
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
